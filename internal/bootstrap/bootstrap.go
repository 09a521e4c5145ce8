package bootstrap

import (
	"context"
	"fmt"

	"waitlist-server/internal/apierrors"
	"waitlist-server/internal/clients/mail"
	"waitlist-server/internal/clients/reputation"
	"waitlist-server/internal/config"
	"waitlist-server/internal/email"
	"waitlist-server/internal/observability"
	"waitlist-server/internal/ratelimit"
	"waitlist-server/internal/store"
	waitlistHandler "waitlist-server/internal/waitlist/handler"
	waitlistProcessor "waitlist-server/internal/waitlist/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Logger   *observability.Logger
	Waitlist *store.Waitlist
	Counter  *store.DailyCounter

	// Services
	RateLimiter  *ratelimit.Service
	IPThrottle   *ratelimit.IPThrottle
	EmailService *email.EmailService

	// Handlers
	WaitlistHandler waitlistHandler.Handler
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}
	apierrors.SetLogger(logger)

	deps.Waitlist = store.NewWaitlist(store.NewFileBackend(cfg.Storage.WaitlistFile), logger)
	deps.Counter = store.NewDailyCounter(store.NewFileBackend(cfg.Storage.RateLimitFile), logger)

	reputationClient := reputation.NewClient(reputation.Config{
		APIKey:    cfg.Reputation.APIKey,
		BaseURL:   cfg.Reputation.BaseURL,
		Timeout:   cfg.Reputation.Timeout,
		Threshold: cfg.Reputation.SpamThreshold,
	}, logger)
	if !reputationClient.IsEnabled() {
		logger.Info(ctx, "HONEYPOT_API_KEY not set, reputation checks disabled")
	}

	deps.RateLimiter = ratelimit.NewService(deps.Counter, cfg.Limits.DailyEmailLimit, cfg.Limits.Location, logger)
	deps.IPThrottle = ratelimit.NewIPThrottle(cfg.Limits.IPRequestsPerMinute, logger,
		ratelimit.WithViewerAddressHeader(cfg.Limits.TrustViewerAddress),
	)

	sender, err := mail.NewSender(ctx, cfg.Mail, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mail sender: %w", err)
	}
	deps.EmailService, err = email.New(sender, email.Config{
		FromName:  cfg.Mail.FromName,
		FromEmail: cfg.Mail.FromEmail,
		SiteName:  cfg.Mail.SiteName,
		Points:    cfg.Rewards.FirstMonthFreePoints,
		Timeout:   cfg.Mail.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email service: %w", err)
	}

	processor := waitlistProcessor.New(
		reputationClient,
		deps.RateLimiter,
		deps.Waitlist,
		deps.EmailService,
		cfg.Rewards.FirstMonthFreePoints,
		logger,
	)
	deps.WaitlistHandler = waitlistHandler.New(processor, logger)

	logger.Info(ctx, "dependencies initialized",
		observability.Field{Key: "waitlist_file", Value: cfg.Storage.WaitlistFile},
		observability.Field{Key: "rate_limit_file", Value: cfg.Storage.RateLimitFile},
		observability.Field{Key: "daily_email_limit", Value: cfg.Limits.DailyEmailLimit},
		observability.Field{Key: "mail_provider", Value: cfg.Mail.Provider},
	)
	return deps, nil
}

// InitializeStores opens only the two persisted files. Used by the read-only
// CLI commands.
func InitializeStores(cfg *config.Config, logger *observability.Logger) *Dependencies {
	counter := store.NewDailyCounter(store.NewFileBackend(cfg.Storage.RateLimitFile), logger)
	return &Dependencies{
		Logger:      logger,
		Waitlist:    store.NewWaitlist(store.NewFileBackend(cfg.Storage.WaitlistFile), logger),
		Counter:     counter,
		RateLimiter: ratelimit.NewService(counter, cfg.Limits.DailyEmailLimit, cfg.Limits.Location, logger),
	}
}

// Cleanup flushes the logger
func (d *Dependencies) Cleanup() {
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
}
