package processor

import (
	"context"
	"errors"
	"fmt"

	"waitlist-server/internal/observability"
	"waitlist-server/internal/ratelimit"
	"waitlist-server/internal/store"
)

const (
	StatusSuccess = "success"

	messageAddedWithEmail = "Thank you! You have been added to the waitlist. Check your email for details."
	messageAdded          = "Thank you! You have been added to the waitlist."
	noteEmailFailed       = "Email delivery failed, but you're on the list."
)

var (
	ErrInvalidEmail      = errors.New("a valid email address is required")
	ErrSpamRejected      = errors.New("email domain rejected by reputation check")
	ErrRateLimitExceeded = errors.New("daily email limit reached")
	ErrAlreadyOnWaitlist = errors.New("email already on the waitlist")
	ErrPersistence       = errors.New("failed to persist signup")
)

// SubscribeResult is the success payload of a signup
type SubscribeResult struct {
	Status             string `json:"status"`
	Message            string `json:"message"`
	EmailSent          bool   `json:"email_sent"`
	Note               string `json:"note,omitempty"`
	PointsForFreeMonth int    `json:"points_for_free_month"`

	// Position is the 1-based place on the waitlist. Not exposed to clients.
	Position int `json:"-"`
	// RateLimit is set once the daily quota was checked, also on
	// ErrRateLimitExceeded.
	RateLimit *ratelimit.RateLimitResult `json:"-"`
}

type WaitlistProcessor struct {
	reputation ReputationChecker
	limiter    DailyLimiter
	store      WaitlistStore
	notifier   Notifier
	points     int
	logger     *observability.Logger
}

func New(
	reputation ReputationChecker,
	limiter DailyLimiter,
	store WaitlistStore,
	notifier Notifier,
	pointsForFreeMonth int,
	logger *observability.Logger,
) WaitlistProcessor {
	return WaitlistProcessor{
		reputation: reputation,
		limiter:    limiter,
		store:      store,
		notifier:   notifier,
		points:     pointsForFreeMonth,
		logger:     logger,
	}
}

// Subscribe runs the signup pipeline for a raw JSON body: validate, screen
// the domain, consume daily quota, append to the waitlist, send the welcome
// email. The first failing stage ends the pipeline. Once the email is
// persisted the signup succeeds even if the welcome email cannot be sent.
func (p *WaitlistProcessor) Subscribe(ctx context.Context, body []byte) (SubscribeResult, error) {
	email, err := ParseEmail(body)
	if err != nil {
		p.logger.Debug(ctx, "rejected invalid signup body",
			observability.Field{Key: "reason", Value: err.Error()},
		)
		return SubscribeResult{}, err
	}

	domain := EmailDomain(email)
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email", Value: observability.RedactEmail(email)},
		observability.Field{Key: "email_domain", Value: domain},
	)

	if p.reputation.IsSpam(ctx, domain) {
		p.logger.Info(ctx, "signup rejected, domain flagged as spam")
		return SubscribeResult{}, ErrSpamRejected
	}

	// Quota is consumed before the duplicate check, so a repeat signup still
	// counts against the day.
	limit, err := p.limiter.CheckRateLimit(ctx)
	if err != nil {
		p.logger.Error(ctx, "failed to check daily email limit", err)
		return SubscribeResult{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	result := SubscribeResult{RateLimit: &limit}
	if !limit.Allowed {
		return result, ErrRateLimitExceeded
	}

	position, err := p.store.Add(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEntry) {
			p.logger.Info(ctx, "signup rejected, email already on the waitlist")
			return result, ErrAlreadyOnWaitlist
		}
		p.logger.Error(ctx, "failed to add email to the waitlist", err)
		return result, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "waitlist_position", Value: position},
	)

	result.Status = StatusSuccess
	result.Position = position
	result.PointsForFreeMonth = p.points

	if err := p.notifier.SendWelcomeEmail(ctx, email); err != nil {
		p.logger.WarnWithError(ctx, "signup accepted but welcome email failed", err)
		result.Message = messageAdded
		result.Note = noteEmailFailed
		return result, nil
	}

	p.logger.Info(ctx, "signup accepted")
	result.Message = messageAddedWithEmail
	result.EmailSent = true
	return result, nil
}
