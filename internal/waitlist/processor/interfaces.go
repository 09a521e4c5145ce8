package processor

import (
	"context"

	"waitlist-server/internal/ratelimit"
)

// ReputationChecker screens an email domain. Lookup failures must already be
// resolved to false by the implementation.
type ReputationChecker interface {
	IsSpam(ctx context.Context, domain string) bool
}

// DailyLimiter consumes one unit of the global daily quota
type DailyLimiter interface {
	CheckRateLimit(ctx context.Context) (ratelimit.RateLimitResult, error)
}

// WaitlistStore defines the persistence operations required by WaitlistProcessor
type WaitlistStore interface {
	Add(ctx context.Context, email string) (int, error)
}

// Notifier sends the welcome email
type Notifier interface {
	SendWelcomeEmail(ctx context.Context, to string) error
}
