package ratelimit

import (
	"context"
	"fmt"
	"time"

	"waitlist-server/internal/observability"
)

const dayLayout = "2006-01-02"

// RateLimitResult represents the result of a daily quota check
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Count     int       `json:"count"`
	Remaining int       `json:"remaining"`
	Day       string    `json:"day"`
	ResetAt   time.Time `json:"reset_at"`

	// CheckedAt is the limiter's clock reading for this result.
	CheckedAt time.Time `json:"-"`
}

// RetryAfter returns the whole seconds until the quota resets, never less
// than one.
func (r RateLimitResult) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// Counter is the persisted day -> count map.
type Counter interface {
	Update(ctx context.Context, fn func(counts map[string]int) (bool, error)) error
	Counts(ctx context.Context) (map[string]int, error)
}

// Service enforces a global number of accepted signups per calendar day
type Service struct {
	counter  Counter
	limit    int
	location *time.Location
	now      func() time.Time
	logger   *observability.Logger
}

// NewService creates a daily quota service. A nil location means local time.
func NewService(counter Counter, limit int, location *time.Location, logger *observability.Logger) *Service {
	if location == nil {
		location = time.Local
	}
	return &Service{
		counter:  counter,
		limit:    limit,
		location: location,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CheckRateLimit consumes one unit of today's quota if any is left. The
// compare and increment happen under the counter lock, so concurrent callers
// can never push the count past the limit. A rejected call does not touch
// the counter.
func (s *Service) CheckRateLimit(ctx context.Context) (RateLimitResult, error) {
	now := s.now().In(s.location)
	day := now.Format(dayLayout)

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "rate_limit_day", Value: day},
		observability.Field{Key: "rate_limit", Value: s.limit},
	)

	result := RateLimitResult{
		Limit:     s.limit,
		Day:       day,
		ResetAt:   nextMidnight(now),
		CheckedAt: now,
	}

	err := s.counter.Update(ctx, func(counts map[string]int) (bool, error) {
		count := counts[day]
		if count >= s.limit {
			result.Count = count
			return false, nil
		}
		counts[day] = count + 1
		result.Allowed = true
		result.Count = count + 1
		return true, nil
	})
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to update daily counter: %w", err)
	}

	result.Remaining = max(s.limit-result.Count, 0)

	if !result.Allowed {
		s.logger.Warn(ctx, "daily email limit reached",
			observability.Field{Key: "count", Value: result.Count},
		)
	}
	return result, nil
}

// Usage returns today's count without consuming quota.
func (s *Service) Usage(ctx context.Context) (RateLimitResult, error) {
	now := s.now().In(s.location)
	day := now.Format(dayLayout)

	counts, err := s.counter.Counts(ctx)
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to read daily counter: %w", err)
	}
	count := counts[day]
	return RateLimitResult{
		Allowed:   count < s.limit,
		Limit:     s.limit,
		Count:     count,
		Remaining: max(s.limit-count, 0),
		Day:       day,
		ResetAt:   nextMidnight(now),
		CheckedAt: now,
	}, nil
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
