package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"waitlist-server/internal/observability"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const tooManyRequestsMessage = "Too many requests. Please slow down."

// WriteHeaders adds the quota headers to the response. Retry-After is only
// set when the request was rejected and counts from result.CheckedAt.
func WriteHeaders(c *gin.Context, result RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		c.Header("Retry-After", strconv.Itoa(result.RetryAfter(result.CheckedAt)))
	}
}

// IPThrottle keeps one token bucket per client IP. Buckets idle for longer
// than the idle TTL are dropped by Cleanup.
type IPThrottle struct {
	mu           sync.Mutex
	entries      map[string]*throttleEntry
	limit        rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	trustViewer  bool
	now          func() time.Time
	logger       *observability.Logger
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ThrottleOption func(*IPThrottle)

// WithIdleTTL sets how long a bucket may go unused before it is evicted.
func WithIdleTTL(d time.Duration) ThrottleOption {
	return func(t *IPThrottle) { t.idleTTL = d }
}

// WithCleanupEvery sets the janitor interval.
func WithCleanupEvery(d time.Duration) ThrottleOption {
	return func(t *IPThrottle) { t.cleanupEvery = d }
}

// WithViewerAddressHeader keys buckets on CloudFront-Viewer-Address. Only
// enable it when every request arrives through CloudFront, the header is
// client-controlled otherwise.
func WithViewerAddressHeader(trust bool) ThrottleOption {
	return func(t *IPThrottle) { t.trustViewer = trust }
}

func WithThrottleClock(now func() time.Time) ThrottleOption {
	return func(t *IPThrottle) { t.now = now }
}

// NewIPThrottle allows requestsPerMinute per client IP with a burst of the
// same size. It returns nil when requestsPerMinute is not positive.
func NewIPThrottle(requestsPerMinute int, logger *observability.Logger, opts ...ThrottleOption) *IPThrottle {
	if requestsPerMinute <= 0 {
		return nil
	}
	t := &IPThrottle{
		entries:      make(map[string]*throttleEntry),
		limit:        rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:        requestsPerMinute,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Allow reports whether ip may make another request now.
func (t *IPThrottle) Allow(ip string) bool {
	now := t.now()

	t.mu.Lock()
	ent, ok := t.entries[ip]
	if !ok {
		ent = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.entries[ip] = ent
	}
	ent.lastSeen = now
	t.mu.Unlock()

	return ent.limiter.AllowN(now, 1)
}

// Cleanup evicts buckets that have not been used within the idle TTL.
func (t *IPThrottle) Cleanup() {
	cutoff := t.now().Add(-t.idleTTL)

	t.mu.Lock()
	defer t.mu.Unlock()

	for ip, ent := range t.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(t.entries, ip)
		}
	}
}

// Len returns the number of tracked clients.
func (t *IPThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// StartJanitor runs Cleanup periodically until ctx is done. Safe to call on
// a nil throttle.
func (t *IPThrottle) StartJanitor(ctx context.Context) {
	if t == nil || t.cleanupEvery <= 0 {
		return
	}

	ticker := time.NewTicker(t.cleanupEvery)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Cleanup()
			}
		}
	}()
}

func (t *IPThrottle) clientKey(c *gin.Context) string {
	if t.trustViewer {
		return observability.GetRealClientIP(c)
	}
	return c.ClientIP()
}

// Middleware creates a Gin middleware that rejects clients over their
// budget. A nil throttle lets everything through.
func (t *IPThrottle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if t == nil {
			c.Next()
			return
		}

		ip := t.clientKey(c)
		if t.Allow(ip) {
			c.Next()
			return
		}

		t.logger.Warn(c.Request.Context(), "client throttled",
			observability.Field{Key: "client_ip", Value: ip},
		)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"status":  "error",
			"message": tooManyRequestsMessage,
		})
	}
}
