package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"waitlist-server/internal/observability"
)

const (
	DefaultBaseURL   = "http://api.projecthoneypot.org/api"
	DefaultTimeout   = 5 * time.Second
	DefaultThreshold = 30

	maxResponseBytes = 1 << 20
)

var ErrServiceUnavailable = errors.New("reputation service unavailable")

// Config holds the reputation service settings
type Config struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	Threshold float64
}

// lookupResponse accepts spam_score at the top level or nested under
// "response", which is where the upstream service puts it.
type lookupResponse struct {
	SpamScore *float64 `json:"spam_score"`
	Response  *struct {
		SpamScore *float64 `json:"spam_score"`
	} `json:"response"`
}

func (r lookupResponse) score() *float64 {
	if r.SpamScore != nil {
		return r.SpamScore
	}
	if r.Response != nil {
		return r.Response.SpamScore
	}
	return nil
}

// Client queries a domain reputation service
type Client struct {
	apiKey     string
	baseURL    string
	threshold  float64
	httpClient *http.Client
	logger     *observability.Logger
}

// NewClient creates a new reputation client. Zero values in cfg fall back to
// the defaults.
func NewClient(cfg Config, logger *observability.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Client{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		threshold: cfg.Threshold,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// IsEnabled returns true if the client has an API key configured
func (c *Client) IsEnabled() bool {
	return c.apiKey != ""
}

// Lookup fetches the spam score for domain. A nil score means the service
// had no opinion. Every transport or decoding problem is reported as
// ErrServiceUnavailable.
func (c *Client) Lookup(ctx context.Context, domain string) (*float64, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base url: %w", ErrServiceUnavailable, err)
	}
	query := endpoint.Query()
	query.Set("q", domain)
	query.Set("key", c.apiKey)
	query.Set("format", "json")
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrServiceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", ErrServiceUnavailable, err)
	}
	return body.score(), nil
}

// IsSpam reports whether domain scores above the threshold. Without an API
// key no request is made. Lookup failures are logged and treated as not
// spam.
func (c *Client) IsSpam(ctx context.Context, domain string) bool {
	if !c.IsEnabled() {
		return false
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_domain", Value: domain},
	)

	score, err := c.Lookup(ctx, domain)
	if err != nil {
		c.logger.WarnWithError(ctx, "reputation lookup failed, allowing signup", err)
		return false
	}
	if score == nil {
		c.logger.Debug(ctx, "reputation service returned no spam score")
		return false
	}

	spam := *score > c.threshold
	c.logger.Info(ctx, "reputation lookup completed",
		observability.Field{Key: "spam_score", Value: *score},
		observability.Field{Key: "spam", Value: spam},
	)
	return spam
}
