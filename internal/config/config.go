package config

import (
	"errors"
	"fmt"
	"net"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrEmptyEnvironmentVariable = errors.New("empty environment variable")
	ErrInvalidConfig            = errors.New("invalid configuration")
)

// Mail providers accepted by MAIL_PROVIDER.
const (
	MailProviderLog    = "log"
	MailProviderSMTP   = "smtp"
	MailProviderResend = "resend"
	MailProviderSES    = "ses"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Logging     LoggingConfig
	Storage     StorageConfig
	Limits      LimitsConfig
	Reputation  ReputationConfig
	Mail        MailConfig
	Rewards     RewardsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TrustedProxies  []string
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

// StorageConfig holds the paths of the two persisted JSON files
type StorageConfig struct {
	WaitlistFile  string
	RateLimitFile string
}

// LimitsConfig holds the daily quota and the optional per-IP throttle
type LimitsConfig struct {
	DailyEmailLimit     int
	Location            *time.Location
	IPRequestsPerMinute int
	TrustViewerAddress  bool
}

// ReputationConfig holds the spam reputation lookup settings.
// An empty APIKey disables the lookup.
type ReputationConfig struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	SpamThreshold float64
}

// MailConfig holds the sender identity and transport settings
type MailConfig struct {
	Provider  string
	FromName  string
	FromEmail string
	SiteName  string
	Timeout   time.Duration
	SMTP      SMTPConfig
	Resend    ResendConfig
	SES       SESConfig
}

// SMTPConfig holds settings for the smtp mail provider
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// ResendConfig holds settings for the resend mail provider
type ResendConfig struct {
	APIKey string
}

// SESConfig holds settings for the ses mail provider
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// RewardsConfig holds values echoed back to successful signups
type RewardsConfig struct {
	FirstMonthFreePoints int
}

// IsProduction reports whether GO_ENV is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads and validates all environment variables
func Load() (*Config, error) {
	cfg, err := loadBase()
	if err != nil {
		return nil, err
	}

	// Server configuration
	if cfg.Server.Port, err = intEnv("SERVER_PORT", "8080"); err != nil {
		return nil, err
	}
	if cfg.Server.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	cfg.Server.AllowedOrigins = splitList(getEnvWithDefault("ALLOWED_ORIGINS", "*"))
	cfg.Server.TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))

	cfg.Logging.Level = getEnvWithDefault("LOG_LEVEL", "info")

	// Per-client throttle
	if cfg.Limits.IPRequestsPerMinute, err = intEnv("IP_REQUESTS_PER_MINUTE", "0"); err != nil {
		return nil, err
	}
	if cfg.Limits.TrustViewerAddress, err = boolEnv("TRUST_CLOUDFRONT_VIEWER_ADDRESS", "false"); err != nil {
		return nil, err
	}

	// Reputation configuration
	cfg.Reputation.APIKey = os.Getenv("HONEYPOT_API_KEY")
	cfg.Reputation.BaseURL = getEnvWithDefault("REPUTATION_API_URL", "http://api.projecthoneypot.org/api")
	if cfg.Reputation.Timeout, err = durationEnv("REPUTATION_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	threshold := getEnvWithDefault("SPAM_SCORE_THRESHOLD", "30")
	if cfg.Reputation.SpamThreshold, err = strconv.ParseFloat(threshold, 64); err != nil {
		return nil, fmt.Errorf("failed to parse SPAM_SCORE_THRESHOLD: %w", err)
	}

	// Mail configuration
	cfg.Mail.Provider = strings.ToLower(getEnvWithDefault("MAIL_PROVIDER", MailProviderLog))
	cfg.Mail.FromName = getEnvWithDefault("MAIL_FROM_NAME", "Waitlist")
	if cfg.Mail.FromEmail, err = requireEnv("MAIL_FROM_EMAIL"); err != nil {
		return nil, err
	}
	cfg.Mail.SiteName = getEnvWithDefault("SITE_NAME", "our service")
	if cfg.Mail.Timeout, err = durationEnv("MAIL_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	cfg.Mail.SMTP.Host = os.Getenv("SMTP_HOST")
	if cfg.Mail.SMTP.Port, err = intEnv("SMTP_PORT", "587"); err != nil {
		return nil, err
	}
	cfg.Mail.SMTP.Username = os.Getenv("SMTP_USERNAME")
	cfg.Mail.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	cfg.Mail.Resend.APIKey = os.Getenv("RESEND_API_KEY")
	cfg.Mail.SES.Region = getEnvWithDefault("AWS_REGION", "us-east-1")
	cfg.Mail.SES.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.Mail.SES.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	// Rewards configuration
	if cfg.Rewards.FirstMonthFreePoints, err = intEnv("FIRST_MONTH_FREE_POINTS", "5000"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStores reads only the settings needed to open the persisted files:
// storage paths, the daily limit and its time zone. Used by commands that
// never send mail or serve HTTP.
func LoadStores() (*Config, error) {
	cfg, err := loadBase()
	if err != nil {
		return nil, err
	}
	if problems := cfg.storeProblems(); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return cfg, nil
}

func loadBase() (*Config, error) {
	env := getEnvWithDefault("GO_ENV", "development")

	// Load env.local in non-production environments. A missing file is fine,
	// the process environment is used as-is.
	if env != "production" {
		if err := godotenv.Load("env.local"); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{Environment: env}
	var err error

	// Storage configuration
	cfg.Storage.WaitlistFile = getEnvWithDefault("WAITLIST_FILE", "waitlist.json")
	cfg.Storage.RateLimitFile = getEnvWithDefault("RATE_LIMIT_FILE", "email_limits.json")

	// Limits configuration
	if cfg.Limits.DailyEmailLimit, err = intEnv("DAILY_EMAIL_LIMIT", "100"); err != nil {
		return nil, err
	}
	tz := getEnvWithDefault("LIMIT_TIMEZONE", "Local")
	if cfg.Limits.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("failed to parse LIMIT_TIMEZONE: %w", err)
	}
	return cfg, nil
}

func (c *Config) storeProblems() []string {
	var problems []string
	if c.Storage.WaitlistFile == "" || c.Storage.RateLimitFile == "" {
		problems = append(problems, "WAITLIST_FILE and RATE_LIMIT_FILE must not be empty")
	}
	if c.Storage.WaitlistFile == c.Storage.RateLimitFile {
		problems = append(problems, "WAITLIST_FILE and RATE_LIMIT_FILE must differ")
	}
	if c.Limits.DailyEmailLimit < 0 {
		problems = append(problems, "DAILY_EMAIL_LIMIT must not be negative")
	}
	return problems
}

// Validate checks cross-field constraints that parsing alone cannot catch
func (c *Config) Validate() error {
	problems := c.storeProblems()

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "SERVER_PORT must be between 1 and 65535")
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			problems = append(problems, fmt.Sprintf("ALLOWED_ORIGINS entry %q must be * or start with http:// or https://", origin))
		}
	}
	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				problems = append(problems, fmt.Sprintf("TRUSTED_PROXIES entry %q must be an IP or CIDR", proxy))
			}
		}
	}
	if c.Limits.IPRequestsPerMinute < 0 {
		problems = append(problems, "IP_REQUESTS_PER_MINUTE must not be negative")
	}
	if c.Reputation.Timeout <= 0 {
		problems = append(problems, "REPUTATION_TIMEOUT must be positive")
	}
	if c.Reputation.SpamThreshold <= 0 {
		problems = append(problems, "SPAM_SCORE_THRESHOLD must be positive")
	}
	if c.Rewards.FirstMonthFreePoints < 0 {
		problems = append(problems, "FIRST_MONTH_FREE_POINTS must not be negative")
	}
	if _, err := mail.ParseAddress(c.Mail.FromEmail); err != nil {
		problems = append(problems, "MAIL_FROM_EMAIL must be a valid email address")
	}

	switch c.Mail.Provider {
	case MailProviderLog:
	case MailProviderSMTP:
		if c.Mail.SMTP.Host == "" {
			problems = append(problems, "SMTP_HOST is required for the smtp mail provider")
		}
	case MailProviderResend:
		if c.Mail.Resend.APIKey == "" {
			problems = append(problems, "RESEND_API_KEY is required for the resend mail provider")
		}
	case MailProviderSES:
		if c.Mail.SES.AccessKeyID == "" || c.Mail.SES.SecretAccessKey == "" {
			problems = append(problems, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for the ses mail provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown MAIL_PROVIDER %q", c.Mail.Provider))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func intEnv(key, defaultValue string) (int, error) {
	v, err := strconv.Atoi(getEnvWithDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return v, nil
}

func boolEnv(key, defaultValue string) (bool, error) {
	v, err := strconv.ParseBool(getEnvWithDefault(key, defaultValue))
	if err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key, defaultValue string) (time.Duration, error) {
	v, err := time.ParseDuration(getEnvWithDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
