package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field represents a key-value pair for observability.
type Field struct {
	Key   string
	Value interface{}
}

type ObservabilityContextKey string

const observabilityKey ObservabilityContextKey = "observability_fields"

// RequestIDHeader is read from incoming requests and echoed on every response.
const RequestIDHeader = "X-Request-ID"

// WithFields adds a set of observability fields to the context.
func WithFields(ctx context.Context, fields ...Field) context.Context {
	existing := getObservabilityFields(ctx)
	merged := make([]Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, observabilityKey, merged)
}

// Get observability fields from context.
func getObservabilityFields(ctx context.Context) []Field {
	if fields, ok := ctx.Value(observabilityKey).([]Field); ok {
		return fields
	}
	return nil
}

// RedactEmail masks the local part of an address for logging.
// "john.doe@example.com" becomes "jo***@example.com".
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***"
	}
	local, domain := email[:at], email[at+1:]
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}

// GetRealClientIP extracts the real client IP from CloudFront headers.
// CloudFront-Viewer-Address contains the client IP in "IP:port" format.
// Falls back to c.ClientIP() if the header is not present.
func GetRealClientIP(c *gin.Context) string {
	if viewerAddr := c.GetHeader("CloudFront-Viewer-Address"); viewerAddr != "" {
		if colonIdx := strings.LastIndex(viewerAddr, ":"); colonIdx > 0 {
			return viewerAddr[:colonIdx]
		}
		return viewerAddr
	}
	return c.ClientIP()
}

// Middleware adds request-scoped observability fields, recovers panics and
// logs every processed request.
func Middleware(l *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = fmt.Sprintf("req-%s", uuid.New().String())
			c.Request.Header.Set(RequestIDHeader, requestID)
		}
		c.Writer.Header().Set(RequestIDHeader, requestID)

		ctx := WithFields(c.Request.Context(),
			Field{"request_id", requestID},
			Field{"path", c.Request.URL.Path},
			Field{"method", c.Request.Method},
			Field{"client_ip", GetRealClientIP(c)},
			Field{"user_agent", c.Request.UserAgent()},
		)
		if c.Request.ContentLength > 0 {
			ctx = WithFields(ctx, Field{"content_length", c.Request.ContentLength})
		}
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				l.Error(ctx, "Recovered from panic", fmt.Errorf("reason: %+v", r))
				c.AbortWithStatusJSON(500, gin.H{
					"status":  "error",
					"message": "There was an error saving your request. Please try again.",
				})
			}

			if c.Request.URL.Path == "/health" {
				return
			}
			l.Info(ctx, "Request processed",
				Field{"status", c.Writer.Status()},
				Field{"latency_ns", time.Since(start).Nanoseconds()},
			)
		}()
		c.Next()
	}
}

// Logger represents a custom logger with Zap integration.
type Logger struct {
	zapLogger *zap.Logger
}

// NewLogger creates a production logger at info level.
func NewLogger() *Logger {
	l, err := New("info", true)
	if err != nil {
		return NewNop()
	}
	return l
}

// New creates a logger for the given level. Production loggers emit JSON,
// everything else uses the console encoder.
func New(level string, production bool) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	if production {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	zapLogger, err := cfg.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{zapLogger: zapLogger}, nil
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{zapLogger: zap.NewNop()}
}

// NewWithCore wraps an existing zap core.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{zapLogger: zap.New(core)}
}

// Create a logger with fields from context.
func (l *Logger) loggerFromContext(ctx context.Context, extra []Field) *zap.Logger {
	fields := getObservabilityFields(ctx)
	zapFields := make([]zapcore.Field, 0, len(fields)+len(extra))
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	for _, f := range extra {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return l.zapLogger.With(zapFields...)
}

// Info logs an informational message with context-based fields.
func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.loggerFromContext(ctx, fields).Info(msg)
}

// Error logs an error message with context-based fields.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	l.loggerFromContext(ctx, nil).Error(msg, zap.Error(err))
}

// Warn logs a warning message with context-based fields.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.loggerFromContext(ctx, fields).Warn(msg)
}

// WarnWithError logs a warning message with context and an error.
func (l *Logger) WarnWithError(ctx context.Context, msg string, err error) {
	l.loggerFromContext(ctx, nil).Warn(msg, zap.Error(err))
}

// Debug logs a debug message with context-based fields.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.loggerFromContext(ctx, fields).Debug(msg)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.zapLogger.Sync()
}
