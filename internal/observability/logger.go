// Package observability provides logging helpers for connectr.
package observability

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/masq"

	"github.com/jmylchreest/connectr/internal/config"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"

	loggerKey contextKey = "logger"
)

// Redacted replaces sensitive values in log output.
const Redacted = "[REDACTED]"

// Secret marks a string that must never be written to logs. Values of this
// type are replaced regardless of the attribute key they are logged under.
type Secret string

// sensitiveKeys are matched case-insensitively as substrings of attribute keys
// and URL query parameter names.
var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"checksum",
	"credential",
	"wskey",
	"hss_key",
	"identitykey",
	"apikey",
	"api_key",
}

var queryParamPattern = regexp.MustCompile(`([?&])([^=&#]+)=([^&#]*)`)

// NewLogger creates a new slog.Logger based on the provided configuration.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stderr)
}

// NewLoggerWithWriter creates a new slog.Logger that writes to the provided writer.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	redactTypes := masq.New(
		masq.WithType[Secret](),
		masq.WithFieldName("Password"),
		masq.WithFieldName("AuthToken"),
		masq.WithFieldName("DeviceToken"),
	)

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
				return a
			}
			if isSensitiveKey(a.Key) {
				return slog.String(a.Key, Redacted)
			}
			if a.Value.Kind() == slog.KindString && strings.Contains(a.Value.String(), "=") {
				return slog.String(a.Key, RedactURL(a.Value.String()))
			}
			return redactTypes(groups, a)
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// RedactURL replaces the values of sensitive query parameters in s.
// Strings that do not look like a query are returned unchanged.
func RedactURL(s string) string {
	return queryParamPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := queryParamPattern.FindStringSubmatch(m)
		name := parts[2]
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}
		if !isSensitiveKey(name) {
			return m
		}
		return parts[1] + parts[2] + "=" + Redacted
	})
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithOperation adds an operation name to the logger for tracking specific operations.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String("operation", operation))
}

// WithError adds an error to the logger attributes.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}

// LoggerFromContext extracts a logger from the context.
// If no logger is found, returns the default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ContextWithLogger adds a logger to the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// CorrelationIDFromContext extracts a correlation ID from the context.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithCorrelationID adds a correlation ID to the context.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// StartOperation tags ctx with a fresh correlation ID unless one is already
// present, and returns a logger carrying it.
func StartOperation(ctx context.Context, logger *slog.Logger, operation string) (context.Context, *slog.Logger) {
	id := CorrelationIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = ContextWithCorrelationID(ctx, id)
	}
	logger = logger.With(
		slog.String("operation", operation),
		slog.String("correlation_id", id),
	)
	return ContextWithLogger(ctx, logger), logger
}

// SetDefault sets the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// TimedOperationWithError logs the start and end of an operation, reporting
// failure when *errPtr is non-nil at the time the returned func runs.
//
// Usage:
//
//	var err error
//	done := observability.TimedOperationWithError(ctx, logger, "login", &err)
//	defer done()
//
//nolint:gocritic // errPtr must be a pointer to capture errors set after this call
func TimedOperationWithError(ctx context.Context, logger *slog.Logger, operation string, errPtr *error) func() {
	start := time.Now()
	logger.DebugContext(ctx, "operation started", slog.String("operation", operation))

	return func() {
		duration := time.Since(start)
		if errPtr != nil && *errPtr != nil {
			logger.WarnContext(ctx, "operation failed",
				slog.String("operation", operation),
				slog.Duration("duration", duration),
				slog.String("error", (*errPtr).Error()),
			)
			return
		}
		logger.DebugContext(ctx, "operation completed",
			slog.String("operation", operation),
			slog.Duration("duration", duration),
		)
	}
}
