// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger is the structured logger used throughout the application.
var Logger = NewLogger(os.Stdout, os.Getenv("APP_ENV"))

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// Context keys for logging
const (
	RequestIDKey  LogContextKey = "request_id"
	UserIDKey     LogContextKey = "user_id"
	TraceIDKey    LogContextKey = "trace_id"
	CorrelationID LogContextKey = "correlation_id"
)

// ctxHandler is a slog.Handler that adds context values to the log record.
type ctxHandler struct {
	slog.Handler
}

// Handle adds context values to the record before passing it to the underlying handler.
func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range []LogContextKey{RequestIDKey, UserIDKey, TraceIDKey, CorrelationID} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

// NewLogger builds a context-aware logger. Production gets JSON, everything else text.
func NewLogger(w io.Writer, env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(&ctxHandler{handler})
}

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		Logger = l
	}
}

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// WithUserID returns a new context carrying the acting user's ID for logging.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{tableName: tableName}
}

// LogCreate logs a repository create operation.
func (l *RepoLogger) LogCreate(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "create", fields)
}

// LogRead logs a repository read operation.
func (l *RepoLogger) LogRead(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "read", fields)
}

// LogUpdate logs a repository update operation.
func (l *RepoLogger) LogUpdate(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "update", fields)
}

// LogDelete logs a repository delete operation.
func (l *RepoLogger) LogDelete(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "delete", fields)
}

func (l *RepoLogger) log(ctx context.Context, operation string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	Logger.DebugContext(ctx, "repository "+operation, attrs...)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	Logger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// LogAsyncOperationError logs an error in a best-effort operation whose
// failure is swallowed by the caller.
func LogAsyncOperationError(ctx context.Context, operation string, err error, fields map[string]interface{}) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("type", "async_error"),
		slog.String("error", err.Error()),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	Logger.WarnContext(ctx, "best-effort operation failed", attrs...)
}
