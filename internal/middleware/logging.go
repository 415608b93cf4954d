// Package middleware provides request-scoped Fiber middleware for the API.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"reelshare/internal/models"
	"reelshare/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// UserIDHeader is the header the middleware reads the acting user from.
const UserIDHeader = models.UserIDHeader

// ContextMiddleware injects request ID, user ID and trace ID from Fiber locals into the request context.
// This allows these values to be picked up by the context-aware logger even in deep service layers.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			ctx = context.WithValue(ctx, observability.RequestIDKey, rid)
		}

		if uid := c.Get(UserIDHeader); uid != "" {
			c.Locals("userID", uid)
			ctx = observability.WithUserID(ctx, uid)
		}

		if tid, ok := c.Locals("traceID").(string); ok && tid != "" {
			ctx = context.WithValue(ctx, observability.TraceIDKey, tid)
		}

		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger returns a Fiber middleware for logging requests using slog
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		fields := []any{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
			slog.String("user_agent", c.Get("User-Agent")),
		}

		// InfoContext/ErrorContext so the ctxHandler can pick up the rid/uid
		switch {
		case err != nil:
			fields = append(fields, slog.String("error", err.Error()))
			observability.Logger.ErrorContext(c.UserContext(), "request failed", fields...)
		case status >= fiber.StatusInternalServerError:
			observability.Logger.ErrorContext(c.UserContext(), "request failed", fields...)
		default:
			observability.Logger.InfoContext(c.UserContext(), "request processed", fields...)
		}

		return err
	}
}
