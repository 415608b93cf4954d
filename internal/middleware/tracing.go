package middleware

import (
	"fmt"

	"reelshare/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware adds OpenTelemetry tracing to requests
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		spanName := fmt.Sprintf("%s %s", c.Method(), c.Path())
		ctx, span := observability.Tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.path", c.Path()),
				attribute.String("http.url", c.OriginalURL()),
				attribute.String("http.ip", c.IP()),
				attribute.String("http.user_agent", c.Get("User-Agent")),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Locals("spanID", span.SpanContext().SpanID().String())

		if requestID := c.Locals("requestid"); requestID != nil {
			span.SetAttributes(attribute.String("request.id", fmt.Sprintf("%v", requestID)))
		}
		if uid := c.Get(UserIDHeader); uid != "" {
			span.SetAttributes(attribute.String("user.id", uid))
		}

		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)

		err := c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Response().StatusCode()))
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error", err.Error()))
		}
		return err
	}
}
