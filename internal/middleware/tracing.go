package middleware

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"admin-bff/internal/tracing"
)

// ServerSpan starts a server span per request, continuing any trace
// context (W3C or B3) sent by the caller.
func ServerSpan() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}

			ctx := tracing.Extract(req.Context(), req.Header)
			ctx, span := tracing.StartSpan(ctx, req.Method+" "+route, trace.SpanKindServer,
				attribute.String("http.request.method", req.Method),
				attribute.String("http.route", route),
				attribute.String("url.path", req.URL.Path),
			)
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				tracing.SetError(span, err)
				c.Error(err)
			}
			span.SetAttributes(attribute.Int("http.response.status_code", c.Response().Status))
			return nil
		}
	}
}
