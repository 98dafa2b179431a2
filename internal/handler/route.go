package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"

	"admin-bff/internal/routes"
	"admin-bff/internal/service"
)

// RouteHandler executes declared routes and the dashboard aggregate.
type RouteHandler struct {
	exec   *service.Executor
	logger *slog.Logger
}

// NewRouteHandler creates a RouteHandler.
func NewRouteHandler(exec *service.Executor, logger *slog.Logger) *RouteHandler {
	return &RouteHandler{
		exec:   exec,
		logger: logger.With("component", "route_handler"),
	}
}

// Handle returns the echo handler for r.
func (h *RouteHandler) Handle(r routes.Route) echo.HandlerFunc {
	return func(c echo.Context) error {
		in, err := h.inbound(c, r)
		if err != nil {
			return err
		}
		out, err := h.exec.Execute(c.Request().Context(), r, in)
		if err != nil {
			return fmt.Errorf("%s: %w", r.Name, err)
		}
		setCacheHeaders(c, out, r.Mutating())
		return writeOutcome(c, out)
	}
}

// Dashboard serves the aggregated dashboard.
func (h *RouteHandler) Dashboard(c echo.Context) error {
	out, err := h.exec.Dashboard(c.Request().Context(), service.Inbound{
		Query:     c.QueryParams(),
		Header:    c.Request().Header,
		RemoteIP:  c.RealIP(),
		RequestID: requestID(c),
	})
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, no-cache")
	return writeOutcome(c, out)
}

func (h *RouteHandler) inbound(c echo.Context, r routes.Route) (service.Inbound, error) {
	params := make(map[string]string)
	for _, name := range r.ParamNames() {
		params[name] = c.Param(name)
	}

	var body []byte
	if r.Mutating() && c.Request().Body != nil {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				return service.Inbound{}, he
			}
			return service.Inbound{}, fmt.Errorf("read request body: %w", err)
		}
		body = b
	}

	return service.Inbound{
		Params:    params,
		Query:     c.QueryParams(),
		Body:      body,
		Header:    c.Request().Header,
		RemoteIP:  c.RealIP(),
		RequestID: requestID(c),
	}, nil
}

// setCacheHeaders marks cacheable reads as shareable for their TTL and
// every mutation as not storable.
func setCacheHeaders(c echo.Context, out *service.Outcome, mutating bool) {
	h := c.Response().Header()
	switch {
	case mutating:
		h.Set(echo.HeaderCacheControl, "no-store")
	case out.CacheStatus != "":
		ttl := strconv.Itoa(int(out.CacheTTL.Seconds()))
		h.Set(echo.HeaderCacheControl, "public, max-age="+ttl+", stale-while-revalidate="+ttl)
		h.Set("X-Cache", out.CacheStatus)
	}
}

func writeOutcome(c echo.Context, out *service.Outcome) error {
	h := c.Response().Header()
	for key, vals := range out.Response.Header {
		h.Del(key)
		for _, v := range vals {
			h.Add(key, v)
		}
	}
	if out.Response.Body == nil {
		return c.NoContent(out.Response.StatusCode)
	}
	return c.JSONBlob(out.Response.StatusCode, out.Response.Body)
}

// requestID returns the id assigned by the RequestID middleware.
func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

