package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/labstack/echo/v4"

	"admin-bff/internal/config"
	"admin-bff/internal/model"
	"admin-bff/internal/tracing"
)

// AuthProxy forwards /auth/* to the auth BFF unchanged. Redirects and
// Set-Cookie headers are returned to the browser, never followed.
type AuthProxy struct {
	proxy  *httputil.ReverseProxy
	logger *slog.Logger
}

// NewAuthProxy creates an AuthProxy for the configured auth service.
func NewAuthProxy(cfg *config.Config, logger *slog.Logger) (*AuthProxy, error) {
	raw, ok := cfg.ServiceURL(config.ServiceAuth)
	if !ok {
		return nil, fmt.Errorf("no URL configured for service %q", config.ServiceAuth)
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse auth service url: %w", err)
	}

	logger = logger.With("component", "auth_proxy")
	p := &AuthProxy{logger: logger}
	p.proxy = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
			tracing.Inject(r.Out.Context(), r.Out.Header)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("auth service unreachable", "err", err, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write(model.FailureJSON(model.CodeUnavailable, "auth service unavailable"))
		},
	}
	return p, nil
}

// Handle proxies the request.
func (p *AuthProxy) Handle(c echo.Context) error {
	p.proxy.ServeHTTP(c.Response(), c.Request())
	return nil
}
