package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"admin-bff/internal/csrf"
)

// hopByHopHeaders are headers that should not be forwarded by proxies.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// SecurityHeaders returns an Echo middleware that adds security headers
// and strips hop-by-hop headers from requests.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")

			return next(c)
		}
	}
}

// CSRFProtect rejects mutating /api requests whose CSRF header does not
// match a valid token cookie.
func CSRFProtect(mgr *csrf.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if isMutating(req.Method) && strings.HasPrefix(req.URL.Path, "/api/") {
				if err := mgr.Check(req); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}

// NoStoreByDefault marks /api responses as not storable unless the handler
// chose a cache policy.
func NoStoreByDefault() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, "/api/") {
				res := c.Response()
				res.Before(func() {
					if res.Header().Get(echo.HeaderCacheControl) == "" {
						res.Header().Set(echo.HeaderCacheControl, "no-store")
					}
				})
			}
			return next(c)
		}
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
