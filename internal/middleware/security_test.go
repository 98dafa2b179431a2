package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"admin-bff/internal/config"
	"admin-bff/internal/csrf"
)

func TestSecurityHeaders_AddsHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if v := rec.Header().Get("X-Content-Type-Options"); v != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", v, "nosniff")
	}
	if v := rec.Header().Get("X-Frame-Options"); v != "DENY" {
		t.Errorf("X-Frame-Options = %q, want %q", v, "DENY")
	}
	if v := rec.Header().Get("Referrer-Policy"); v != "no-referrer" {
		t.Errorf("Referrer-Policy = %q, want %q", v, "no-referrer")
	}
}

func TestSecurityHeaders_StripsHopByHop(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())

	var gotConnection string
	e.GET("/test", func(c echo.Context) error {
		gotConnection = c.Request().Header.Get("Connection")
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Proxy-Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if gotConnection != "" {
		t.Errorf("Connection header should be stripped, got %q", gotConnection)
	}
}

func testCSRFManager() *csrf.Manager {
	return csrf.NewManager(&config.CSRFConfig{
		Secret:     strings.Repeat("s", 32),
		CookieName: "bff_csrf",
		HeaderName: "X-CSRF-Token",
		TTLSeconds: 3600,
	})
}

func TestCSRFProtect(t *testing.T) {
	mgr := testCSRFManager()
	token := mgr.Issue().Value

	e := echo.New()
	e.Use(CSRFProtect(mgr))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/api/orders", ok)
	e.PATCH("/api/orders/:id/status", ok)
	e.POST("/auth/login", ok)

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		cookie     string
		wantStatus int
	}{
		{"read needs no token", http.MethodGet, "/api/orders", "", "", http.StatusNoContent},
		{"mutation with matching pair", http.MethodPatch, "/api/orders/o-1/status", token, token, http.StatusNoContent},
		{"mutation without token", http.MethodPatch, "/api/orders/o-1/status", "", "", http.StatusForbidden},
		{"header only", http.MethodPatch, "/api/orders/o-1/status", token, "", http.StatusForbidden},
		{"mismatch", http.MethodPatch, "/api/orders/o-1/status", token, mgr.Issue().Value, http.StatusForbidden},
		{"forged", http.MethodPatch, "/api/orders/o-1/status", "a.b.c", "a.b.c", http.StatusForbidden},
		{"auth paths exempt", http.MethodPost, "/auth/login", "", "", http.StatusNoContent},
	}

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if errors.Is(err, csrf.ErrMissingToken) || errors.Is(err, csrf.ErrMismatch) || errors.Is(err, csrf.ErrInvalidToken) {
			_ = c.NoContent(http.StatusForbidden)
			return
		}
		_ = c.NoContent(http.StatusInternalServerError)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "bff_csrf", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestNoStoreByDefault(t *testing.T) {
	e := echo.New()
	e.Use(NoStoreByDefault())
	e.GET("/api/plain", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})
	e.GET("/api/cached", func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=30")
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})
	e.GET("/other", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	tests := []struct {
		path string
		want string
	}{
		{"/api/plain", "no-store"},
		{"/api/cached", "public, max-age=30"},
		{"/other", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if got := rec.Header().Get(echo.HeaderCacheControl); got != tt.want {
			t.Errorf("%s Cache-Control = %q, want %q", tt.path, got, tt.want)
		}
	}
}
