package handler

import (
	"github.com/labstack/echo/v4"

	"admin-bff/internal/routes"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, table routes.Table, rh *RouteHandler, health *HealthHandler, csrf *CSRFHandler, auth *AuthProxy) {
	e.GET("/api/health", health.Live)
	e.GET("/api/health/ready", health.Ready)
	e.GET("/api/csrf", csrf.Issue)
	e.GET("/api/dashboard", rh.Dashboard)

	e.Any("/auth/*", auth.Handle)

	for _, r := range table {
		e.Add(r.Method, r.Path, rh.Handle(r))
	}
}
