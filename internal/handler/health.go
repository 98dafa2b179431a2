package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"admin-bff/internal/health"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	version Version
	started time.Time
	poller  *health.Poller
}

// NewHealthHandler creates a HealthHandler. poller may be nil, in which
// case readiness equals liveness.
func NewHealthHandler(v Version, poller *health.Poller) *HealthHandler {
	return &HealthHandler{version: v, started: time.Now(), poller: poller}
}

type liveness struct {
	Status        string       `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptimeSeconds"`
	Memory        memoryReport `json:"memory"`
	Goroutines    int          `json:"goroutines"`
}

type memoryReport struct {
	HeapAlloc uint64 `json:"heapAlloc"`
	HeapSys   uint64 `json:"heapSys"`
}

// Live reports process liveness with uptime and heap usage.
func (h *HealthHandler) Live(c echo.Context) error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(http.StatusOK, liveness{
		Status:        "ok",
		Version:       string(h.version),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Memory:        memoryReport{HeapAlloc: ms.HeapAlloc, HeapSys: ms.HeapSys},
		Goroutines:    runtime.NumGoroutine(),
	})
}

// Ready reports backend readiness from the last poll. It answers 503 while
// any required backend is down or its breaker is open.
func (h *HealthHandler) Ready(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	if h.poller == nil {
		return c.JSON(http.StatusOK, map[string]any{"status": "ready", "backends": []health.BackendStatus{}})
	}

	rep := h.poller.Snapshot()
	status, code := "ready", http.StatusOK
	if !rep.Ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]any{
		"status":   status,
		"backends": rep.Backends,
	})
}
