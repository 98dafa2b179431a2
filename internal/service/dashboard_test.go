package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"admin-bff/internal/claims"
)

type dashboardBody struct {
	Success bool `json:"success"`
	Data    struct {
		Orders      map[string]any `json:"orders"`
		Revenue     map[string]any `json:"revenue"`
		Customers   map[string]any `json:"customers"`
		LowStock    []any          `json:"lowStock"`
		Tickets     map[string]any `json:"tickets"`
		Unavailable []string       `json:"unavailable"`
	} `json:"data"`
}

func dashboardHandler(overrides map[string]http.HandlerFunc) http.HandlerFunc {
	healthy := map[string]string{
		"/orders/stats":             `{"success":true,"data":{"totalOrders":12,"pendingOrders":3}}`,
		"/payments/revenue-summary": `{"success":true,"data":{"totalRevenue":1500.5}}`,
		"/customers/stats":          `{"totalCustomers":40}`,
		"/inventory/low-stock":      `{"success":true,"data":[{"sku":"MUG-1","quantity":2}]}`,
		"/tickets/stats":            `{"success":true,"data":{"open":4}}`,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := overrides[r.URL.Path]; ok {
			h(w, r)
			return
		}
		body, ok := healthy[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		jsonHandler(http.StatusOK, body)(w, r)
	}
}

func decodeDashboard(t *testing.T, raw json.RawMessage) dashboardBody {
	t.Helper()
	var body dashboardBody
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode dashboard: %v (%s)", err, raw)
	}
	return body
}

func TestDashboard_AllPartsUp(t *testing.T) {
	h := newHarness(t, dashboardHandler(nil))

	out, err := h.exec.Dashboard(context.Background(), Inbound{Header: tenantHeader("acme")})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if out.Response.StatusCode != http.StatusOK {
		t.Errorf("status = %d", out.Response.StatusCode)
	}
	if n := h.backend.calls.Load(); n != 5 {
		t.Errorf("backend calls = %d, want 5", n)
	}

	body := decodeDashboard(t, out.Response.Body)
	if !body.Success {
		t.Error("success = false")
	}
	if body.Data.Orders["totalOrders"] != float64(12) {
		t.Errorf("orders = %v", body.Data.Orders)
	}
	if body.Data.Revenue["totalRevenue"] != 1500.5 {
		t.Errorf("revenue = %v", body.Data.Revenue)
	}
	if body.Data.Customers["totalCustomers"] != float64(40) {
		t.Errorf("customers (bare body) = %v", body.Data.Customers)
	}
	if len(body.Data.LowStock) != 1 {
		t.Errorf("lowStock = %v", body.Data.LowStock)
	}
	if len(body.Data.Unavailable) != 0 {
		t.Errorf("unavailable = %v, want empty", body.Data.Unavailable)
	}

	got := h.backend.last(t)
	if got.Header.Get("X-Tenant-ID") != "acme" {
		t.Errorf("X-Tenant-ID = %q", got.Header.Get("X-Tenant-ID"))
	}
}

func TestDashboard_PartialFailure(t *testing.T) {
	h := newHarness(t, dashboardHandler(map[string]http.HandlerFunc{
		"/tickets/stats": jsonHandler(http.StatusInternalServerError, `{"success":false}`),
		"/inventory/low-stock": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "<html>oops</html>")
		},
	}))

	out, err := h.exec.Dashboard(context.Background(), Inbound{Header: tenantHeader("acme")})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if out.Response.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", out.Response.StatusCode)
	}

	body := decodeDashboard(t, out.Response.Body)
	if want := []string{"lowStock", "tickets"}; !reflect.DeepEqual(body.Data.Unavailable, want) {
		t.Errorf("unavailable = %v, want %v", body.Data.Unavailable, want)
	}
	if body.Data.LowStock == nil || len(body.Data.LowStock) != 0 {
		t.Errorf("lowStock = %v, want empty array", body.Data.LowStock)
	}
	if body.Data.Tickets["open"] != float64(0) {
		t.Errorf("tickets = %v, want zero values", body.Data.Tickets)
	}
	if body.Data.Orders["totalOrders"] != float64(12) || body.Data.Revenue["totalRevenue"] != 1500.5 ||
		body.Data.Customers["totalCustomers"] != float64(40) {
		t.Errorf("healthy parts not populated: %+v", body.Data)
	}

	if got := testutil.ToFloat64(h.metrics.FanoutFailures.WithLabelValues("dashboard", "tickets")); got != 1 {
		t.Errorf("fanout failures for tickets = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.metrics.FanoutFailures.WithLabelValues("dashboard", "orders")); got != 0 {
		t.Errorf("fanout failures for orders = %v, want 0", got)
	}
}

func TestDashboard_AllPartsDown(t *testing.T) {
	h := newHarness(t, jsonHandler(200, `{}`))
	h.backend.srv.Close()

	out, err := h.exec.Dashboard(context.Background(), Inbound{Header: tenantHeader("acme")})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	body := decodeDashboard(t, out.Response.Body)
	if len(body.Data.Unavailable) != len(dashboardParts) {
		t.Errorf("unavailable = %v", body.Data.Unavailable)
	}
}

func TestDashboard_MissingTenant(t *testing.T) {
	h := newHarness(t, dashboardHandler(nil))

	_, err := h.exec.Dashboard(context.Background(), Inbound{Header: http.Header{}})
	if !errors.Is(err, claims.ErrMissingTenantContext) {
		t.Fatalf("Dashboard() error = %v, want ErrMissingTenantContext", err)
	}
	if n := h.backend.calls.Load(); n != 0 {
		t.Errorf("backend calls = %d, want 0", n)
	}
}

func TestUnwrapData(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"success":true,"data":{"a":1}}`, `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{`[1,2]`, `[1,2]`},
		{`{"data":null}`, ``},
	}
	for _, tt := range tests {
		got := unwrapData(json.RawMessage(tt.in))
		if string(got) != tt.want {
			t.Errorf("unwrapData(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
