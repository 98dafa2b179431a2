package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"admin-bff/internal/claims"
	"admin-bff/internal/client"
	"admin-bff/internal/config"
	"admin-bff/internal/model"
)

// dashboardPartTimeout bounds each dashboard sub-request independently.
const dashboardPartTimeout = 5 * time.Second

type dashboardPart struct {
	name    string
	service string
	path    string
	query   url.Values
	// zero is served when the part fails.
	zero json.RawMessage
}

var dashboardParts = []dashboardPart{
	{
		name: "orders", service: config.ServiceOrders, path: "/orders/stats",
		zero: json.RawMessage(`{"totalOrders":0,"pendingOrders":0,"completedOrders":0,"cancelledOrders":0}`),
	},
	{
		name: "revenue", service: config.ServicePayments, path: "/payments/revenue-summary",
		zero: json.RawMessage(`{"totalRevenue":0,"refunded":0,"net":0}`),
	},
	{
		name: "customers", service: config.ServiceCustomers, path: "/customers/stats",
		zero: json.RawMessage(`{"totalCustomers":0,"newCustomers":0}`),
	},
	{
		name: "lowStock", service: config.ServiceInventory, path: "/inventory/low-stock",
		query: url.Values{"limit": {"10"}},
		zero:  json.RawMessage(`[]`),
	},
	{
		name: "tickets", service: config.ServiceTickets, path: "/tickets/stats",
		zero: json.RawMessage(`{"open":0,"inProgress":0,"resolved":0}`),
	},
}

// Dashboard aggregates the dashboard sub-resources for the caller's tenant.
// Every part is requested concurrently; a failed part is replaced by its
// zero value and named in data.unavailable. The response is always 200
// once the caller's identity is established.
func (e *Executor) Dashboard(ctx context.Context, in Inbound) (*Outcome, error) {
	id, fwd, err := e.extractor.Extract(in.Header, in.RemoteIP)
	if err != nil {
		return nil, err
	}
	if in.RequestID != "" && fwd.Get(claims.HeaderRequestID) == "" {
		fwd.Set(claims.HeaderRequestID, in.RequestID)
	}

	results := make([]json.RawMessage, len(dashboardParts))
	var wg sync.WaitGroup
	for i, p := range dashboardParts {
		wg.Go(func() {
			results[i] = e.fetchPart(ctx, p, fwd)
		})
	}
	wg.Wait()

	data := make(map[string]any, len(dashboardParts)+1)
	unavailable := []string{}
	for i, p := range dashboardParts {
		if results[i] == nil {
			unavailable = append(unavailable, p.name)
			data[p.name] = p.zero
			if e.metrics != nil {
				e.metrics.FanoutFailures.WithLabelValues("dashboard", p.name).Inc()
			}
			continue
		}
		data[p.name] = results[i]
	}
	data["unavailable"] = unavailable

	if len(unavailable) > 0 {
		e.logger.Warn("dashboard served with defaulted parts",
			"tenant", id.TenantID,
			"unavailable", unavailable,
		)
	}

	body, err := json.Marshal(model.Envelope{Success: true, Data: data})
	if err != nil {
		return nil, err
	}
	return &Outcome{Response: model.ProxyResponse{StatusCode: http.StatusOK, Body: body}}, nil
}

// fetchPart returns the part's data, or nil when the call failed, returned
// a non-2xx status or carried no usable body.
func (e *Executor) fetchPart(ctx context.Context, p dashboardPart, header http.Header) json.RawMessage {
	baseURL, ok := e.cfg.ServiceURL(p.service)
	if !ok {
		return nil
	}
	res, err := e.backend.Do(ctx, client.Call{
		Service: p.service,
		Method:  http.MethodGet,
		BaseURL: baseURL,
		Path:    p.path,
		Query:   p.query,
		Header:  header,
		Timeout: dashboardPartTimeout,
	})
	if err != nil {
		e.logger.Debug("dashboard part failed", "part", p.name, "err", err)
		return nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 || res.Body == nil {
		e.logger.Debug("dashboard part unusable", "part", p.name, "status", res.StatusCode)
		return nil
	}
	return unwrapData(res.Body)
}

// unwrapData returns the envelope's data member, or body itself when it is
// not an envelope. A null data member counts as missing.
func unwrapData(body json.RawMessage) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Data == nil {
		return body
	}
	if bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return nil
	}
	return env.Data
}
