// Package service executes declared routes against backend services.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"admin-bff/internal/audit"
	"admin-bff/internal/cache"
	"admin-bff/internal/claims"
	"admin-bff/internal/client"
	"admin-bff/internal/config"
	"admin-bff/internal/metrics"
	"admin-bff/internal/model"
	"admin-bff/internal/routes"
	"admin-bff/internal/validate"
)

// Cache status values reported in the X-Cache response header.
const (
	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// Backend sends one request to a backend service.
type Backend interface {
	Do(ctx context.Context, call client.Call) (*client.Result, error)
}

// Inbound is the browser request as seen by the route handler.
type Inbound struct {
	Params    map[string]string
	Query     url.Values
	Body      []byte
	Header    http.Header
	RemoteIP  string
	RequestID string
}

// Outcome is the executed route's response plus caching metadata for the
// handler.
type Outcome struct {
	Response model.ProxyResponse
	// CacheStatus is CacheHit or CacheMiss for cacheable routes, else empty.
	CacheStatus string
	CacheTTL    time.Duration
}

// Executor runs routes: claims, validation, cache, backend call,
// transform, invalidation and audit.
type Executor struct {
	cfg       *config.Config
	extractor *claims.Extractor
	backend   Backend
	cache     *cache.Cache
	audit     audit.Recorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewExecutor creates an Executor. rec may be nil to disable auditing, c
// to disable caching. The metrics parameter is optional.
func NewExecutor(cfg *config.Config, x *claims.Extractor, b Backend, c *cache.Cache, rec audit.Recorder, logger *slog.Logger, m *metrics.Metrics) *Executor {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Executor{
		cfg:       cfg,
		extractor: x,
		backend:   b,
		cache:     c,
		audit:     rec,
		logger:    logger.With("component", "executor"),
		metrics:   m,
	}
}

// Execute runs r for one inbound request. Errors are either input errors
// (*validate.Error, claims errors) returned before any backend call, or
// *client.UpstreamError when the backend produced no response.
func (e *Executor) Execute(ctx context.Context, r routes.Route, in Inbound) (*Outcome, error) {
	pr, err := e.prepare(r, in)
	if err != nil {
		return nil, err
	}

	cacheable := r.Cache != nil && !r.Mutating() && e.cache != nil && pr.Identity.TenantID != ""
	upstream, err := r.Expand(pr.Params, pr.Identity.TenantID)
	if err != nil {
		return nil, err
	}

	var key string
	if cacheable {
		key = e.cache.Key(pr.Identity.TenantID, r.Cache.Resource, upstream, pr.Query)
		if entry, ok := e.cache.Get(ctx, r.Cache.Resource, key); ok {
			return &Outcome{
				Response:    model.ProxyResponse{StatusCode: entry.Status, Header: entry.Header, Body: entry.Body},
				CacheStatus: CacheHit,
				CacheTTL:    r.Cache.TTL,
			}, nil
		}
	}

	baseURL, ok := e.cfg.ServiceURL(r.Service)
	if !ok {
		return nil, fmt.Errorf("route %s: no URL configured for service %q", r.Name, r.Service)
	}

	e.logger.Debug("forwarding request",
		"route", r.Name,
		"service", r.Service,
		"method", r.Method,
		"path", upstream,
	)

	res, err := e.backend.Do(ctx, client.Call{
		Service: r.Service,
		Method:  r.Method,
		BaseURL: baseURL,
		Path:    upstream,
		Query:   pr.Query,
		Header:  pr.Header,
		Body:    pr.Body,
		Timeout: r.Timeout,
	})
	if err != nil {
		return nil, err
	}

	success := res.StatusCode >= 200 && res.StatusCode < 300
	body := res.Body
	if success && r.Transform != nil && body != nil {
		out, terr := r.Transform(body)
		if terr != nil {
			e.logger.Warn("response transform failed, passing body through",
				"route", r.Name,
				"err", terr,
			)
		} else {
			body = out
		}
	}

	out := &Outcome{Response: model.ProxyResponse{StatusCode: res.StatusCode, Header: res.Header, Body: body}}

	if cacheable {
		out.CacheStatus = CacheMiss
		out.CacheTTL = r.Cache.TTL
		if success {
			e.cache.Set(ctx, key, cache.Entry{Status: res.StatusCode, Header: res.Header, Body: body}, r.Cache.TTL)
		}
	}

	if r.Mutating() && success {
		if e.cache != nil && pr.Identity.TenantID != "" {
			for _, resource := range r.Invalidates {
				e.cache.Invalidate(ctx, pr.Identity.TenantID, resource)
			}
		}
		e.audit.Record(audit.Entry{
			TenantID:   pr.Identity.TenantID,
			UserID:     pr.Identity.UserID,
			Method:     r.Method,
			Route:      r.Name,
			Resource:   r.Resource(),
			ResourceID: resourceID(r, pr.Params),
			Status:     res.StatusCode,
			RequestID:  pr.RequestID,
		})
	}

	return out, nil
}

// prepare checks identity and input and builds the request to forward. No
// backend is contacted when it fails.
func (e *Executor) prepare(r routes.Route, in Inbound) (*model.ProxyRequest, error) {
	id, fwd, err := e.extractor.Extract(in.Header, in.RemoteIP)
	if err != nil && !r.Public {
		return nil, err
	}
	if r.Public {
		// Public routes never carry tenant context upstream.
		id = model.Identity{}
		fwd.Del(claims.HeaderTenantID)
		fwd.Del(claims.HeaderUserID)
	}
	if in.RequestID != "" && fwd.Get(claims.HeaderRequestID) == "" {
		fwd.Set(claims.HeaderRequestID, in.RequestID)
	}

	params := make(map[string]string, len(in.Params))
	for _, name := range r.ParamNames() {
		v := in.Params[name]
		if err := validate.ID(name, v); err != nil {
			return nil, err
		}
		params[name] = v
	}

	query := in.Query
	if query == nil {
		query = url.Values{}
	}
	if r.Query != nil {
		if err := r.Query.Check(query); err != nil {
			return nil, err
		}
	}

	var body []byte
	if r.Mutating() {
		body, err = checkBody(r, in.Body)
		if err != nil {
			return nil, err
		}
	}

	return &model.ProxyRequest{
		Method:    r.Method,
		Params:    params,
		Query:     query,
		Body:      body,
		Header:    fwd,
		Identity:  id,
		RequestID: in.RequestID,
	}, nil
}

// checkBody applies the route schema. Without a schema an empty body is
// forwarded empty and anything else must still be a JSON object.
func checkBody(r routes.Route, raw []byte) ([]byte, error) {
	if r.Body == nil {
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, nil
		}
		return validate.Object{}.Check(raw)
	}
	return r.Body.Check(raw)
}

func resourceID(r routes.Route, params map[string]string) string {
	if id, ok := params["id"]; ok {
		return id
	}
	if names := r.ParamNames(); len(names) > 0 {
		return params[names[0]]
	}
	return ""
}
