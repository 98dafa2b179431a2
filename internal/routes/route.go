// Package routes declares every proxied BFF endpoint as data. One generic
// handler executes any Route: it checks path parameters, query and body,
// consults the cache for reads, forwards to the backend and invalidates
// the resources a mutation touches.
package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"admin-bff/internal/validate"
)

// TenantParam is a reserved upstream template parameter that expands to the
// caller's tenant id. It never comes from the inbound path.
const TenantParam = "tenant"

// Transform reshapes a successful backend body before it reaches the browser.
type Transform func(body json.RawMessage) (json.RawMessage, error)

// CachePolicy enables response caching for a read route.
type CachePolicy struct {
	// Resource groups entries for invalidation, e.g. "orders".
	Resource string
	TTL      time.Duration
}

// Route is one proxied endpoint.
type Route struct {
	// Name identifies the route in logs, metrics and the audit trail.
	Name   string
	Method string
	// Path is the inbound echo path, e.g. "/api/orders/:id/status".
	Path    string
	Service string
	// Upstream is the backend path template, e.g. "/orders/:id/status".
	Upstream string
	// Body is applied to mutating requests. Nil means the body must still
	// be a JSON object (or empty) but no field is checked.
	Body validate.Object
	// Query is applied to every request.
	Query       validate.Query
	Cache       *CachePolicy
	Invalidates []string
	// Public routes do not require a tenant claim.
	Public    bool
	Timeout   time.Duration
	Transform Transform
}

// Mutating reports whether the route changes backend state.
func (r Route) Mutating() bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// ParamNames returns the ":name" segments of the inbound path in order.
func (r Route) ParamNames() []string {
	var names []string
	for _, seg := range strings.Split(r.Path, "/") {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			names = append(names, name)
		}
	}
	return names
}

// Resource returns the primary resource name: the cache resource for reads,
// the first invalidated resource for writes, else the first path segment
// after /api.
func (r Route) Resource() string {
	if r.Cache != nil {
		return r.Cache.Resource
	}
	if len(r.Invalidates) > 0 {
		return r.Invalidates[0]
	}
	rest := strings.TrimPrefix(r.Path, "/api/")
	seg, _, _ := strings.Cut(rest, "/")
	return seg
}

// Expand fills the upstream template from validated path params and the
// caller's tenant. Values are path-escaped.
func (r Route) Expand(params map[string]string, tenant string) (string, error) {
	segs := strings.Split(r.Upstream, "/")
	for i, seg := range segs {
		name, ok := strings.CutPrefix(seg, ":")
		if !ok {
			continue
		}
		var v string
		if name == TenantParam {
			v = tenant
		} else {
			v = params[name]
		}
		if v == "" {
			return "", fmt.Errorf("route %s: no value for upstream parameter %q", r.Name, name)
		}
		segs[i] = url.PathEscape(v)
	}
	return strings.Join(segs, "/"), nil
}

// Table holds the declared routes.
type Table []Route

// Default returns every proxied route.
func Default() Table {
	var t Table
	t = append(t, orderRoutes()...)
	t = append(t, catalogRoutes()...)
	t = append(t, customerRoutes()...)
	t = append(t, operationsRoutes()...)
	t = append(t, platformRoutes()...)
	return t
}

// Check reports structural mistakes in the table: duplicate method+path
// pairs, unknown services, upstream parameters with no inbound source, and
// cache policies on mutating routes.
func (t Table) Check(knownService func(string) bool) error {
	seen := make(map[string]string, len(t))
	for _, r := range t {
		key := r.Method + " " + r.Path
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("routes %s and %s both declare %s", prev, r.Name, key)
		}
		seen[key] = r.Name

		if !knownService(r.Service) {
			return fmt.Errorf("route %s: unknown service %q", r.Name, r.Service)
		}
		if r.Cache != nil && r.Mutating() {
			return fmt.Errorf("route %s: mutating routes cannot be cached", r.Name)
		}
		if r.Cache != nil && r.Public {
			return fmt.Errorf("route %s: public routes cannot be cached per tenant", r.Name)
		}

		inbound := make(map[string]bool)
		for _, p := range r.ParamNames() {
			inbound[p] = true
		}
		for _, seg := range strings.Split(r.Upstream, "/") {
			name, ok := strings.CutPrefix(seg, ":")
			if !ok {
				continue
			}
			if name == TenantParam {
				if r.Public {
					return fmt.Errorf("route %s: public route uses the tenant parameter", r.Name)
				}
				continue
			}
			if !inbound[name] {
				return fmt.Errorf("route %s: upstream parameter %q missing from path", r.Name, name)
			}
		}
	}
	return nil
}

// Lookup returns the route with the given name.
func (t Table) Lookup(name string) (Route, bool) {
	for _, r := range t {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// ttl helpers keep the tables compact.
func cached(resource string, seconds int) *CachePolicy {
	return &CachePolicy{Resource: resource, TTL: time.Duration(seconds) * time.Second}
}

func list(extra validate.Query) validate.Query {
	return validate.Pagination.Merge(extra)
}
