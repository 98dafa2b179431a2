package routes

import (
	"net/http"

	"admin-bff/internal/config"
	"admin-bff/internal/validate"
)

// SearchTypes are the indexes the search service exposes to staff.
var SearchTypes = []string{"products", "orders", "customers"}

func platformRoutes() []Route {
	settings := config.ServiceSettings
	search := config.ServiceSearch
	location := config.ServiceLocation
	tenants := config.ServiceTenants
	domains := config.ServiceDomains
	flags := config.ServiceFlags

	return []Route{
		// Settings
		{
			Name: "settings.get", Method: http.MethodGet, Path: "/api/settings",
			Service: settings, Upstream: "/settings",
			Cache: cached("settings", 120),
		},
		{
			Name: "settings.update", Method: http.MethodPut, Path: "/api/settings",
			Service: settings, Upstream: "/settings",
			Body: validate.Object{
				"storeName":    validate.String(200),
				"currency":     validate.String(3),
				"timezone":     validate.String(64),
				"locale":       validate.String(16),
				"contactEmail": validate.String(254),
			},
			Invalidates: []string{"settings"},
		},
		{
			Name: "settings.section", Method: http.MethodGet, Path: "/api/settings/:section",
			Service: settings, Upstream: "/settings/:section",
			Cache: cached("settings", 120),
		},
		{
			Name: "settings.update_section", Method: http.MethodPut, Path: "/api/settings/:section",
			Service: settings, Upstream: "/settings/:section",
			Invalidates: []string{"settings"},
		},

		// Search
		{
			Name: "search.query", Method: http.MethodGet, Path: "/api/search",
			Service: search, Upstream: "/search",
			Query: list(validate.Query{
				"q":    validate.String(200).Req(),
				"type": validate.OneOf(SearchTypes...),
			}),
		},

		// Location
		{
			Name: "location.countries", Method: http.MethodGet, Path: "/api/location/countries",
			Service: location, Upstream: "/countries",
			Public: true,
		},
		{
			Name: "location.states", Method: http.MethodGet, Path: "/api/location/countries/:code/states",
			Service: location, Upstream: "/countries/:code/states",
			Public: true,
		},

		// Tenant profile
		{
			Name: "tenant.get", Method: http.MethodGet, Path: "/api/tenant",
			Service: tenants, Upstream: "/tenants/:tenant",
			Cache: cached("tenant", 120),
		},
		{
			Name: "tenant.update", Method: http.MethodPut, Path: "/api/tenant",
			Service: tenants, Upstream: "/tenants/:tenant",
			Body: validate.Object{
				"name":         validate.String(200),
				"contactEmail": validate.String(254),
				"logoUrl":      validate.String(2048),
			},
			Invalidates: []string{"tenant"},
		},

		// Custom domains
		{
			Name: "domains.list", Method: http.MethodGet, Path: "/api/domains",
			Service: domains, Upstream: "/domains",
			Cache: cached("domains", 60),
		},
		{
			Name: "domains.create", Method: http.MethodPost, Path: "/api/domains",
			Service: domains, Upstream: "/domains",
			Body:        validate.Object{"domain": validate.String(253).Req()},
			Invalidates: []string{"domains"},
		},
		{
			Name: "domains.verify", Method: http.MethodPost, Path: "/api/domains/:id/verify",
			Service: domains, Upstream: "/domains/:id/verify",
			Invalidates: []string{"domains"},
		},
		{
			Name: "domains.delete", Method: http.MethodDelete, Path: "/api/domains/:id",
			Service: domains, Upstream: "/domains/:id",
			Invalidates: []string{"domains"},
		},

		// Feature flags
		{
			Name: "flags.list", Method: http.MethodGet, Path: "/api/feature-flags",
			Service: flags, Upstream: "/flags",
			Cache: cached("feature-flags", 60),
		},
		{
			Name: "flags.get", Method: http.MethodGet, Path: "/api/feature-flags/:key",
			Service: flags, Upstream: "/flags/:key",
			Cache: cached("feature-flags", 60),
		},
	}
}
