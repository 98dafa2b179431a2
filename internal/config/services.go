package config

import "fmt"

// Backend service names. Route definitions refer to backends by these names.
const (
	ServiceOrders        = "orders"
	ServiceProducts      = "products"
	ServiceCategories    = "categories"
	ServiceCustomers     = "customers"
	ServicePayments      = "payments"
	ServiceApprovals     = "approvals"
	ServiceTickets       = "tickets"
	ServiceReviews       = "reviews"
	ServiceTax           = "tax"
	ServiceInventory     = "inventory"
	ServiceSettings      = "settings"
	ServiceMarketing     = "marketing"
	ServiceNotifications = "notifications"
	ServiceSearch        = "search"
	ServiceLocation      = "location"
	ServiceTenants       = "tenants"
	ServiceDomains       = "domains"
	ServiceFlags         = "flags"
	ServiceAuth          = "auth"
)

// clusterDomain is the in-cluster DNS suffix used for default service URLs.
const clusterDomain = "marketplace.svc.cluster.local"

type serviceDef struct {
	env  string // environment variable overriding the URL
	host string // in-cluster service name
	port int
}

func (d serviceDef) defaultURL() string {
	return fmt.Sprintf("http://%s.%s:%d", d.host, clusterDomain, d.port)
}

var knownServices = map[string]serviceDef{
	ServiceOrders:        {env: "ORDERS_SERVICE_URL", host: "orders-service", port: 8080},
	ServiceProducts:      {env: "PRODUCTS_SERVICE_URL", host: "products-service", port: 8080},
	ServiceCategories:    {env: "CATEGORIES_SERVICE_URL", host: "categories-service", port: 8080},
	ServiceCustomers:     {env: "CUSTOMERS_SERVICE_URL", host: "customers-service", port: 8080},
	ServicePayments:      {env: "PAYMENTS_SERVICE_URL", host: "payments-service", port: 8080},
	ServiceApprovals:     {env: "APPROVALS_SERVICE_URL", host: "approvals-service", port: 8080},
	ServiceTickets:       {env: "TICKETS_SERVICE_URL", host: "tickets-service", port: 8080},
	ServiceReviews:       {env: "REVIEWS_SERVICE_URL", host: "reviews-service", port: 8080},
	ServiceTax:           {env: "TAX_SERVICE_URL", host: "tax-service", port: 8080},
	ServiceInventory:     {env: "INVENTORY_SERVICE_URL", host: "inventory-service", port: 8080},
	ServiceSettings:      {env: "SETTINGS_SERVICE_URL", host: "settings-service", port: 8080},
	ServiceMarketing:     {env: "MARKETING_SERVICE_URL", host: "marketing-service", port: 8080},
	ServiceNotifications: {env: "NOTIFICATION_HUB_URL", host: "notification-hub", port: 8080},
	ServiceSearch:        {env: "SEARCH_SERVICE_URL", host: "search-service", port: 8080},
	ServiceLocation:      {env: "LOCATION_SERVICE_URL", host: "location-service", port: 8080},
	ServiceTenants:       {env: "TENANTS_SERVICE_URL", host: "tenants-service", port: 8080},
	ServiceDomains:       {env: "CUSTOM_DOMAINS_SERVICE_URL", host: "custom-domains-service", port: 8080},
	ServiceFlags:         {env: "FEATURE_FLAGS_SERVICE_URL", host: "feature-flags-service", port: 8080},
	ServiceAuth:          {env: "AUTH_BFF_URL", host: "auth-bff", port: 8080},
}

// ServiceEnvVar returns the environment variable that overrides the URL of
// the named service.
func ServiceEnvVar(name string) (string, bool) {
	def, ok := knownServices[name]
	return def.env, ok
}
