package routes

import (
	"net/http"
	"time"

	"admin-bff/internal/config"
	"admin-bff/internal/validate"
)

var (
	ProductStatuses  = []string{"ACTIVE", "DRAFT", "ARCHIVED"}
	CategoryStatuses = []string{"ACTIVE", "INACTIVE"}
	ReviewStatuses   = []string{"PENDING", "APPROVED", "REJECTED"}
)

func productBody(create bool) validate.Object {
	o := validate.Object{
		"name":        validate.String(200),
		"description": validate.String(5000),
		"price":       validate.Number(0, 10_000_000),
		"compareAt":   validate.Number(0, 10_000_000),
		"sku":         validate.String(64),
		"categoryId":  validate.IDRef(),
		"status":      validate.OneOf(ProductStatuses...),
		"attributes":  validate.Nested(),
	}
	if create {
		o["name"] = o["name"].Req()
		o["price"] = o["price"].Req()
	}
	return o
}

func categoryBody(create bool) validate.Object {
	o := validate.Object{
		"name":        validate.String(100),
		"slug":        validate.IDRef(),
		"parentId":    validate.IDRef(),
		"description": validate.String(1000),
		"sortOrder":   validate.Int(0, 10_000),
	}
	if create {
		o["name"] = o["name"].Req()
	}
	return o
}

func catalogRoutes() []Route {
	products := config.ServiceProducts
	categories := config.ServiceCategories
	inventory := config.ServiceInventory
	reviews := config.ServiceReviews

	return []Route{
		// Products
		{
			Name: "products.list", Method: http.MethodGet, Path: "/api/products",
			Service: products, Upstream: "/products",
			Query: list(validate.Query{
				"status":     validate.OneOf(ProductStatuses...),
				"categoryId": validate.IDRef(),
				"search":     validate.String(100),
			}),
			Cache: cached("products", 60),
		},
		{
			Name: "products.get", Method: http.MethodGet, Path: "/api/products/:id",
			Service: products, Upstream: "/products/:id",
			Cache: cached("products", 60),
		},
		{
			Name: "products.create", Method: http.MethodPost, Path: "/api/products",
			Service: products, Upstream: "/products",
			Body: productBody(true), Invalidates: []string{"products"},
		},
		{
			Name: "products.update", Method: http.MethodPut, Path: "/api/products/:id",
			Service: products, Upstream: "/products/:id",
			Body: productBody(false), Invalidates: []string{"products"},
		},
		{
			Name: "products.update_status", Method: http.MethodPatch, Path: "/api/products/:id/status",
			Service: products, Upstream: "/products/:id/status",
			Body:        validate.Object{"status": validate.OneOf(ProductStatuses...).Req()},
			Invalidates: []string{"products"},
		},
		{
			Name: "products.delete", Method: http.MethodDelete, Path: "/api/products/:id",
			Service: products, Upstream: "/products/:id",
			Invalidates: []string{"products", "inventory"},
		},
		{
			Name: "products.bulk_status", Method: http.MethodPost, Path: "/api/products/bulk/status",
			Service: products, Upstream: "/products/bulk/status",
			Body: validate.Object{
				"ids":    validate.IDList(100).Req(),
				"status": validate.OneOf(ProductStatuses...).Req(),
			},
			Invalidates: []string{"products"},
			Timeout:     30 * time.Second,
		},

		// Categories
		{
			Name: "categories.list", Method: http.MethodGet, Path: "/api/categories",
			Service: categories, Upstream: "/categories",
			Query: list(validate.Query{"parentId": validate.IDRef(), "status": validate.OneOf(CategoryStatuses...)}),
			Cache: cached("categories", 120),
		},
		{
			Name: "categories.get", Method: http.MethodGet, Path: "/api/categories/:id",
			Service: categories, Upstream: "/categories/:id",
			Cache: cached("categories", 120),
		},
		{
			Name: "categories.create", Method: http.MethodPost, Path: "/api/categories",
			Service: categories, Upstream: "/categories",
			Body: categoryBody(true), Invalidates: []string{"categories"},
		},
		{
			Name: "categories.update", Method: http.MethodPut, Path: "/api/categories/:id",
			Service: categories, Upstream: "/categories/:id",
			Body: categoryBody(false), Invalidates: []string{"categories"},
		},
		{
			// Category visibility changes product listings as well.
			Name: "categories.update_status", Method: http.MethodPatch, Path: "/api/categories/:id/status",
			Service: categories, Upstream: "/categories/:id/status",
			Body:        validate.Object{"status": validate.OneOf(CategoryStatuses...).Req()},
			Invalidates: []string{"categories", "products"},
		},
		{
			Name: "categories.delete", Method: http.MethodDelete, Path: "/api/categories/:id",
			Service: categories, Upstream: "/categories/:id",
			Invalidates: []string{"categories", "products"},
		},

		// Inventory
		{
			Name: "inventory.list", Method: http.MethodGet, Path: "/api/inventory",
			Service: inventory, Upstream: "/inventory",
			Query: list(validate.Query{"warehouseId": validate.IDRef(), "search": validate.String(100)}),
			Cache: cached("inventory", 30),
		},
		{
			Name: "inventory.low_stock", Method: http.MethodGet, Path: "/api/inventory/low-stock",
			Service: inventory, Upstream: "/inventory/low-stock",
			Query: list(validate.Query{"threshold": validate.Int(0, 100_000)}),
			Cache: cached("inventory", 30),
		},
		{
			Name: "inventory.get", Method: http.MethodGet, Path: "/api/inventory/:id",
			Service: inventory, Upstream: "/inventory/:id",
			Cache: cached("inventory", 30),
		},
		{
			Name: "inventory.adjust", Method: http.MethodPost, Path: "/api/inventory/:id/adjust",
			Service: inventory, Upstream: "/inventory/:id/adjust",
			Body: validate.Object{
				"quantity":    validate.Int(-1_000_000, 1_000_000).Req(),
				"reason":      validate.String(500),
				"warehouseId": validate.IDRef(),
			},
			Invalidates: []string{"inventory", "products"},
		},

		// Reviews
		{
			Name: "reviews.list", Method: http.MethodGet, Path: "/api/reviews",
			Service: reviews, Upstream: "/reviews",
			Query: list(validate.Query{
				"status":    validate.OneOf(ReviewStatuses...),
				"rating":    validate.Int(1, 5),
				"productId": validate.IDRef(),
			}),
		},
		{
			Name: "reviews.moderate", Method: http.MethodPatch, Path: "/api/reviews/:id/status",
			Service: reviews, Upstream: "/reviews/:id/status",
			Body: validate.Object{
				"status": validate.OneOf(ReviewStatuses...).Req(),
				"reason": validate.String(500),
			},
			Invalidates: []string{"reviews", "products"},
		},
		{
			Name: "reviews.reply", Method: http.MethodPost, Path: "/api/reviews/:id/reply",
			Service: reviews, Upstream: "/reviews/:id/reply",
			Body:        validate.Object{"reply": validate.String(2000).Req()},
			Invalidates: []string{"reviews"},
		},
		{
			Name: "reviews.delete", Method: http.MethodDelete, Path: "/api/reviews/:id",
			Service: reviews, Upstream: "/reviews/:id",
			Invalidates: []string{"reviews", "products"},
		},
	}
}
