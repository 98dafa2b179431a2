package routes

import (
	"net/http"
	"time"

	"admin-bff/internal/config"
	"admin-bff/internal/validate"
)

var (
	ApprovalStatuses = []string{"PENDING", "APPROVED", "REJECTED"}
	TicketStatuses   = []string{"OPEN", "IN_PROGRESS", "RESOLVED", "CLOSED"}
	TicketPriorities = []string{"LOW", "MEDIUM", "HIGH", "URGENT"}
	PaymentStatuses  = []string{"PENDING", "SUCCEEDED", "FAILED", "REFUNDED"}
)

func customerRoutes() []Route {
	customers := config.ServiceCustomers
	payments := config.ServicePayments
	tickets := config.ServiceTickets

	return []Route{
		// Customers
		{
			Name: "customers.list", Method: http.MethodGet, Path: "/api/customers",
			Service: customers, Upstream: "/customers",
			Query: list(validate.Query{"search": validate.String(100), "segment": validate.IDRef()}),
			Cache: cached("customers", 60),
		},
		{
			Name: "customers.stats", Method: http.MethodGet, Path: "/api/customers/stats",
			Service: customers, Upstream: "/customers/stats",
			Cache: cached("customers", 60),
		},
		{
			Name: "customers.get", Method: http.MethodGet, Path: "/api/customers/:id",
			Service: customers, Upstream: "/customers/:id",
			Cache: cached("customers", 60),
		},
		{
			Name: "customers.update", Method: http.MethodPut, Path: "/api/customers/:id",
			Service: customers, Upstream: "/customers/:id",
			Body: validate.Object{
				"firstName": validate.String(100),
				"lastName":  validate.String(100),
				"phone":     validate.String(32),
				"notes":     validate.String(2000),
				"tags":      validate.IDList(50),
			},
			Invalidates: []string{"customers"},
		},
		{
			Name: "customers.orders", Method: http.MethodGet, Path: "/api/customers/:id/orders",
			Service: customers, Upstream: "/customers/:id/orders",
			Query: validate.Pagination,
		},

		// Payments
		{
			Name: "payments.list", Method: http.MethodGet, Path: "/api/payments",
			Service: payments, Upstream: "/payments",
			Query: list(validate.Query{"status": validate.OneOf(PaymentStatuses...), "orderId": validate.IDRef()}),
		},
		{
			Name: "payments.revenue_summary", Method: http.MethodGet, Path: "/api/payments/revenue-summary",
			Service: payments, Upstream: "/payments/revenue-summary",
			Query: validate.Query{"period": validate.OneOf("day", "week", "month", "year")},
			Cache: cached("payments", 60),
		},
		{
			Name: "payments.get", Method: http.MethodGet, Path: "/api/payments/:id",
			Service: payments, Upstream: "/payments/:id",
		},
		{
			Name: "payments.refund", Method: http.MethodPost, Path: "/api/payments/:id/refund",
			Service: payments, Upstream: "/payments/:id/refund",
			Body: validate.Object{
				"amount": validate.Number(0.01, 1_000_000).Req(),
				"reason": validate.String(500),
			},
			Invalidates: []string{"payments", "orders"},
			Timeout:     30 * time.Second,
		},

		// Tickets
		{
			Name: "tickets.list", Method: http.MethodGet, Path: "/api/tickets",
			Service: tickets, Upstream: "/tickets",
			Query: list(validate.Query{
				"status":     validate.OneOf(TicketStatuses...),
				"priority":   validate.OneOf(TicketPriorities...),
				"assigneeId": validate.IDRef(),
			}),
		},
		{
			Name: "tickets.stats", Method: http.MethodGet, Path: "/api/tickets/stats",
			Service: tickets, Upstream: "/tickets/stats",
			Cache: cached("tickets", 30),
		},
		{
			Name: "tickets.get", Method: http.MethodGet, Path: "/api/tickets/:id",
			Service: tickets, Upstream: "/tickets/:id",
		},
		{
			Name: "tickets.create", Method: http.MethodPost, Path: "/api/tickets",
			Service: tickets, Upstream: "/tickets",
			Body: validate.Object{
				"subject":     validate.String(200).Req(),
				"description": validate.String(5000).Req(),
				"priority":    validate.OneOf(TicketPriorities...),
				"customerId":  validate.IDRef(),
				"orderId":     validate.IDRef(),
			},
			Invalidates: []string{"tickets"},
		},
		{
			Name: "tickets.update_status", Method: http.MethodPatch, Path: "/api/tickets/:id/status",
			Service: tickets, Upstream: "/tickets/:id/status",
			Body:        validate.Object{"status": validate.OneOf(TicketStatuses...).Req()},
			Invalidates: []string{"tickets"},
		},
		{
			Name: "tickets.assign", Method: http.MethodPatch, Path: "/api/tickets/:id/assign",
			Service: tickets, Upstream: "/tickets/:id/assign",
			Body:        validate.Object{"assigneeId": validate.IDRef().Req()},
			Invalidates: []string{"tickets"},
		},
		{
			Name: "tickets.reply", Method: http.MethodPost, Path: "/api/tickets/:id/messages",
			Service: tickets, Upstream: "/tickets/:id/messages",
			Body: validate.Object{
				"message":  validate.String(5000).Req(),
				"internal": validate.Bool(),
			},
			Invalidates: []string{"tickets"},
		},
	}
}
