package routes

import (
	"net/http"

	"admin-bff/internal/config"
	"admin-bff/internal/validate"
)

var (
	DiscountTypes   = []string{"PERCENTAGE", "FIXED"}
	CampaignChannel = []string{"EMAIL", "SMS", "PUSH"}
)

func campaignBody(create bool) validate.Object {
	o := validate.Object{
		"name":       validate.String(200),
		"channel":    validate.OneOf(CampaignChannel...),
		"subject":    validate.String(200),
		"content":    validate.String(20_000),
		"segmentId":  validate.IDRef(),
		"scheduleAt": validate.String(32),
	}
	if create {
		o["name"] = o["name"].Req()
		o["channel"] = o["channel"].Req()
	}
	return o
}

func operationsRoutes() []Route {
	approvals := config.ServiceApprovals
	marketing := config.ServiceMarketing
	tax := config.ServiceTax
	notifications := config.ServiceNotifications

	return []Route{
		// Approvals
		{
			Name: "approvals.list", Method: http.MethodGet, Path: "/api/approvals",
			Service: approvals, Upstream: "/approvals",
			Query: list(validate.Query{"status": validate.OneOf(ApprovalStatuses...), "type": validate.IDRef()}),
		},
		{
			Name: "approvals.get", Method: http.MethodGet, Path: "/api/approvals/:id",
			Service: approvals, Upstream: "/approvals/:id",
		},
		{
			Name: "approvals.approve", Method: http.MethodPost, Path: "/api/approvals/:id/approve",
			Service: approvals, Upstream: "/approvals/:id/approve",
			Body:        validate.Object{"comment": validate.String(1000)},
			Invalidates: []string{"approvals"},
		},
		{
			Name: "approvals.reject", Method: http.MethodPost, Path: "/api/approvals/:id/reject",
			Service: approvals, Upstream: "/approvals/:id/reject",
			Body:        validate.Object{"reason": validate.String(1000).Req()},
			Invalidates: []string{"approvals"},
		},

		// Marketing
		{
			Name: "campaigns.list", Method: http.MethodGet, Path: "/api/marketing/campaigns",
			Service: marketing, Upstream: "/campaigns",
			Query: validate.Pagination,
			Cache: cached("campaigns", 60),
		},
		{
			Name: "campaigns.get", Method: http.MethodGet, Path: "/api/marketing/campaigns/:id",
			Service: marketing, Upstream: "/campaigns/:id",
			Cache: cached("campaigns", 60),
		},
		{
			Name: "campaigns.create", Method: http.MethodPost, Path: "/api/marketing/campaigns",
			Service: marketing, Upstream: "/campaigns",
			Body: campaignBody(true), Invalidates: []string{"campaigns"},
		},
		{
			Name: "campaigns.update", Method: http.MethodPut, Path: "/api/marketing/campaigns/:id",
			Service: marketing, Upstream: "/campaigns/:id",
			Body: campaignBody(false), Invalidates: []string{"campaigns"},
		},
		{
			Name: "campaigns.delete", Method: http.MethodDelete, Path: "/api/marketing/campaigns/:id",
			Service: marketing, Upstream: "/campaigns/:id",
			Invalidates: []string{"campaigns"},
		},
		{
			Name: "coupons.list", Method: http.MethodGet, Path: "/api/marketing/coupons",
			Service: marketing, Upstream: "/coupons",
			Query: list(validate.Query{"active": validate.Bool()}),
			Cache: cached("coupons", 60),
		},
		{
			Name: "coupons.create", Method: http.MethodPost, Path: "/api/marketing/coupons",
			Service: marketing, Upstream: "/coupons",
			Body: validate.Object{
				"code":          validate.IDRef().Req(),
				"discountType":  validate.OneOf(DiscountTypes...).Req(),
				"discountValue": validate.Number(0, 1_000_000).Req(),
				"maxUses":       validate.Int(0, 10_000_000),
				"active":        validate.Bool(),
				"expiresAt":     validate.String(32),
			},
			Invalidates: []string{"coupons"},
		},
		{
			Name: "coupons.delete", Method: http.MethodDelete, Path: "/api/marketing/coupons/:id",
			Service: marketing, Upstream: "/coupons/:id",
			Invalidates: []string{"coupons"},
		},

		// Tax
		{
			Name: "tax.rules.list", Method: http.MethodGet, Path: "/api/tax/rules",
			Service: tax, Upstream: "/tax/rules",
			Query: list(validate.Query{"country": validate.String(64)}),
			Cache: cached("tax", 120),
		},
		{
			Name: "tax.rules.create", Method: http.MethodPost, Path: "/api/tax/rules",
			Service: tax, Upstream: "/tax/rules",
			Body: validate.Object{
				"name":     validate.String(100).Req(),
				"rate":     validate.Number(0, 100).Req(),
				"country":  validate.String(64).Req(),
				"region":   validate.String(64),
				"category": validate.IDRef(),
			},
			Invalidates: []string{"tax"},
		},
		{
			Name: "tax.rules.update", Method: http.MethodPut, Path: "/api/tax/rules/:id",
			Service: tax, Upstream: "/tax/rules/:id",
			Body: validate.Object{
				"name":     validate.String(100),
				"rate":     validate.Number(0, 100),
				"country":  validate.String(64),
				"region":   validate.String(64),
				"category": validate.IDRef(),
			},
			Invalidates: []string{"tax"},
		},
		{
			Name: "tax.rules.delete", Method: http.MethodDelete, Path: "/api/tax/rules/:id",
			Service: tax, Upstream: "/tax/rules/:id",
			Invalidates: []string{"tax"},
		},
		{
			// Read-only calculation; nothing to invalidate.
			Name: "tax.calculate", Method: http.MethodPost, Path: "/api/tax/calculate",
			Service: tax, Upstream: "/tax/calculate",
			Body: validate.Object{
				"amount":  validate.Number(0, 1_000_000_000).Req(),
				"country": validate.String(64).Req(),
				"region":  validate.String(64),
			},
		},

		// Notifications
		{
			Name: "notifications.list", Method: http.MethodGet, Path: "/api/notifications",
			Service: notifications, Upstream: "/notifications",
			Query: list(validate.Query{"unread": validate.Bool()}),
		},
		{
			Name: "notifications.read_all", Method: http.MethodPost, Path: "/api/notifications/read-all",
			Service: notifications, Upstream: "/notifications/read-all",
			Invalidates: []string{"notifications"},
		},
		{
			Name: "notifications.mark_read", Method: http.MethodPatch, Path: "/api/notifications/:id/read",
			Service: notifications, Upstream: "/notifications/:id/read",
			Invalidates: []string{"notifications"},
		},
		{
			Name: "notifications.preferences", Method: http.MethodGet, Path: "/api/notifications/preferences",
			Service: notifications, Upstream: "/notifications/preferences",
		},
		{
			Name: "notifications.update_preferences", Method: http.MethodPut, Path: "/api/notifications/preferences",
			Service: notifications, Upstream: "/notifications/preferences",
			Body: validate.Object{
				"email":    validate.Bool(),
				"sms":      validate.Bool(),
				"push":     validate.Bool(),
				"channels": validate.Nested(),
			},
			Invalidates: []string{"notifications"},
		},
	}
}
