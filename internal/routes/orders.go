package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"admin-bff/internal/config"
	"admin-bff/internal/validate"
)

// Order status tokens. The orders service owns the transition graph; the
// BFF only checks membership before forwarding.
var (
	OrderStatuses       = []string{"PLACED", "CONFIRMED", "PROCESSING", "COMPLETED", "CANCELLED"}
	FulfillmentStatuses = []string{"UNFULFILLED", "SHIPPED", "DELIVERED"}
	ReturnStatuses      = []string{"REQUESTED", "APPROVED", "COMPLETED", "REJECTED"}
)

func orderRoutes() []Route {
	const svc = config.ServiceOrders
	invOrders := []string{"orders"}

	return []Route{
		{
			Name: "orders.list", Method: http.MethodGet, Path: "/api/orders",
			Service: svc, Upstream: "/orders",
			Query: list(validate.Query{
				"status":            validate.OneOf(OrderStatuses...),
				"fulfillmentStatus": validate.OneOf(FulfillmentStatuses...),
				"customerId":        validate.IDRef(),
				"search":            validate.String(100),
				"from":              validate.String(32),
				"to":                validate.String(32),
			}),
			Cache:     cached("orders", 30),
			Transform: NormalizeOrderList,
		},
		{
			Name: "orders.stats", Method: http.MethodGet, Path: "/api/orders/stats",
			Service: svc, Upstream: "/orders/stats",
			Query: validate.Query{"period": validate.OneOf("day", "week", "month", "year")},
			Cache: cached("orders", 60),
		},
		{
			Name: "orders.get", Method: http.MethodGet, Path: "/api/orders/:id",
			Service: svc, Upstream: "/orders/:id",
			Cache:     cached("orders", 30),
			Transform: NormalizeOrderDetail,
		},
		{
			Name: "orders.valid_transitions", Method: http.MethodGet, Path: "/api/orders/:id/valid-transitions",
			Service: svc, Upstream: "/orders/:id/valid-transitions",
		},
		{
			Name: "orders.update_status", Method: http.MethodPatch, Path: "/api/orders/:id/status",
			Service: svc, Upstream: "/orders/:id/status",
			Body: validate.Object{
				"status": validate.OneOf(OrderStatuses...).Req(),
				"reason": validate.String(500),
				"notify": validate.Bool(),
			},
			Invalidates: invOrders,
		},
		{
			Name: "orders.update_fulfillment", Method: http.MethodPatch, Path: "/api/orders/:id/fulfillment",
			Service: svc, Upstream: "/orders/:id/fulfillment",
			Body: validate.Object{
				"fulfillmentStatus": validate.OneOf(FulfillmentStatuses...).Req(),
				"trackingNumber":    validate.String(100),
				"carrier":           validate.String(100),
				"notify":            validate.Bool(),
			},
			Invalidates: invOrders,
		},
		{
			Name: "orders.cancel", Method: http.MethodPost, Path: "/api/orders/:id/cancel",
			Service: svc, Upstream: "/orders/:id/cancel",
			Body:        validate.Object{"reason": validate.String(500), "restock": validate.Bool()},
			Invalidates: []string{"orders", "inventory"},
		},
		{
			Name: "orders.add_note", Method: http.MethodPost, Path: "/api/orders/:id/notes",
			Service: svc, Upstream: "/orders/:id/notes",
			Body:        validate.Object{"note": validate.String(2000).Req(), "internal": validate.Bool()},
			Invalidates: invOrders,
		},
		{
			Name: "orders.refund", Method: http.MethodPost, Path: "/api/orders/:id/refund",
			Service: svc, Upstream: "/orders/:id/refund",
			Body: validate.Object{
				"amount": validate.Number(0.01, 1_000_000).Req(),
				"reason": validate.String(500),
			},
			Invalidates: []string{"orders", "payments"},
			Timeout:     30 * time.Second,
		},
		{
			Name: "orders.returns", Method: http.MethodGet, Path: "/api/orders/:id/returns",
			Service: svc, Upstream: "/orders/:id/returns",
		},
		{
			Name: "returns.list", Method: http.MethodGet, Path: "/api/returns",
			Service: svc, Upstream: "/returns",
			Query: list(validate.Query{"status": validate.OneOf(ReturnStatuses...)}),
		},
		{
			Name: "returns.update_status", Method: http.MethodPatch, Path: "/api/returns/:id/status",
			Service: svc, Upstream: "/returns/:id/status",
			Body: validate.Object{
				"status": validate.OneOf(ReturnStatuses...).Req(),
				"reason": validate.String(500),
			},
			Invalidates: []string{"orders"},
		},
		{
			Name: "carts.abandoned", Method: http.MethodGet, Path: "/api/carts/abandoned",
			Service: svc, Upstream: "/carts/abandoned",
			Query: list(validate.Query{"olderThanHours": validate.Int(1, 720)}),
			Cache: cached("carts", 60),
		},
	}
}

// orderAliases maps canonical order fields to the legacy names some
// order-service versions still emit.
var orderAliases = []struct{ canonical, alias string }{
	{"currency", "currencyCode"},
	{"total", "totalAmount"},
}

var errNotObject = errors.New("order is not a JSON object")

// NormalizeOrder rewrites one order object to the canonical field names.
// Other fields are kept byte for byte.
func NormalizeOrder(raw json.RawMessage) (json.RawMessage, error) {
	var o map[string]json.RawMessage
	if err := json.Unmarshal(raw, &o); err != nil || o == nil {
		return nil, errNotObject
	}
	for _, a := range orderAliases {
		if v, ok := o[a.canonical]; !ok || isNull(v) {
			if alt, ok := o[a.alias]; ok {
				o[a.canonical] = alt
			}
		}
		delete(o, a.alias)
	}
	return json.Marshal(o)
}

// NormalizeOrderDetail normalizes a single-order response: either an
// envelope whose data is the order, or the bare order.
func NormalizeOrderDetail(body json.RawMessage) (json.RawMessage, error) {
	return rewriteData(body, NormalizeOrder)
}

// NormalizeOrderList normalizes a list response. The orders may be the data
// array itself or sit under data.orders or data.items.
func NormalizeOrderList(body json.RawMessage) (json.RawMessage, error) {
	return rewriteData(body, func(data json.RawMessage) (json.RawMessage, error) {
		if isArray(data) {
			return mapArray(data, NormalizeOrder)
		}
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, err
		}
		for _, key := range []string{"orders", "items"} {
			if arr, ok := wrapper[key]; ok && isArray(arr) {
				out, err := mapArray(arr, NormalizeOrder)
				if err != nil {
					return nil, err
				}
				wrapper[key] = out
				return json.Marshal(wrapper)
			}
		}
		return data, nil
	})
}

// rewriteData applies fn to the envelope's data member, or to the whole
// body when it is not an envelope.
func rewriteData(body json.RawMessage, fn func(json.RawMessage) (json.RawMessage, error)) (json.RawMessage, error) {
	if isArray(body) {
		return fn(body)
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	data, ok := env["data"]
	if !ok {
		return fn(body)
	}
	if isNull(data) {
		return body, nil
	}
	out, err := fn(data)
	if err != nil {
		return nil, err
	}
	env["data"] = out
	return json.Marshal(env)
}

func mapArray(arr json.RawMessage, fn func(json.RawMessage) (json.RawMessage, error)) (json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(arr, &items); err != nil {
		return nil, err
	}
	for i, item := range items {
		out, err := fn(item)
		if err != nil {
			return nil, err
		}
		items[i] = out
	}
	return json.Marshal(items)
}

func isArray(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}

func isNull(b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
