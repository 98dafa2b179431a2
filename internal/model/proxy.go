// Package model defines shared types for the BFF.
package model

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// Identity is the caller identity taken from verified claims.
type Identity struct {
	TenantID string
	UserID   string
}

// ProxyRequest represents one inbound request bound for a backend service.
type ProxyRequest struct {
	Method string
	// Params holds validated path parameters keyed by name.
	Params map[string]string
	Query  url.Values
	Body   []byte
	// Header is the forwarded header set built from verified claims and
	// passthrough headers.
	Header    http.Header
	Identity  Identity
	RequestID string
}

// ProxyResponse is the response returned to the browser.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	// Body is a JSON document, or nil for an empty response.
	Body json.RawMessage
}

// ErrorBody is the error member of the response envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Pagination is the pagination member of the response envelope.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Envelope is the response shape used by the admin portal.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Error codes used in synthesized envelopes.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidID       = "INVALID_ID"
	CodeInvalidBody     = "INVALID_BODY"
	CodeMissingTenant   = "MISSING_TENANT_CONTEXT"
	CodeInvalidTenant   = "INVALID_TENANT_CONTEXT"
	CodeCSRF            = "CSRF_TOKEN_INVALID"
	CodeUpstream        = "UPSTREAM_ERROR"
	CodeParse           = "PARSE_ERROR"
	CodeUpstreamTimeout = "UPSTREAM_TIMEOUT"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
	CodeInternal        = "INTERNAL_ERROR"
	CodeNotFound        = "NOT_FOUND"
)

// Failure builds an error envelope.
func Failure(code, message, field string) Envelope {
	return Envelope{
		Success: false,
		Message: message,
		Error:   &ErrorBody{Code: code, Message: message, Field: field},
	}
}

// FailureJSON is Failure marshaled to JSON.
func FailureJSON(code, message string) json.RawMessage {
	b, err := json.Marshal(Failure(code, message, ""))
	if err != nil {
		// Only strings are marshaled; this cannot fail.
		return json.RawMessage(`{"success":false}`)
	}
	return b
}
