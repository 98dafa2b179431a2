// Package claims turns inbound request headers into a caller identity and
// the header set forwarded to backend services.
//
// Tenant and user identity come only from trusted sources: claim headers
// injected by the identity-aware proxy in front of the BFF, or a bearer
// token verified locally. Body and query values are never consulted.
package claims

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"admin-bff/internal/config"
	"admin-bff/internal/model"
	"admin-bff/internal/validate"
)

// Outbound claim headers understood by every backend service.
const (
	HeaderTenantID      = "X-Tenant-ID"
	HeaderUserID        = "X-User-ID"
	HeaderForwardedFor  = "X-Forwarded-For"
	HeaderRequestID     = "X-Request-ID"
	HeaderAuthorization = "Authorization"
)

var (
	// ErrMissingTenantContext is returned when no verified tenant claim is present.
	ErrMissingTenantContext = errors.New("missing tenant context")
	// ErrInvalidTenantContext is returned when the tenant claim is malformed.
	ErrInvalidTenantContext = errors.New("invalid tenant context")
)

// passthroughHeaders are copied verbatim to backend requests.
var passthroughHeaders = []string{
	HeaderAuthorization,
	HeaderRequestID,
	"Accept",
	"Accept-Language",
	"Content-Type",
}

// Extractor builds identities and forwarded header sets.
type Extractor struct {
	mode          string
	tenantHeaders []string
	userHeaders   []string
	verifier      *Verifier
	logger        *slog.Logger
}

// NewExtractor creates an Extractor from the auth configuration.
func NewExtractor(cfg *config.Config, logger *slog.Logger) (*Extractor, error) {
	x := &Extractor{
		mode:          cfg.Auth.Mode,
		tenantHeaders: cfg.Auth.TenantHeaders,
		userHeaders:   cfg.Auth.UserHeaders,
		logger:        logger.With("component", "claims"),
	}
	if x.mode == "jwt" {
		v, err := NewVerifier(
			cfg.Auth.JWTSecret,
			cfg.Auth.JWTAlgorithm,
			cfg.Auth.JWTIssuer,
			cfg.Auth.JWTAudience,
			time.Duration(cfg.Auth.ClockSkewSeconds)*time.Second,
		)
		if err != nil {
			return nil, err
		}
		x.verifier = v
	}
	return x, nil
}

// Extract returns the caller identity and the header set to forward. The
// identity may be empty when err is ErrMissingTenantContext; the forwarded
// headers are always populated so public routes can still use them.
func (x *Extractor) Extract(h http.Header, remoteIP string) (model.Identity, http.Header, error) {
	fwd := forwardedHeaders(h, remoteIP)

	var id model.Identity
	switch x.mode {
	case "jwt":
		id = x.fromToken(h.Get(HeaderAuthorization))
	default:
		id = model.Identity{
			TenantID: firstHeader(h, x.tenantHeaders),
			UserID:   firstHeader(h, x.userHeaders),
		}
	}

	if id.TenantID == "" {
		return model.Identity{}, fwd, ErrMissingTenantContext
	}
	if validate.ID("tenant", id.TenantID) != nil {
		return model.Identity{}, fwd, ErrInvalidTenantContext
	}

	fwd.Set(HeaderTenantID, id.TenantID)
	if id.UserID != "" {
		fwd.Set(HeaderUserID, id.UserID)
	}
	return id, fwd, nil
}

func (x *Extractor) fromToken(authz string) model.Identity {
	if !strings.HasPrefix(authz, BearerPrefix) {
		return model.Identity{}
	}
	c, err := x.verifier.Verify(authz)
	if err != nil {
		x.logger.Debug("bearer token rejected", "err", err)
		return model.Identity{}
	}
	sub, _ := c[ClaimSub].(string)
	return model.Identity{TenantID: tenantFromClaims(c), UserID: sub}
}

// forwardedHeaders copies passthrough headers and extends X-Forwarded-For.
// Inbound X-Tenant-ID / X-User-ID are never copied: they are set only from
// the extracted identity.
func forwardedHeaders(h http.Header, remoteIP string) http.Header {
	dst := make(http.Header)
	for _, key := range passthroughHeaders {
		if vals := h.Values(key); len(vals) > 0 {
			dst[http.CanonicalHeaderKey(key)] = append([]string(nil), vals...)
		}
	}

	chain := strings.TrimSpace(h.Get(HeaderForwardedFor))
	switch {
	case chain != "" && remoteIP != "":
		dst.Set(HeaderForwardedFor, chain+", "+remoteIP)
	case chain != "":
		dst.Set(HeaderForwardedFor, chain)
	case remoteIP != "":
		dst.Set(HeaderForwardedFor, remoteIP)
	}
	return dst
}

func firstHeader(h http.Header, names []string) string {
	for _, name := range names {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	return ""
}
