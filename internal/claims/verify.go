package claims

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerPrefix is the Authorization scheme prefix.
const BearerPrefix = "Bearer "

// Claim keys read from verified tokens.
const (
	ClaimSub         = "sub"
	ClaimIss         = "iss"
	ClaimAud         = "aud"
	ClaimTenantID    = "tenant-id"
	ClaimTenantIDAlt = "tenant_id"
)

// Verifier validates bearer tokens signed with a shared secret.
type Verifier struct {
	secretKey []byte
	algorithm string
	issuer    string
	audience  string
	clockSkew time.Duration
}

// NewVerifier creates a Verifier pinned to one signing algorithm.
func NewVerifier(secretKey, algorithm, issuer, audience string, clockSkew time.Duration) (*Verifier, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("secretKey is required")
	}
	if strings.TrimSpace(algorithm) == "" {
		return nil, errors.New("algorithm is required")
	}
	return &Verifier{
		secretKey: []byte(secretKey),
		algorithm: algorithm,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}, nil
}

// Verify parses and validates the token and returns its claims.
func (v *Verifier) Verify(tokenString string) (jwt.MapClaims, error) {
	tokenString = strings.TrimPrefix(tokenString, BearerPrefix)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.algorithm}),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	sub, ok := claims[ClaimSub].(string)
	if !ok || strings.TrimSpace(sub) == "" {
		return nil, errors.New("missing required claim: sub")
	}
	return claims, nil
}

// tenantFromClaims returns the tenant claim under either accepted key.
func tenantFromClaims(c jwt.MapClaims) string {
	for _, key := range []string{ClaimTenantID, ClaimTenantIDAlt} {
		if s, ok := c[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
