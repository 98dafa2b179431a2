// Package csrf issues and checks double-submit CSRF tokens.
//
// A token is "<nonce>.<expiry>.<signature>" where nonce is a random UUID,
// expiry is a Unix timestamp and signature is the base64url HMAC-SHA256 of
// "<nonce>.<expiry>" under the configured secret. The browser receives the
// token in a SameSite=Strict cookie and must echo it in a request header on
// every mutating call.
package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"admin-bff/internal/config"
)

var (
	// ErrMissingToken is returned when the cookie or header is absent.
	ErrMissingToken = errors.New("csrf token missing")
	// ErrMismatch is returned when header and cookie differ.
	ErrMismatch = errors.New("csrf token mismatch")
	// ErrInvalidToken is returned for malformed, forged or expired tokens.
	ErrInvalidToken = errors.New("csrf token invalid")
)

// Token is an issued CSRF token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Manager issues and verifies tokens.
type Manager struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	headerName string
	secure     bool
	now        func() time.Time
}

// NewManager creates a Manager from the CSRF configuration.
func NewManager(cfg *config.CSRFConfig) *Manager {
	return &Manager{
		secret:     []byte(cfg.Secret),
		ttl:        time.Duration(cfg.TTLSeconds) * time.Second,
		cookieName: cfg.CookieName,
		headerName: cfg.HeaderName,
		secure:     !cfg.InsecureCookie,
		now:        time.Now,
	}
}

// HeaderName returns the request header that must carry the token.
func (m *Manager) HeaderName() string { return m.headerName }

// CookieName returns the name of the token cookie.
func (m *Manager) CookieName() string { return m.cookieName }

// Issue creates a new token.
func (m *Manager) Issue() Token {
	exp := m.now().Add(m.ttl).Truncate(time.Second)
	payload := uuid.NewString() + "." + strconv.FormatInt(exp.Unix(), 10)
	return Token{
		Value:     payload + "." + m.sign(payload),
		ExpiresAt: exp,
	}
}

// Cookie returns the cookie carrying t.
func (m *Manager) Cookie(t Token) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    t.Value,
		Path:     "/",
		Expires:  t.ExpiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		Secure:   m.secure,
		HttpOnly: false, // the admin portal reads it to fill the header
		SameSite: http.SameSiteStrictMode,
	}
}

// Check validates the double-submit pair on r.
func (m *Manager) Check(r *http.Request) error {
	header := r.Header.Get(m.headerName)
	cookie, err := r.Cookie(m.cookieName)
	if header == "" || err != nil || cookie.Value == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
		return ErrMismatch
	}
	return m.Verify(header)
}

// Verify checks the signature and expiry of token.
func (m *Manager) Verify(token string) error {
	nonce, rest, ok := strings.Cut(token, ".")
	if !ok {
		return ErrInvalidToken
	}
	expStr, sig, ok := strings.Cut(rest, ".")
	if !ok {
		return ErrInvalidToken
	}
	if _, err := uuid.Parse(nonce); err != nil {
		return ErrInvalidToken
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(m.sign(nonce+"."+expStr))) {
		return ErrInvalidToken
	}
	if !m.now().Before(time.Unix(exp, 0)) {
		return ErrInvalidToken
	}
	return nil
}

func (m *Manager) sign(payload string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
