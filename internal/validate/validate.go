// Package validate checks path parameters, query values and JSON bodies
// before a request is forwarded to a backend service.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"admin-bff/internal/model"
)

// idPattern is the accepted shape of resource identifiers, including UUIDs.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{2,64}$`)

// Error is a field-level validation failure. It maps to HTTP 400.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func fieldError(field, format string, args ...any) *Error {
	return &Error{Code: model.CodeValidation, Message: fmt.Sprintf(format, args...), Field: field}
}

// ID checks that v is a well-formed resource identifier.
func ID(field, v string) error {
	if !idPattern.MatchString(v) {
		return &Error{
			Code:    model.CodeInvalidID,
			Message: "must be 2-64 characters of letters, digits, '-' or '_'",
			Field:   field,
		}
	}
	return nil
}

// Enum checks that v is one of allowed.
func Enum(field, v string, allowed []string) error {
	if !slices.Contains(allowed, v) {
		return fieldError(field, "must be one of: %s", strings.Join(allowed, ", "))
	}
	return nil
}

// Range checks that v lies within [lo, hi] and is a finite number.
func Range(field string, v, lo, hi float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fieldError(field, "must be a finite number")
	}
	if v < lo || v > hi {
		return fieldError(field, "must be between %s and %s", formatNumber(lo), formatNumber(hi))
	}
	return nil
}

// Text trims v, strips control characters other than newline and tab, and
// checks the result is at most maxLen runes long. The cleaned string is
// returned.
func Text(field, v string, maxLen int) (string, error) {
	if !utf8.ValidString(v) {
		return "", fieldError(field, "must be valid UTF-8")
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, v)
	cleaned = strings.TrimSpace(cleaned)
	if maxLen > 0 && utf8.RuneCountInString(cleaned) > maxLen {
		return "", fieldError(field, "must be at most %d characters", maxLen)
	}
	return cleaned, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
