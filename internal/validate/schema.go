package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"sort"
	"strconv"

	"admin-bff/internal/model"
)

// Kind is the expected JSON type of a field.
type Kind int

const (
	KindString Kind = iota
	KindID
	KindEnum
	KindNumber
	KindInt
	KindBool
	KindIDList
	KindObject
)

// Rule describes the constraints on one field.
type Rule struct {
	Kind     Kind
	Required bool
	Enum     []string
	Min, Max float64
	MaxLen   int // runes for strings, items for lists
}

// String accepts text of at most maxLen runes.
func String(maxLen int) Rule { return Rule{Kind: KindString, MaxLen: maxLen} }

// IDRef accepts a resource identifier.
func IDRef() Rule { return Rule{Kind: KindID} }

// OneOf accepts one of the given tokens.
func OneOf(values ...string) Rule { return Rule{Kind: KindEnum, Enum: values} }

// Number accepts a number within [lo, hi].
func Number(lo, hi float64) Rule { return Rule{Kind: KindNumber, Min: lo, Max: hi} }

// Int accepts a whole number within [lo, hi].
func Int(lo, hi int64) Rule { return Rule{Kind: KindInt, Min: float64(lo), Max: float64(hi)} }

// Bool accepts true or false.
func Bool() Rule { return Rule{Kind: KindBool} }

// IDList accepts a non-empty array of at most maxItems identifiers.
func IDList(maxItems int) Rule { return Rule{Kind: KindIDList, MaxLen: maxItems} }

// Nested accepts any JSON object.
func Nested() Rule { return Rule{Kind: KindObject} }

// Req marks the rule as required.
func (r Rule) Req() Rule {
	r.Required = true
	return r
}

// Object validates a JSON object body. Fields without a rule pass through
// unchanged.
type Object map[string]Rule

// Check decodes body as a JSON object and applies the rules. It returns the
// body to forward: the original bytes, or a re-encoded document when string
// sanitization changed a value.
func (o Object) Check(body []byte) ([]byte, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, &Error{Code: model.CodeInvalidBody, Message: "request body must be a JSON object"}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &Error{Code: model.CodeInvalidBody, Message: "request body must contain a single JSON object"}
	}

	changed := false
	for _, field := range o.fields() {
		rule := o[field]
		v, present := doc[field]
		if !present || v == nil {
			if rule.Required {
				return nil, fieldError(field, "is required")
			}
			continue
		}
		cleaned, err := rule.checkJSON(field, v)
		if err != nil {
			return nil, err
		}
		if rule.Required && cleaned == "" {
			return nil, fieldError(field, "is required")
		}
		if s, ok := cleaned.(string); ok && s != v {
			doc[field] = s
			changed = true
		}
	}

	if !changed {
		return body, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, &Error{Code: model.CodeInvalidBody, Message: "request body could not be re-encoded"}
	}
	return out, nil
}

// fields returns the rule names sorted so the first failure is deterministic.
func (o Object) fields() []string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r Rule) checkJSON(field string, v any) (any, error) {
	switch r.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fieldError(field, "must be a string")
		}
		return Text(field, s, r.MaxLen)
	case KindID:
		s, ok := v.(string)
		if !ok {
			return nil, fieldError(field, "must be a string identifier")
		}
		return s, ID(field, s)
	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, fieldError(field, "must be a string")
		}
		return s, Enum(field, s, r.Enum)
	case KindNumber:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fieldError(field, "must be a number")
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fieldError(field, "must be a number")
		}
		return v, Range(field, f, r.Min, r.Max)
	case KindInt:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fieldError(field, "must be an integer")
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fieldError(field, "must be an integer")
		}
		return v, Range(field, float64(i), r.Min, r.Max)
	case KindBool:
		if _, ok := v.(bool); !ok {
			return nil, fieldError(field, "must be true or false")
		}
		return v, nil
	case KindIDList:
		items, ok := v.([]any)
		if !ok || len(items) == 0 {
			return nil, fieldError(field, "must be a non-empty array")
		}
		if r.MaxLen > 0 && len(items) > r.MaxLen {
			return nil, fieldError(field, "must contain at most %d items", r.MaxLen)
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fieldError(field, "must contain only string identifiers")
			}
			if err := ID(field, s); err != nil {
				return nil, err
			}
		}
		return v, nil
	case KindObject:
		if _, ok := v.(map[string]any); !ok {
			return nil, fieldError(field, "must be an object")
		}
		return v, nil
	}
	return v, nil
}

// Query validates query-string parameters. Absent parameters are skipped
// unless required. Every value of a repeated parameter is checked, since
// all of them are forwarded.
type Query map[string]Rule

// Check applies the rules to q.
func (qr Query) Check(q url.Values) error {
	for _, field := range Object(qr).fields() {
		rule := qr[field]
		present := false
		for _, raw := range q[field] {
			if raw == "" {
				continue
			}
			present = true
			if err := rule.checkString(field, raw); err != nil {
				return err
			}
		}
		if !present && rule.Required {
			return fieldError(field, "is required")
		}
	}
	return nil
}

func (r Rule) checkString(field, raw string) error {
	switch r.Kind {
	case KindString:
		_, err := Text(field, raw, r.MaxLen)
		return err
	case KindID:
		return ID(field, raw)
	case KindEnum:
		return Enum(field, raw, r.Enum)
	case KindNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fieldError(field, "must be a number")
		}
		return Range(field, f, r.Min, r.Max)
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fieldError(field, "must be an integer")
		}
		return Range(field, float64(i), r.Min, r.Max)
	case KindBool:
		if _, err := strconv.ParseBool(raw); err != nil {
			return fieldError(field, "must be true or false")
		}
	}
	return nil
}

// Pagination is the query rule set shared by list endpoints.
var Pagination = Query{
	"page":  Int(1, 10000),
	"limit": Int(1, 100),
}

// Merge returns a new rule set holding the rules of q and others.
func (qr Query) Merge(others ...Query) Query {
	out := make(Query, len(qr))
	for k, v := range qr {
		out[k] = v
	}
	for _, o := range others {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}
