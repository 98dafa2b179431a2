package validate

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"

	"admin-bff/internal/model"
)

func TestID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"uuid", "123e4567-e89b-12d3-a456-426614174000", true},
		{"short alnum", "ab", true},
		{"underscore", "order_42", true},
		{"64 chars", strings.Repeat("a", 64), true},
		{"single char", "a", false},
		{"65 chars", strings.Repeat("a", 65), false},
		{"traversal", "../etc", false},
		{"encoded traversal", "..%2F", false},
		{"slash", "a/b", false},
		{"space", "a b", false},
		{"dot", "a.b", false},
		{"empty", "", false},
		{"unicode", "ordér", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ID("id", tt.input)
			if tt.valid && err != nil {
				t.Errorf("ID(%q) error = %v, want nil", tt.input, err)
			}
			if !tt.valid {
				var verr *Error
				if !errors.As(err, &verr) {
					t.Fatalf("ID(%q) error = %v, want *Error", tt.input, err)
				}
				if verr.Code != model.CodeInvalidID || verr.Field != "id" {
					t.Errorf("ID(%q) = %+v, want code %s on field id", tt.input, verr, model.CodeInvalidID)
				}
			}
		})
	}
}

func TestEnumAndRange(t *testing.T) {
	if err := Enum("status", "CONFIRMED", []string{"PLACED", "CONFIRMED"}); err != nil {
		t.Errorf("Enum() error = %v", err)
	}
	if err := Enum("status", "confirmed", []string{"PLACED", "CONFIRMED"}); err == nil {
		t.Error("Enum() should be case sensitive")
	}
	if err := Range("amount", 10, 0, 100); err != nil {
		t.Errorf("Range() error = %v", err)
	}
	if err := Range("amount", -1, 0, 100); err == nil {
		t.Error("Range() should reject values below the minimum")
	}
	if err := Range("amount", 100.5, 0, 100); err == nil {
		t.Error("Range() should reject values above the maximum")
	}
}

func TestText(t *testing.T) {
	got, err := Text("note", "  hello\x00 world\n ", 20)
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if got != "hello world" {
		t.Errorf("Text() = %q, want %q", got, "hello world")
	}

	if _, err := Text("note", strings.Repeat("é", 11), 10); err == nil {
		t.Error("Text() should count runes and reject 11 > 10")
	}
	if _, err := Text("note", string([]byte{0xff, 0xfe}), 10); err == nil {
		t.Error("Text() should reject invalid UTF-8")
	}
}

func TestObject_Check(t *testing.T) {
	schema := Object{
		"status": OneOf("PLACED", "CONFIRMED").Req(),
		"amount": Number(0, 1000),
		"note":   String(10),
		"count":  Int(0, 10),
		"notify": Bool(),
		"ids":    IDList(2),
		"meta":   Nested(),
	}

	tests := []struct {
		name      string
		body      string
		wantField string
		wantCode  string
	}{
		{"valid minimal", `{"status":"CONFIRMED"}`, "", ""},
		{"valid full", `{"status":"PLACED","amount":12.5,"note":"ok","notify":true,"ids":["ab","cd"],"meta":{}}`, "", ""},
		{"unknown fields pass", `{"status":"PLACED","extra":[1,2,3]}`, "", ""},
		{"missing required", `{"amount":1}`, "status", model.CodeValidation},
		{"null required", `{"status":null}`, "status", model.CodeValidation},
		{"bad enum", `{"status":"SHIPPED"}`, "status", model.CodeValidation},
		{"amount too large", `{"status":"PLACED","amount":1001}`, "amount", model.CodeValidation},
		{"amount as string", `{"status":"PLACED","amount":"5"}`, "amount", model.CodeValidation},
		{"note too long", `{"status":"PLACED","note":"01234567890"}`, "note", model.CodeValidation},
		{"count integer", `{"status":"PLACED","count":3}`, "", ""},
		{"count fraction", `{"status":"PLACED","count":1.5}`, "count", model.CodeValidation},
		{"count too large", `{"status":"PLACED","count":11}`, "count", model.CodeValidation},
		{"notify not bool", `{"status":"PLACED","notify":"yes"}`, "notify", model.CodeValidation},
		{"ids too many", `{"status":"PLACED","ids":["ab","cd","ef"]}`, "ids", model.CodeValidation},
		{"ids bad item", `{"status":"PLACED","ids":["../x"]}`, "ids", model.CodeInvalidID},
		{"ids empty", `{"status":"PLACED","ids":[]}`, "ids", model.CodeValidation},
		{"meta not object", `{"status":"PLACED","meta":"x"}`, "meta", model.CodeValidation},
		{"array body", `[{"status":"PLACED"}]`, "", model.CodeInvalidBody},
		{"garbage body", `not json`, "", model.CodeInvalidBody},
		{"two documents", `{"status":"PLACED"} {}`, "", model.CodeInvalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Check([]byte(tt.body))
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Check() error = %v, want nil", err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("Check() error = %v, want *Error", err)
			}
			if verr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", verr.Code, tt.wantCode)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestObject_CheckPreservesOrSanitizes(t *testing.T) {
	schema := Object{"note": String(50)}

	body := []byte(`{"note":"clean","amount":12345678901234567890}`)
	out, err := schema.Check(body)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if string(out) != string(body) {
		t.Errorf("Check() rewrote an unchanged body: %s", out)
	}

	out, err = schema.Check([]byte(`{"note":"  dirty\u0007  ","amount":12345678901234567890}`))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(doc["note"]) != `"dirty"` {
		t.Errorf("note = %s, want \"dirty\"", doc["note"])
	}
	if string(doc["amount"]) != "12345678901234567890" {
		t.Errorf("amount = %s, want precision preserved", doc["amount"])
	}
}

func TestObject_CheckBlankRequiredString(t *testing.T) {
	schema := Object{"note": String(100).Req()}

	for _, body := range []string{`{"note":""}`, `{"note":"   "}`, `{"note":"\u0000\t "}`} {
		_, err := schema.Check([]byte(body))
		var verr *Error
		if !errors.As(err, &verr) || verr.Field != "note" {
			t.Errorf("Check(%s) error = %v, want required error on note", body, err)
		}
	}
	if _, err := schema.Check([]byte(`{"note":" ok "}`)); err != nil {
		t.Errorf("Check() error = %v, want nil", err)
	}
}

func TestObject_CheckEmptyBody(t *testing.T) {
	if _, err := (Object{"note": String(5)}).Check(nil); err != nil {
		t.Errorf("Check(nil) error = %v, want nil for schema without required fields", err)
	}
	if _, err := (Object{"note": String(5).Req()}).Check(nil); err == nil {
		t.Error("Check(nil) should fail when a field is required")
	}
}

func TestQuery_Check(t *testing.T) {
	rules := Pagination.Merge(Query{
		"status":     OneOf("OPEN", "CLOSED"),
		"customerId": IDRef(),
		"archived":   Bool(),
		"q":          String(5),
	})

	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"empty", "", false},
		{"valid", "page=2&limit=50&status=OPEN&customerId=cus_1&archived=true&q=shoe", false},
		{"page zero", "page=0", true},
		{"limit too large", "limit=101", true},
		{"limit not number", "limit=ten", true},
		{"bad status", "status=PENDING", true},
		{"bad customer id", "customerId=../1", true},
		{"bad bool", "archived=maybe", true},
		{"search too long", "q=sneakers", true},
		{"page fraction", "page=1.5", true},
		{"repeated limit out of range", "limit=10&limit=100000", true},
		{"repeated status bad value", "status=OPEN&status=../../admin", true},
		{"repeated valid values", "status=OPEN&status=CLOSED", false},
		{"empty value ignored", "limit=&limit=20", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			err = rules.Check(q)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			}
		})
	}
}

func TestQuery_CheckRequired(t *testing.T) {
	rules := Query{"q": String(20).Req()}
	for _, query := range []string{"", "q=", "q=&q="} {
		q, _ := url.ParseQuery(query)
		if err := rules.Check(q); err == nil {
			t.Errorf("Check(%q) should report q as required", query)
		}
	}
	if err := rules.Check(url.Values{"q": {"", "shoe"}}); err != nil {
		t.Errorf("Check() error = %v, want nil", err)
	}
}

func TestQuery_MergeDoesNotMutate(t *testing.T) {
	_ = Pagination.Merge(Query{"status": OneOf("A")})
	if _, ok := Pagination["status"]; ok {
		t.Error("Merge() mutated the receiver")
	}
}

func TestError_Error(t *testing.T) {
	e := &Error{Code: model.CodeValidation, Message: "is required", Field: "status"}
	if e.Error() != "status: is required" {
		t.Errorf("Error() = %q", e.Error())
	}
	e = &Error{Code: model.CodeInvalidBody, Message: "bad body"}
	if e.Error() != "bad body" {
		t.Errorf("Error() = %q", e.Error())
	}
}
