package mcp

import (
	"encoding/json"
	"testing"
)

func TestNegotiateProtocolVersion(t *testing.T) {
	tests := map[string]string{
		"2024-11-05": "2024-11-05",
		"2025-03-26": "2025-03-26",
		"2025-06-18": "2025-06-18",
		"1999-01-01": LatestProtocolVersion,
		"":           LatestProtocolVersion,
	}
	for in, want := range tests {
		if got := NegotiateProtocolVersion(in); got != want {
			t.Errorf("NegotiateProtocolVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSchemaPropertyIdentifier(t *testing.T) {
	id := SchemaProperty{OneOf: []SchemaProperty{{Type: "string"}, {Type: "integer"}}}
	if !id.IsIdentifier() {
		t.Fatal("string|integer property should be identifier-like")
	}
	if (SchemaProperty{Type: "string"}).IsIdentifier() {
		t.Fatal("plain string property is not identifier-like")
	}
}

func TestCancelledNotificationAcceptsBothIDForms(t *testing.T) {
	for _, raw := range []string{`{"requestId":"7"}`, `{"requestId":7,"reason":"user"}`} {
		var n CancelledNotification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if n.RequestID.String() != "7" {
			t.Fatalf("requestId = %q", n.RequestID.String())
		}
	}
}
