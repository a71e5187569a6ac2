package mcpservice

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ggoodman/canvas-mcp/ident"
	"github.com/google/go-cmp/cmp"
)

type courseArgs struct {
	CourseIdentifier ident.ID  `json:"course_identifier" jsonschema:"description=Canvas course id or SIS reference"`
	AssignmentID     *ident.ID `json:"assignment_id,omitempty"`
	Bucket           string    `json:"bucket,omitempty" jsonschema:"enum=past,enum=upcoming"`
	Limit            int       `json:"limit,omitempty"`
	Published        *bool     `json:"published,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
}

func TestValidateArguments_Coercion(t *testing.T) {
	schema := reflectToMCPInputSchema[courseArgs]()

	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "integer identifier becomes canonical text",
			raw:  `{"course_identifier":108367}`,
			want: map[string]any{"course_identifier": "108367"},
		},
		{
			name: "text identifier is kept",
			raw:  `{"course_identifier":"108367"}`,
			want: map[string]any{"course_identifier": "108367"},
		},
		{
			name: "integral float identifier",
			raw:  `{"course_identifier":108367.0}`,
			want: map[string]any{"course_identifier": "108367"},
		},
		{
			name: "sis reference passes through",
			raw:  `{"course_identifier":"sis_course_id:BIO-101"}`,
			want: map[string]any{"course_identifier": "sis_course_id:BIO-101"},
		},
		{
			name: "unknown fields are dropped",
			raw:  `{"course_identifier":1,"verbose":true}`,
			want: map[string]any{"course_identifier": "1"},
		},
		{
			name: "integral float for integer field",
			raw:  `{"course_identifier":1,"limit":5.0}`,
			want: map[string]any{"course_identifier": "1", "limit": json.Number("5")},
		},
		{
			name: "optional null is treated as absent",
			raw:  `{"course_identifier":1,"assignment_id":null}`,
			want: map[string]any{"course_identifier": "1"},
		},
		{
			name: "optional identifier",
			raw:  `{"course_identifier":1,"assignment_id":77}`,
			want: map[string]any{"course_identifier": "1", "assignment_id": "77"},
		},
		{
			name: "enum and arrays",
			raw:  `{"course_identifier":1,"bucket":"past","tags":["a","b"],"published":false}`,
			want: map[string]any{"course_identifier": "1", "bucket": "past", "tags": []any{"a", "b"}, "published": false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateArguments(schema, json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("canonical args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateArguments_Failures(t *testing.T) {
	schema := reflectToMCPInputSchema[courseArgs]()

	tests := []struct {
		name     string
		raw      string
		field    string
		expected string
		actual   string
	}{
		{name: "missing required", raw: `{}`, field: "course_identifier"},
		{name: "null required", raw: `{"course_identifier":null}`, field: "course_identifier"},
		{name: "boolean identifier", raw: `{"course_identifier":true}`, field: "course_identifier", expected: "string|integer", actual: "boolean"},
		{name: "negative identifier", raw: `{"course_identifier":-4}`, field: "course_identifier", expected: "string|integer", actual: "integer"},
		{name: "fractional identifier", raw: `{"course_identifier":1.5}`, field: "course_identifier", expected: "string|integer", actual: "number"},
		{name: "fractional integer", raw: `{"course_identifier":1,"limit":2.5}`, field: "limit", expected: "integer", actual: "number"},
		{name: "string for integer", raw: `{"course_identifier":1,"limit":"5"}`, field: "limit", expected: "integer", actual: "string"},
		{name: "enum violation", raw: `{"course_identifier":1,"bucket":"someday"}`, field: "bucket", actual: "someday"},
		{name: "array item type", raw: `{"course_identifier":1,"tags":["a",2]}`, field: "tags[1]", expected: "string", actual: "integer"},
		{name: "arguments not an object", raw: `[1,2]`, field: "arguments", expected: "object", actual: "array"},
		{name: "arguments not json", raw: `{"course_identifier":`, field: "arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateArguments(schema, json.RawMessage(tt.raw))
			var ipe *InvalidParamsError
			if !errors.As(err, &ipe) {
				t.Fatalf("expected InvalidParamsError, got %v", err)
			}
			if ipe.Field != tt.field {
				t.Fatalf("field = %q, want %q (%v)", ipe.Field, tt.field, err)
			}
			if tt.expected != "" && ipe.Expected != tt.expected {
				t.Fatalf("expected = %q, want %q", ipe.Expected, tt.expected)
			}
			if tt.actual != "" && ipe.Actual != tt.actual {
				t.Fatalf("actual = %q, want %q", ipe.Actual, tt.actual)
			}
		})
	}
}

func TestValidateArguments_EmptyPayload(t *testing.T) {
	type noArgs struct{}
	schema := reflectToMCPInputSchema[noArgs]()
	for _, raw := range []string{"", "null", "{}"} {
		got, err := ValidateArguments(schema, json.RawMessage(raw))
		if err != nil {
			t.Fatalf("ValidateArguments(%q): %v", raw, err)
		}
		if len(got) != 0 {
			t.Fatalf("ValidateArguments(%q) = %v", raw, got)
		}
	}
}

func TestValidateArguments_NumbersAreCanonical(t *testing.T) {
	type gradeArgs struct {
		Score float64 `json:"score"`
	}
	schema := reflectToMCPInputSchema[gradeArgs]()

	for raw, want := range map[string]json.Number{
		`{"score":1}`:      "1",
		`{"score":1.0}`:    "1",
		`{"score":1e0}`:    "1",
		`{"score":2.50}`:   "2.5",
		`{"score":-0.125}`: "-0.125",
	} {
		got, err := ValidateArguments(schema, json.RawMessage(raw))
		if err != nil {
			t.Fatalf("ValidateArguments(%s): %v", raw, err)
		}
		if got["score"] != want {
			t.Errorf("ValidateArguments(%s) score = %v, want %v", raw, got["score"], want)
		}
	}
}
