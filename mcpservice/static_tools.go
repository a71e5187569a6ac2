package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ggoodman/canvas-mcp/mcp"
	"github.com/invopop/jsonschema"
)

// ToolHandler handles a tool invocation. args holds the validated,
// canonicalized arguments: identifier fields are already coerced to their
// canonical string form and undeclared fields are removed.
type ToolHandler func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error)

// StaticTool pairs an MCP tool descriptor with its handler and execution
// policy.
type StaticTool struct {
	Descriptor mcp.Tool
	Handler    ToolHandler

	// CacheTTL is how long a successful result may be served from the
	// response cache. Zero disables caching; mutating tools leave it unset.
	CacheTTL time.Duration
	// Timeout bounds a single invocation. Zero means the dispatcher default.
	Timeout time.Duration
}

// Cacheable reports whether results of the tool may be memoized.
func (t StaticTool) Cacheable() bool { return t.CacheTTL > 0 }

// ToolRequest carries the validated arguments of a tool call, decoded into
// the typed argument struct A.
type ToolRequest[A any] struct {
	args A
}

// Args returns the decoded arguments.
func (r *ToolRequest[A]) Args() A { return r.args }

// ToolOption configures NewTool behavior.
type ToolOption func(*toolConfig)

type toolConfig struct {
	description string
	cacheTTL    time.Duration
	timeout     time.Duration
}

// WithToolDescription sets the tool description used in listings.
func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.description = desc }
}

// WithToolCacheTTL marks the tool as idempotent and lets the dispatcher serve
// repeated calls from the response cache for ttl.
func WithToolCacheTTL(ttl time.Duration) ToolOption {
	return func(c *toolConfig) { c.cacheTTL = ttl }
}

// WithToolTimeout overrides the dispatcher's default per-call timeout.
func WithToolTimeout(d time.Duration) ToolOption {
	return func(c *toolConfig) { c.timeout = d }
}

// NewTool constructs a StaticTool from a typed args struct A. It:
// - Reflects a JSON Schema from A using invopop/jsonschema
// - Down-converts it to MCP's simplified ToolInputSchema
// - Builds the tool descriptor with the provided name and options
// - Wraps the handler with decoding of the canonical arguments into A
//
// Fields typed as ident.ID (or *ident.ID) are advertised as string|integer
// and therefore coerced by the validator before fn runs.
func NewTool[A any](name string, fn func(ctx context.Context, w ToolResponseWriter, r *ToolRequest[A]) error, opts ...ToolOption) StaticTool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := mcp.Tool{
		Name:        name,
		Description: cfg.description,
		InputSchema: reflectToMCPInputSchema[A](),
	}

	handler := func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
		var a A
		if len(args) > 0 {
			b, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("re-encode arguments for %s: %w", name, err)
			}
			if err := json.Unmarshal(b, &a); err != nil {
				return nil, decodeFailure(err)
			}
		}
		w := newToolResponseWriter(ctx)
		r := &ToolRequest[A]{args: a}
		if err := fn(ctx, w, r); err != nil {
			return nil, err
		}
		return w.Result(), nil
	}

	return StaticTool{
		Descriptor: desc,
		Handler:    handler,
		CacheTTL:   cfg.cacheTTL,
		Timeout:    cfg.timeout,
	}
}

// reflectToMCPInputSchema reflects a Go type A into a jsonschema.Schema, and
// converts it to the simplified mcp.ToolInputSchema. Unknown fields are
// tolerated, so the schema always allows additional properties.
func reflectToMCPInputSchema[A any]() mcp.ToolInputSchema {
	r := &jsonschema.Reflector{
		DoNotReference:            true, // inline defs
		ExpandedStruct:            true, // put struct at root
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(new(A))

	// Only object schemas map cleanly to MCP ToolInputSchema.
	if s == nil || s.Type != "object" {
		return mcp.ToolInputSchema{
			Type:                 "object",
			Properties:           map[string]mcp.SchemaProperty{},
			AdditionalProperties: true,
		}
	}

	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toMCPProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}

	return mcp.ToolInputSchema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: true,
	}
}

// toMCPProperty recursively maps a jsonschema.Schema to the simplified MCP SchemaProperty.
func toMCPProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Minimum != "" {
		if f, err := strconv.ParseFloat(string(s.Minimum), 64); err == nil {
			p.Minimum = &f
		}
	}
	for _, alt := range s.OneOf {
		p.OneOf = append(p.OneOf, toMCPProperty(alt))
	}
	// Arrays
	if s.Type == "array" && s.Items != nil {
		item := toMCPProperty(s.Items)
		p.Items = &item
	}
	// Objects
	if s.Type == "object" && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toMCPProperty(el.Value)
		}
		p.Properties = m
	}
	return p
}

// decodeFailure describes a failed decode into a tool's argument struct in
// terms of the JSON the client sent. The decoder's own message names Go
// types and is not returned.
func decodeFailure(err error) *InvalidParamsError {
	var te *json.UnmarshalTypeError
	if !errors.As(err, &te) {
		return &InvalidParamsError{Field: "arguments", Reason: "arguments do not match the tool's input schema"}
	}
	field := te.Field
	if field == "" {
		field = "arguments"
	}
	expected := jsonKind(te.Type)
	actual, _, _ := strings.Cut(te.Value, " ")
	reason := "value has the wrong type"
	if actual == "number" && (expected == "integer" || expected == "number") {
		reason = "value is out of range"
	}
	return &InvalidParamsError{Field: field, Reason: reason, Expected: expected, Actual: actual}
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return ""
}
