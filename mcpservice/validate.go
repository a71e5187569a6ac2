package mcpservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ggoodman/canvas-mcp/ident"
	"github.com/ggoodman/canvas-mcp/mcp"
)

// ValidateArguments checks raw tool arguments against schema and returns
// them in canonical form.
//
// Required fields must be present and non-null. Each supplied value must
// match one of the property's accepted types. Properties that accept both
// string and integer are identifier-like: either representation is accepted
// and the result holds the canonical string. Integral floats (42.0) satisfy
// integer fields. Fields the schema does not declare are dropped.
//
// Failures are reported as *InvalidParamsError.
func ValidateArguments(schema mcp.ToolInputSchema, raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, &InvalidParamsError{Field: "arguments", Reason: "arguments are not valid JSON"}
	}
	args, ok := decoded.(map[string]any)
	if !ok {
		return nil, &InvalidParamsError{
			Field:    "arguments",
			Reason:   "arguments must be an object",
			Expected: "object",
			Actual:   kindOf(decoded),
		}
	}

	for _, name := range schema.Required {
		if v, present := args[name]; !present || v == nil {
			return nil, &InvalidParamsError{Field: name, Reason: "required field is missing"}
		}
	}

	out := make(map[string]any, len(args))
	for name, v := range args {
		prop, declared := schema.Properties[name]
		if !declared {
			continue
		}
		if v == nil {
			// Null for an optional field reads as absent.
			continue
		}
		cv, err := coerceValue(name, prop, v)
		if err != nil {
			return nil, err
		}
		out[name] = cv
	}
	return out, nil
}

func coerceValue(path string, prop mcp.SchemaProperty, v any) (any, error) {
	accepted := prop.Types()
	if len(accepted) == 0 {
		return v, nil
	}

	if prop.IsIdentifier() {
		switch v.(type) {
		case string, json.Number:
			id, err := ident.FromValue(v)
			if err != nil {
				return nil, &InvalidParamsError{Field: path, Reason: err.Error(), Expected: "string|integer", Actual: kindOf(v)}
			}
			return checkEnum(path, prop, id.String())
		}
		return nil, mismatch(path, accepted, v)
	}

	for _, t := range accepted {
		cv, ok, err := coerceAs(path, t, prop, v)
		if err != nil {
			return nil, err
		}
		if ok {
			return checkEnum(path, prop, cv)
		}
	}
	return nil, mismatch(path, accepted, v)
}

// coerceAs tries to interpret v as JSON type t. ok is false when v is not of
// that type at all.
func coerceAs(path, t string, prop mcp.SchemaProperty, v any) (any, bool, error) {
	switch t {
	case "string":
		s, ok := v.(string)
		return s, ok, nil
	case "boolean":
		b, ok := v.(bool)
		return b, ok, nil
	case "number":
		n, ok := v.(json.Number)
		if !ok {
			return nil, false, nil
		}
		canon, ok := canonicalNumber(n)
		return canon, ok, nil
	case "integer":
		n, ok := v.(json.Number)
		if !ok {
			return nil, false, nil
		}
		canon, ok := canonicalInteger(n)
		if !ok {
			return nil, false, nil
		}
		if prop.Minimum != nil {
			f, _ := strconv.ParseFloat(string(canon), 64)
			if f < *prop.Minimum {
				return nil, false, &InvalidParamsError{Field: path, Reason: fmt.Sprintf("must be >= %v", *prop.Minimum)}
			}
		}
		return canon, true, nil
	case "array":
		items, ok := v.([]any)
		if !ok {
			return nil, false, nil
		}
		if prop.Items == nil {
			return items, true, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := coerceValue(fmt.Sprintf("%s[%d]", path, i), *prop.Items, item)
			if err != nil {
				return nil, false, err
			}
			out[i] = cv
		}
		return out, true, nil
	case "object":
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		if len(prop.Properties) == 0 {
			return obj, true, nil
		}
		out := make(map[string]any, len(obj))
		for k, fv := range obj {
			sub, declared := prop.Properties[k]
			if !declared || fv == nil {
				continue
			}
			cv, err := coerceValue(path+"."+k, sub, fv)
			if err != nil {
				return nil, false, err
			}
			out[k] = cv
		}
		return out, true, nil
	case "null":
		return nil, v == nil, nil
	}
	return nil, false, nil
}

// canonicalInteger renders n without fraction or exponent when it denotes an
// integral value.
func canonicalInteger(n json.Number) (json.Number, bool) {
	if i, err := n.Int64(); err == nil {
		return json.Number(strconv.FormatInt(i, 10)), true
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return "", false
	}
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64)), true
}

// canonicalNumber renders n in the shortest form that round-trips, so 1,
// 1.0 and 1e0 are the same argument.
func canonicalNumber(n json.Number) (json.Number, bool) {
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) {
		return "", false
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), true
}

func checkEnum(path string, prop mcp.SchemaProperty, v any) (any, error) {
	if len(prop.Enum) == 0 {
		return v, nil
	}
	got := fmt.Sprint(v)
	allowed := make([]string, 0, len(prop.Enum))
	for _, e := range prop.Enum {
		s := fmt.Sprint(e)
		if s == got {
			return v, nil
		}
		allowed = append(allowed, s)
	}
	return nil, &InvalidParamsError{
		Field:    path,
		Reason:   fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")),
		Expected: strings.Join(allowed, "|"),
		Actual:   got,
	}
}

func mismatch(path string, accepted []string, v any) error {
	expected := strings.Join(accepted, "|")
	actual := kindOf(v)
	return &InvalidParamsError{
		Field:    path,
		Reason:   fmt.Sprintf("expected %s, got %s", expected, actual),
		Expected: expected,
		Actual:   actual,
	}
}

// kindOf names the JSON kind of a value decoded with UseNumber.
func kindOf(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		if _, ok := canonicalInteger(t); ok {
			return "integer"
		}
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
