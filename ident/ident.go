// Package ident implements the flexible identifier used both for JSON-RPC
// request correlation and for resource references supplied by callers.
//
// An ID is either free-form text or a non-negative integer. Callers routinely
// send the same logical identifier in either shape ("108367" vs 108367), so
// equality and hashing are defined over the canonical string form: two IDs are
// equal iff their canonical strings match, regardless of how they arrived.
package ident

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// Kind discriminates the representation an ID was constructed from.
type Kind uint8

const (
	// KindNone is the zero value; it marks an absent identifier.
	KindNone Kind = iota
	// KindText is a free-form string identifier.
	KindText
	// KindInt is a non-negative integer identifier.
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "integer"
	default:
		return "none"
	}
}

// ID is a two-variant identifier: text or non-negative integer.
// The zero value is an absent identifier.
type ID struct {
	kind Kind
	text string
	num  uint64
}

// Text returns a textual identifier.
func Text(s string) ID { return ID{kind: KindText, text: s} }

// Int returns an integer identifier.
func Int(n uint64) ID { return ID{kind: KindInt, num: n} }

// Kind reports the representation of the identifier.
func (id ID) Kind() Kind { return id.kind }

// IsZero reports whether the identifier is absent.
func (id ID) IsZero() bool { return id.kind == KindNone }

// String returns the canonical string form. Integers render in base 10
// without sign or leading zeros; text renders verbatim. Absent IDs render
// as the empty string.
func (id ID) String() string {
	switch id.kind {
	case KindText:
		return id.text
	case KindInt:
		return strconv.FormatUint(id.num, 10)
	default:
		return ""
	}
}

// Uint returns the integer value of the identifier. Text identifiers whose
// content is a canonical decimal integer are also reported.
func (id ID) Uint() (uint64, bool) {
	switch id.kind {
	case KindInt:
		return id.num, true
	case KindText:
		n, err := strconv.ParseUint(id.text, 10, 64)
		if err != nil || strconv.FormatUint(n, 10) != id.text {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Equal reports whether two present identifiers share a canonical form.
func (id ID) Equal(other ID) bool {
	if id.kind == KindNone || other.kind == KindNone {
		return false
	}
	return id.String() == other.String()
}

// MarshalJSON preserves the representation the identifier was built from so
// that responses echo request ids exactly as received.
func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case KindText:
		return json.Marshal(id.text)
	case KindInt:
		return []byte(strconv.FormatUint(id.num, 10)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string or a non-negative integral number.
// Numbers written with a zero fractional part (e.g. 42.0) are accepted.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("identifier: empty value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("identifier: %w", err)
		}
		*id = Text(s)
		return nil
	case 'n':
		return fmt.Errorf("identifier must be a string or integer, got null")
	}
	parsed, err := FromValue(json.Number(string(data)))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// FromValue converts a decoded JSON value into an identifier. It accepts
// strings, json.Number and the native Go numeric types produced by
// encoding/json. Negative and fractional numbers are rejected.
func FromValue(v any) (ID, error) {
	switch t := v.(type) {
	case ID:
		if t.IsZero() {
			return ID{}, fmt.Errorf("identifier is absent")
		}
		return t, nil
	case string:
		return Text(t), nil
	case json.Number:
		return fromNumberLiteral(string(t))
	case float64:
		return fromFloat(t)
	case int:
		if t < 0 {
			return ID{}, fmt.Errorf("identifier must be non-negative, got %d", t)
		}
		return Int(uint64(t)), nil
	case int64:
		if t < 0 {
			return ID{}, fmt.Errorf("identifier must be non-negative, got %d", t)
		}
		return Int(uint64(t)), nil
	case uint64:
		return Int(t), nil
	case nil:
		return ID{}, fmt.Errorf("identifier must be a string or integer, got null")
	default:
		return ID{}, fmt.Errorf("identifier must be a string or integer, got %T", v)
	}
}

func fromNumberLiteral(s string) (ID, error) {
	if !strings.ContainsAny(s, ".eE") {
		if strings.HasPrefix(s, "-") {
			return ID{}, fmt.Errorf("identifier must be non-negative, got %s", s)
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return ID{}, fmt.Errorf("identifier %s is not a valid 64-bit integer", s)
		}
		return Int(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ID{}, fmt.Errorf("identifier %s is not a number", s)
	}
	return fromFloat(f)
}

func fromFloat(f float64) (ID, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return ID{}, fmt.Errorf("identifier must be an integer, got %v", f)
	}
	if f < 0 {
		return ID{}, fmt.Errorf("identifier must be non-negative, got %v", f)
	}
	if f >= math.MaxUint64 {
		return ID{}, fmt.Errorf("identifier %v overflows 64 bits", f)
	}
	return Int(uint64(f)), nil
}

// JSONSchema advertises the dual representation to schema reflection so that
// every identifier-typed tool argument is declared as string | integer.
func (ID) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "integer", Minimum: json.Number("0")},
		},
	}
}
