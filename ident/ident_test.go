package ident

import (
	"encoding/json"
	"testing"
)

func TestCanonicalEquality(t *testing.T) {
	tests := []struct {
		name  string
		a, b  ID
		equal bool
	}{
		{"text vs int", Text("108367"), Int(108367), true},
		{"int vs int", Int(7), Int(7), true},
		{"text vs text", Text("sis_course_id:A1"), Text("sis_course_id:A1"), true},
		{"leading zero text is distinct", Text("0108367"), Int(108367), false},
		{"different ints", Int(1), Int(2), false},
		{"absent never equal", ID{}, ID{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Fatalf("Equal(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.equal)
			}
		})
	}
}

func TestUnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		kind    Kind
		wantErr bool
	}{
		{in: `"abc"`, want: "abc", kind: KindText},
		{in: `"108367"`, want: "108367", kind: KindText},
		{in: `108367`, want: "108367", kind: KindInt},
		{in: `42.0`, want: "42", kind: KindInt},
		{in: `1e3`, want: "1000", kind: KindInt},
		{in: `-1`, wantErr: true},
		{in: `1.5`, wantErr: true},
		{in: `null`, wantErr: true},
		{in: `true`, wantErr: true},
		{in: `{"a":1}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var id ID
			err := json.Unmarshal([]byte(tt.in), &id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s, got %v", tt.in, id)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal %s: %v", tt.in, err)
			}
			if id.String() != tt.want || id.Kind() != tt.kind {
				t.Fatalf("got %q (%s), want %q (%s)", id.String(), id.Kind(), tt.want, tt.kind)
			}
		})
	}
}

func TestMarshalPreservesRepresentation(t *testing.T) {
	b, err := json.Marshal(map[string]ID{"a": Text("5"), "b": Int(5)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":"5","b":5}` {
		t.Fatalf("unexpected encoding: %s", b)
	}
	b, err = json.Marshal(ID{})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "null" {
		t.Fatalf("absent id should encode as null, got %s", b)
	}
}

func TestUint(t *testing.T) {
	if n, ok := Text("42").Uint(); !ok || n != 42 {
		t.Fatalf("Text(42).Uint() = %d, %v", n, ok)
	}
	if _, ok := Text("042").Uint(); ok {
		t.Fatal("non-canonical decimal text must not report an integer")
	}
	if _, ok := Text("course-1").Uint(); ok {
		t.Fatal("free text must not report an integer")
	}
	if n, ok := Int(9).Uint(); !ok || n != 9 {
		t.Fatalf("Int(9).Uint() = %d, %v", n, ok)
	}
}

func TestFromValue(t *testing.T) {
	for _, v := range []any{"108367", json.Number("108367"), float64(108367), int64(108367), uint64(108367)} {
		id, err := FromValue(v)
		if err != nil {
			t.Fatalf("FromValue(%#v): %v", v, err)
		}
		if id.String() != "108367" {
			t.Fatalf("FromValue(%#v) = %q", v, id)
		}
	}
	for _, v := range []any{nil, true, float64(-3), json.Number("2.5"), []any{}} {
		if _, err := FromValue(v); err == nil {
			t.Fatalf("FromValue(%#v) should fail", v)
		}
	}
}
