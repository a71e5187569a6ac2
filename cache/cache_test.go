package cache

import (
	"testing"
	"time"
)

func TestKeyIgnoresKeyOrder(t *testing.T) {
	a, err := Key("get_assignment", map[string]any{"course_identifier": "1", "assignment_id": "2"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Key("get_assignment", map[string]any{"assignment_id": "2", "course_identifier": "1"})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("keys differ: %s vs %s", a, b)
	}
}

func TestKeyDistinguishesMethodAndParams(t *testing.T) {
	base, _ := Key("get_course", map[string]any{"course_identifier": "108367"})
	other, _ := Key("get_course", map[string]any{"course_identifier": "108368"})
	method, _ := Key("list_assignments", map[string]any{"course_identifier": "108367"})
	if base == other || base == method {
		t.Fatalf("expected distinct keys, got %s %s %s", base, other, method)
	}
}

func TestKeyNilParams(t *testing.T) {
	a, err := Key("get_current_user", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Key("get_current_user", map[string]any{})
	if a != b {
		t.Fatalf("nil and empty params should share a key: %s vs %s", a, b)
	}
}

func TestEntryExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &Entry{CreatedAt: now, TTL: time.Minute}
	if e.IsExpired(now.Add(59 * time.Second)) {
		t.Fatal("entry expired early")
	}
	if !e.IsExpired(now.Add(time.Minute)) {
		t.Fatal("entry should be expired at its deadline")
	}
}
