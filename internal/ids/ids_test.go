package ids

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	a := New()
	b := New()

	if len(a) != 32 {
		t.Fatalf("expected 32-char id, got %d", len(a))
	}
	if len(b) != 32 {
		t.Fatalf("expected 32-char id, got %d", len(b))
	}
	if a == b {
		t.Fatalf("expected distinct ids, got duplicates")
	}
}

func TestNewSession(t *testing.T) {
	a := NewSession()
	b := NewSession()

	if len(a) != 36 {
		t.Fatalf("expected uuid session id, got %q", a)
	}
	if a == b {
		t.Fatalf("expected distinct session ids, got duplicates")
	}
}

func TestNewBlueprint(t *testing.T) {
	id := NewBlueprint()
	if !strings.HasPrefix(id, "bp_") {
		t.Fatalf("expected bp_ prefix, got %q", id)
	}
	if len(id) != 3+32 {
		t.Fatalf("unexpected blueprint id length: %q", id)
	}
}
