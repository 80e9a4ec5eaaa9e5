package ident

import (
	"strings"
	"testing"
)

func TestNewCarriesPrefixAndSequence(t *testing.T) {
	id := New("hl")
	if !strings.HasPrefix(id, "hl-") {
		t.Fatalf("expected hl- prefix, got %q", id)
	}
	parts := strings.Split(id, "-")
	if len(parts) != 3 {
		t.Fatalf("expected prefix-seq-rand shape, got %q", id)
	}
	if parts[2] == "" {
		t.Fatalf("expected a random suffix, got %q", id)
	}
}

func TestNewNeverRepeats(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New("res")
		if seen[id] {
			t.Fatalf("duplicate id %q after %d draws", id, i)
		}
		seen[id] = true
	}
}
