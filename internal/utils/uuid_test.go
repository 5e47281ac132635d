package utils

import (
	"testing"

	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id, err := GenerateID()
		if err != nil {
			t.Fatalf("GenerateID failed: %v", err)
		}
		if len(id) != 36 {
			t.Fatalf("expected 36 characters, got %d: %q", len(id), id)
		}
		if id[14] != '4' {
			t.Errorf("expected version nibble 4, got %q", id[14])
		}
		if c := id[19]; c != '8' && c != '9' && c != 'a' && c != 'b' {
			t.Errorf("unexpected variant nibble %q in %q", c, id)
		}
		if id[8] != '-' || id[13] != '-' || id[18] != '-' || id[23] != '-' {
			t.Errorf("unexpected separators in %q", id)
		}
		u, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("generated id does not parse: %v", err)
		}
		if u.Version() != 4 {
			t.Errorf("expected version 4, got %d", u.Version())
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
