package utils

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewIDIsUUIDAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for _i := 0; _i < 100; _i++ {
		id := NewID()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("expected uuid, got %q: %v", id, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
