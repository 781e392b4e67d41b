package uuid

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	id1 := New()
	id2 := New()

	if id1 == id2 {
		t.Error("UUIDs should be unique")
	}

	// Canonical textual form: 8-4-4-4-12 hex groups.
	if len(id1) != 36 {
		t.Errorf("UUID length = %d, want 36", len(id1))
	}
	if strings.Count(id1, "-") != 4 {
		t.Errorf("UUID %q is not in canonical dashed form", id1)
	}
	for _, i := range []int{8, 13, 18, 23} {
		if id1[i] != '-' {
			t.Errorf("UUID %q missing dash at position %d", id1, i)
		}
	}
}
