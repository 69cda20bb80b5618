package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNanoID(t *testing.T) {
	for _, n := range []int{8, 16, 64} {
		id := NanoID(n)()
		if len(id) != n {
			t.Fatalf("NanoID(%d): length %d", n, len(id))
		}
		if strings.Trim(id, "0123456789abcdefghijklmnopqrstuvwxyz") != "" {
			t.Fatalf("NanoID(%d): characters outside base-36 in %q", n, id)
		}
	}
}

func TestGenerators_Unique(t *testing.T) {
	gens := map[string]Generator{
		"nano":   NanoID(12),
		"uuidv7": UUIDv7(),
	}
	for name, gen := range gens {
		seen := make(map[string]bool, 500)
		for i := 0; i < 500; i++ {
			id := gen()
			if seen[id] {
				t.Fatalf("%s: duplicate %q at iteration %d", name, id, i)
			}
			seen[id] = true
		}
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("trc_", NanoID(8))()
	if !strings.HasPrefix(id, "trc_") || len(id) != 12 {
		t.Fatalf("Prefixed: got %q", id)
	}
}

func TestUUIDv7_Version(t *testing.T) {
	u, err := uuid.Parse(UUIDv7()())
	if err != nil {
		t.Fatalf("UUIDv7: %v", err)
	}
	if u.Version() != 7 {
		t.Fatalf("UUIDv7: version %d, want 7", u.Version())
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	a := gen()
	time.Sleep(2 * time.Millisecond)
	b := gen()
	if a >= b {
		t.Fatalf("UUIDv7: %q should sort before %q", a, b)
	}
}
