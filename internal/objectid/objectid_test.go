package objectid

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUID_UniqueAndParseable(t *testing.T) {
	var g Generator = UUID{}
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		id := g.New()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
		u, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("parse %q: %v", id, err)
		}
		if u.Version() != 4 {
			t.Fatalf("version=%d want 4", u.Version())
		}
	}
}

func TestGeneratorFunc(t *testing.T) {
	n := 0
	g := GeneratorFunc(func() string { n++; return "fixed" })
	if g.New() != "fixed" || n != 1 {
		t.Fatal("GeneratorFunc did not delegate")
	}
}

func TestValidate(t *testing.T) {
	for _, id := range []string{"id1", "a.b", "x-y_z", "caf\u00e9", uuid.NewString(), strings.Repeat("a", MaxLen)} {
		if err := Validate(id); err != nil {
			t.Fatalf("Validate(%q): %v", id, err)
		}
	}
	for _, id := range []string{"", "a/b", "/", "a?b", "a#b", ".", "..", "a\nb", strings.Repeat("a", MaxLen+1)} {
		if err := Validate(id); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Validate(%q) = %v, want ErrInvalid", id, err)
		}
	}
}
