// Package objectid supplies the opaque identifiers objects are cached under.
package objectid

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// MaxLen bounds caller-supplied ids in bytes.
const MaxLen = 256

var ErrInvalid = errors.New("invalid object id")

// Validate accepts ids that round-trip as a single /objects/{id} path
// segment: non-empty, at most MaxLen bytes, no '/', '?', '#' or control
// characters, and not a dot segment.
func Validate(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalid)
	case len(id) > MaxLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalid, MaxLen)
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q is a dot segment", ErrInvalid, id)
	case strings.ContainsAny(id, "/?#"):
		return fmt.Errorf("%w: %q must not contain '/', '?' or '#'", ErrInvalid, id)
	case strings.ContainsFunc(id, unicode.IsControl):
		return fmt.Errorf("%w: %q contains control characters", ErrInvalid, id)
	}
	return nil
}

type Generator interface {
	New() string
}

// UUID issues random (version 4) UUIDs in canonical string form.
type UUID struct{}

func (UUID) New() string { return uuid.NewString() }

// GeneratorFunc adapts a plain function, mostly for tests.
type GeneratorFunc func() string

func (f GeneratorFunc) New() string { return f() }
