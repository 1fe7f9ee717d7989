// Package volumeid provides a typed Brainmaps volume identifier of the form
// "project:dataset:volume". Fields are parsed once at construction time and
// accessors return stored values without re-splitting.
//
// This is a leaf package with zero external dependencies beyond stdlib.
package volumeid

import (
	"encoding"
	"fmt"
	"strings"
)

// partCount is the number of colon-separated segments in a volume ID.
const partCount = 3

// ID identifies a remote volume. The zero value (ID{}) represents an absent
// volume.
type ID struct {
	project string
	dataset string
	volume  string
}

// Parse validates raw and returns the ID. Each of the three parts must be
// non-empty and must not contain "/" (volume IDs are used as URL path
// segments).
func Parse(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ID{}, fmt.Errorf("volumeid: empty volume ID")
	}

	parts := strings.Split(raw, ":")
	if len(parts) != partCount {
		return ID{}, fmt.Errorf(
			"volumeid: %q must be \"project:dataset:volume\", got %d parts", raw, len(parts))
	}

	names := [partCount]string{"project", "dataset", "volume"}
	for i, p := range parts {
		if p == "" {
			return ID{}, fmt.Errorf("volumeid: %q has empty %s", raw, names[i])
		}

		if strings.Contains(p, "/") {
			return ID{}, fmt.Errorf("volumeid: %q %s must not contain '/'", raw, names[i])
		}
	}

	return ID{project: parts[0], dataset: parts[1], volume: parts[2]}, nil
}

// MustParse is Parse for compile-time constants. Panics on invalid input.
func MustParse(raw string) ID {
	id, err := Parse(raw)
	if err != nil {
		panic(err)
	}

	return id
}

// String returns "project:dataset:volume", or "" for the zero ID.
func (id ID) String() string {
	if id.IsZero() {
		return ""
	}

	return id.project + ":" + id.dataset + ":" + id.volume
}

// Project returns the project segment.
func (id ID) Project() string { return id.project }

// Dataset returns the dataset segment.
func (id ID) Dataset() string { return id.dataset }

// Volume returns the volume segment.
func (id ID) Volume() string { return id.volume }

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields the
// zero ID.
func (id *ID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*id = ID{}
		return nil
	}

	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}

var (
	_ encoding.TextMarshaler   = ID{}
	_ encoding.TextUnmarshaler = (*ID)(nil)
	_ fmt.Stringer             = ID{}
)
