// Package ngmesh decodes and assembles the binary mesh records returned by the
// Brainmaps meshes:batch endpoint.
//
// A payload is a sequence of records, each describing one mesh fragment.
// All integers are little-endian:
//
//	int64   object ID
//	uint32  fragment key length (n)
//	4 bytes padding
//	n bytes fragment key
//	int64   vertex count (v)
//	int64   face count (f)
//	v*3     float32 vertex coordinates (x, y, z)
//	f*3     uint32 vertex indices
//
// Face indices in a record are local to that record's vertices. Merge
// concatenates fragments and rebases the indices.
//
// This is a leaf package with zero external dependencies beyond stdlib.
package ngmesh

import (
	"errors"
	"fmt"
	"math"
)

// Vertex is a point in the volume's physical coordinate space.
type Vertex [3]float32

// Face is a triangle referencing three entries of a vertex slice.
type Face [3]uint32

// Mesh is a triangle mesh. Every face index is in [0, len(Vertices)).
type Mesh struct {
	Vertices []Vertex
	Faces    []Face
}

// Fragment is one decoded mesh chunk of a segmented object.
type Fragment struct {
	ObjectID uint64
	Key      string
	Vertices []Vertex
	Faces    []Face
}

// ErrMalformed is the sentinel wrapped by every DecodeError.
var ErrMalformed = errors.New("ngmesh: malformed mesh payload")

// ErrTooLarge is returned by Merge when the combined vertex count cannot be
// addressed by uint32 face indices.
var ErrTooLarge = errors.New("ngmesh: merged mesh exceeds uint32 vertex indices")

// ErrFaceOutOfRange marks a face whose vertex index lies outside its mesh or
// fragment.
var ErrFaceOutOfRange = errors.New("ngmesh: face index out of range")

// DecodeError reports where and why a payload failed to decode.
type DecodeError struct {
	Offset int // byte offset of the record or field that failed
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ngmesh: malformed payload at byte %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformed
}

// Validate reports the first face that references a vertex out of range.
func (m *Mesh) Validate() error {
	n := uint64(len(m.Vertices))

	for i, f := range m.Faces {
		for _, idx := range f {
			if uint64(idx) >= n {
				return fmt.Errorf("%w: face %d references vertex %d of %d", ErrFaceOutOfRange, i, idx, n)
			}
		}
	}

	return nil
}

// Merge concatenates fragments in slice order. Fragment N's face indices are
// offset by the total vertex count of fragments 0..N-1, so the result depends
// on input order. Every face must index its own fragment's vertices or Merge
// fails with ErrFaceOutOfRange. An empty input yields an empty, non-nil mesh.
func Merge(frags []Fragment) (*Mesh, error) {
	var nVerts, nFaces int
	for i := range frags {
		nVerts += len(frags[i].Vertices)
		nFaces += len(frags[i].Faces)
	}

	if uint64(nVerts) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d vertices", ErrTooLarge, nVerts)
	}

	m := &Mesh{
		Vertices: make([]Vertex, 0, nVerts),
		Faces:    make([]Face, 0, nFaces),
	}

	for i := range frags {
		offset := uint32(len(m.Vertices))
		n := uint64(len(frags[i].Vertices))

		m.Vertices = append(m.Vertices, frags[i].Vertices...)

		for j, f := range frags[i].Faces {
			for _, idx := range f {
				if uint64(idx) >= n {
					return nil, fmt.Errorf("%w: fragment %d (%q) face %d references vertex %d of %d",
						ErrFaceOutOfRange, i, frags[i].Key, j, idx, n)
				}
			}

			m.Faces = append(m.Faces, Face{f[0] + offset, f[1] + offset, f[2] + offset})
		}
	}

	return m, nil
}
