package ngmesh

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Record layout sizes in bytes.
const (
	recordHeaderSize = 16 // object ID + key length + padding
	countsSize       = 16 // vertex count + face count
	vertexSize       = 12 // 3 x float32
	faceSize         = 12 // 3 x uint32
)

// Decode parses every record in data. An empty payload decodes to zero
// fragments. Face indices are validated against the record's own vertices.
func Decode(data []byte) ([]Fragment, error) {
	var frags []Fragment

	off := 0
	for off < len(data) {
		frag, n, err := decodeRecord(data, off)
		if err != nil {
			return nil, err
		}

		frags = append(frags, frag)
		off += n
	}

	return frags, nil
}

// decodeRecord parses the record starting at off and returns it along with
// the number of bytes consumed.
func decodeRecord(data []byte, off int) (Fragment, int, error) {
	start := off
	rest := data[off:]

	if len(rest) < recordHeaderSize {
		return Fragment{}, 0, &DecodeError{Offset: off, Reason: fmt.Sprintf(
			"truncated record header: need %d bytes, have %d", recordHeaderSize, len(rest))}
	}

	objectID := binary.LittleEndian.Uint64(rest[0:8])
	keyLen := binary.LittleEndian.Uint32(rest[8:12])
	off += recordHeaderSize

	if uint64(keyLen) > uint64(len(data)-off) {
		return Fragment{}, 0, &DecodeError{Offset: off, Reason: fmt.Sprintf(
			"fragment key length %d exceeds remaining %d bytes", keyLen, len(data)-off)}
	}

	key := string(data[off : off+int(keyLen)])
	off += int(keyLen)

	if len(data)-off < countsSize {
		return Fragment{}, 0, &DecodeError{Offset: off, Reason: "truncated vertex/face counts"}
	}

	nVerts := int64(binary.LittleEndian.Uint64(data[off : off+8]))
	nFaces := int64(binary.LittleEndian.Uint64(data[off+8 : off+16]))

	if nVerts < 0 || nFaces < 0 {
		return Fragment{}, 0, &DecodeError{Offset: off, Reason: fmt.Sprintf(
			"negative counts: %d vertices, %d faces", nVerts, nFaces)}
	}

	off += countsSize
	remaining := int64(len(data) - off)

	if nVerts > remaining/vertexSize || nFaces > (remaining-nVerts*vertexSize)/faceSize {
		return Fragment{}, 0, &DecodeError{Offset: off, Reason: fmt.Sprintf(
			"%d vertices and %d faces need %d bytes, have %d",
			nVerts, nFaces, nVerts*vertexSize+nFaces*faceSize, remaining)}
	}

	verts := make([]Vertex, nVerts)
	for i := range verts {
		for j := range 3 {
			verts[i][j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
	}

	faces := make([]Face, nFaces)
	for i := range faces {
		for j := range 3 {
			idx := binary.LittleEndian.Uint32(data[off : off+4])
			if int64(idx) >= nVerts {
				return Fragment{}, 0, &DecodeError{Offset: off, Reason: fmt.Sprintf(
					"fragment %q face %d references vertex %d of %d", key, i, idx, nVerts)}
			}

			faces[i][j] = idx
			off += 4
		}
	}

	return Fragment{
		ObjectID: objectID,
		Key:      key,
		Vertices: verts,
		Faces:    faces,
	}, off - start, nil
}

// Encode serializes fragments in the layout Decode reads. The server is the
// only producer in practice; Encode exists for fixtures and round-trips.
func Encode(frags []Fragment) []byte {
	size := 0
	for i := range frags {
		size += recordHeaderSize + len(frags[i].Key) + countsSize +
			len(frags[i].Vertices)*vertexSize + len(frags[i].Faces)*faceSize
	}

	buf := make([]byte, 0, size)

	for i := range frags {
		f := &frags[i]

		buf = binary.LittleEndian.AppendUint64(buf, f.ObjectID)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(f.Key)))
		buf = append(buf, 0, 0, 0, 0)
		buf = append(buf, f.Key...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(f.Vertices)))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(f.Faces)))

		for _, v := range f.Vertices {
			for _, c := range v {
				buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(c))
			}
		}

		for _, face := range f.Faces {
			for _, idx := range face {
				buf = binary.LittleEndian.AppendUint32(buf, idx)
			}
		}
	}

	return buf
}
