package ngmesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// WriteOBJ writes m as a Wavefront OBJ document. OBJ face indices are
// 1-based. A mesh failing Validate is rejected before anything is written.
func WriteOBJ(w io.Writer, m *Mesh) error {
	if err := m.Validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	num := make([]byte, 0, 32)

	for _, v := range m.Vertices {
		num = append(num[:0], 'v')
		for _, c := range v {
			num = append(num, ' ')
			num = strconv.AppendFloat(num, float64(c), 'g', -1, 32)
		}

		num = append(num, '\n')

		if _, err := bw.Write(num); err != nil {
			return fmt.Errorf("ngmesh: writing vertex: %w", err)
		}
	}

	for _, f := range m.Faces {
		if _, err := fmt.Fprintf(bw, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1); err != nil {
			return fmt.Errorf("ngmesh: writing face: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("ngmesh: flushing: %w", err)
	}

	return nil
}
