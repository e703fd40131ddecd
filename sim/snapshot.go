package sim

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotName generates the snapshot file name for a simulation time.
// The numeric format is fixed so downstream tooling can glob and sort.
func SnapshotName(t float64) string {
	return fmt.Sprintf("snapshot-%.4f", t)
}

// WriteSnapshot dumps the full leaf state to w: a header listing the
// field columns, then one Morton-ordered line per leaf with cell center,
// level, and each registered field value.
func WriteSnapshot(w *bufio.Writer, m *Mesh, fs *FieldStore, t float64) error {
	names := fs.Names()
	fmt.Fprintf(w, "# t=%.6f leaves=%d\n", t, m.NumLeaves())
	fmt.Fprint(w, "# x y z level")
	for _, n := range names {
		fmt.Fprintf(w, " %s", n)
	}
	fmt.Fprintln(w)

	data := make([][]float64, len(names))
	for i, n := range names {
		data[i] = fs.Data(n)
	}
	m.EachLeaf(func(id int) bool {
		c := m.Center(id)
		fmt.Fprintf(w, "%.8f %.8f %.8f %d", c[0], c[1], c[2], m.Cell(id).Level)
		for i := range names {
			fmt.Fprintf(w, " %.8e", data[i][id])
		}
		fmt.Fprintln(w)
		return true
	})
	return w.Flush()
}

// WriteSnapshotFile writes a snapshot into dir under the fixed name for
// time t and returns the path.
func WriteSnapshotFile(dir string, m *Mesh, fs *FieldStore, t float64) (string, error) {
	path := filepath.Join(dir, SnapshotName(t))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	defer f.Close()
	if err := WriteSnapshot(bufio.NewWriter(f), m, fs, t); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	return path, nil
}
