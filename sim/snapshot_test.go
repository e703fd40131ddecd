package sim

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotName(t *testing.T) {
	assert.Equal(t, "snapshot-0.2500", SnapshotName(0.25))
	assert.Equal(t, "snapshot-0.0000", SnapshotName(0))
	assert.Equal(t, "snapshot-1.0000", SnapshotName(1))
}

func TestWriteSnapshot_HeaderAndRows(t *testing.T) {
	m, fs := newTestMesh(t, testParams(2, 2, 4), periodicBounds(2))
	tracer := fs.Data(FieldTracer)
	for _, id := range m.Leaves() {
		tracer[id] = 0.5
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(bufio.NewWriter(&buf), m, fs, 0.25))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2+m.NumLeaves(), "two header lines plus one row per leaf")
	assert.Equal(t, "# t=0.250000 leaves=16", lines[0])

	// Sorted field columns after the fixed geometry columns.
	assert.Equal(t, "# x y z level K T T1 p u v", lines[1])

	cols := strings.Fields(lines[2])
	require.Len(t, cols, 4+len(fs.Names()))
	assert.Equal(t, "2", cols[3], "leaf level")
	assert.Equal(t, "5.00000000e-01", cols[5], "tracer column follows sort order")
}

func TestWriteSnapshotFile(t *testing.T) {
	m, fs := newTestMesh(t, testParams(2, 2, 3), periodicBounds(2))
	dir := t.TempDir()

	path, err := WriteSnapshotFile(dir, m, fs, 0.5)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "snapshot-0.5000"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# t=0.500000")
}
