package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionLeaves_DisjointAndComplete(t *testing.T) {
	m, _ := newTestMesh(t, testParams(2, 3, 5), periodicBounds(2))
	leaves := m.Leaves()
	for i, id := range leaves {
		m.SetPart(id, i%4)
	}

	byPart := PartitionLeaves(m, 4)
	require.Len(t, byPart, 4)

	seen := map[int]bool{}
	total := 0
	for part, group := range byPart {
		for _, id := range group {
			assert.False(t, seen[id], "cell %d assigned twice", id)
			seen[id] = true
			assert.Equal(t, part, m.Cell(id).Part)
		}
		total += len(group)
	}
	assert.Equal(t, len(leaves), total, "every leaf lands in exactly one partition")
}

func TestPartitionLeaves_OutOfRangeFallsBackToZero(t *testing.T) {
	m, _ := newTestMesh(t, testParams(2, 2, 4), periodicBounds(2))
	m.SetPart(m.Leaves()[0], 99)

	byPart := PartitionLeaves(m, 2)
	total := 0
	for _, group := range byPart {
		total += len(group)
	}
	assert.Equal(t, m.NumLeaves(), total)
}

func TestReduceSum_MatchesSerial(t *testing.T) {
	m, _ := newTestMesh(t, testParams(2, 3, 5), periodicBounds(2))
	for i, id := range m.Leaves() {
		m.SetPart(id, i%3)
	}

	contrib := func(id int) float64 {
		c := m.Center(id)
		return c[0]*c[0] + c[1]
	}
	serial := 0.0
	for _, id := range m.Leaves() {
		serial += contrib(id)
	}

	for _, parts := range []int{1, 3} {
		assert.InDelta(t, serial, ReduceSum(m, parts, contrib), 1e-12,
			"%d partitions", parts)
	}
}

func TestReduceMax_MatchesSerial(t *testing.T) {
	m, _ := newTestMesh(t, testParams(2, 3, 5), periodicBounds(2))
	for i, id := range m.Leaves() {
		m.SetPart(id, i%3)
	}

	contrib := func(id int) float64 {
		c := m.Center(id)
		return math.Sin(7*c[0]) * math.Cos(3*c[1])
	}
	serial := math.Inf(-1)
	for _, id := range m.Leaves() {
		serial = math.Max(serial, contrib(id))
	}

	assert.Equal(t, serial, ReduceMax(m, 3, contrib))
}

func TestFiniteCheck(t *testing.T) {
	m, fs := newTestMesh(t, testParams(2, 3, 5), periodicBounds(2))

	require.NoError(t, FiniteCheck(m, fs, 2, FieldTracer, FieldPressure))

	id := m.Leaves()[5]
	fs.Data(FieldPressure)[id] = math.Inf(1)
	err := FiniteCheck(m, fs, 2, FieldTracer, FieldPressure)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDiverged)
	assert.Contains(t, err.Error(), `field "p"`)
}

func TestFiniteCheck_ScansFieldsInArgumentOrder(t *testing.T) {
	m, fs := newTestMesh(t, testParams(2, 3, 5), periodicBounds(2))
	leaves := m.Leaves()

	// A bad tracer value late in the sweep still beats a bad pressure
	// value early in it: fields are scanned in argument order.
	fs.Data(FieldTracer)[leaves[len(leaves)-1]] = math.NaN()
	fs.Data(FieldPressure)[leaves[0]] = math.NaN()

	err := FiniteCheck(m, fs, 1, FieldTracer, FieldPressure)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "T"`)
}
