package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBalancer(t *testing.T, parts int, threshold float64) *SFCBalancer {
	t.Helper()
	b, err := NewBalancer("sfc", parts, threshold)
	require.NoError(t, err)
	sfc := b.(*SFCBalancer)
	sfc.Backoff = time.Microsecond // keep retry tests fast
	return sfc
}

func TestNewBalancer_UnknownKind(t *testing.T) {
	_, err := NewBalancer("hash", 4, 0.1)
	assert.ErrorIs(t, err, ErrBadConfig)

	_, err = NewBalancer("sfc", 0, 0.1)
	assert.ErrorIs(t, err, ErrBadConfig)
}

func TestImbalance_Formula(t *testing.T) {
	params := testParams(2, 2, 4)
	m, _ := newTestMesh(t, params, periodicBounds(2))
	b := newTestBalancer(t, 2, 0.1)

	// 12 leaves on partition 0, 4 on partition 1.
	for i, id := range m.Leaves() {
		if i < 4 {
			m.SetPart(id, 1)
		} else {
			m.SetPart(id, 0)
		}
	}
	assert.InDelta(t, (12.0-4.0)/12.0, b.Imbalance(m), 1e-12)
}

func TestBalance_ConvergesBelowThreshold(t *testing.T) {
	params := testParams(2, 3, 4)
	m, _ := newTestMesh(t, params, periodicBounds(2))
	b := newTestBalancer(t, 4, 0.1)

	// Worst case: every leaf on one partition.
	for _, id := range m.Leaves() {
		m.SetPart(id, 0)
	}
	require.Greater(t, b.Imbalance(m), 0.1)

	report, err := b.Balance(m)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Greater(t, report.Moved, 0)
	assert.LessOrEqual(t, report.After, 0.1,
		"64 leaves across 4 partitions slice evenly")
}

func TestBalance_IdempotentWhenBalanced(t *testing.T) {
	params := testParams(2, 3, 4)
	m, _ := newTestMesh(t, params, periodicBounds(2))
	b := newTestBalancer(t, 4, 0.1)

	_, err := b.Balance(m)
	require.NoError(t, err)

	report, err := b.Balance(m)
	require.NoError(t, err)
	assert.True(t, report.Skipped, "an already balanced mesh is a no-op")
	assert.Zero(t, report.Moved)
}

func TestBalance_PreservesMortonLocality(t *testing.T) {
	params := testParams(2, 3, 4)
	m, _ := newTestMesh(t, params, periodicBounds(2))
	b := newTestBalancer(t, 4, 0.05)

	for _, id := range m.Leaves() {
		m.SetPart(id, 0)
	}
	_, err := b.Balance(m)
	require.NoError(t, err)

	// Partition ids must be non-decreasing along the Morton order:
	// contiguous slices of the space-filling curve.
	prev := -1
	m.EachLeaf(func(id int) bool {
		p := m.Cell(id).Part
		assert.GreaterOrEqual(t, p, prev)
		prev = p
		return true
	})
}

func TestBalance_RetriesTransientFailures(t *testing.T) {
	params := testParams(2, 3, 4)
	m, _ := newTestMesh(t, params, periodicBounds(2))
	b := newTestBalancer(t, 4, 0.1)
	for _, id := range m.Leaves() {
		m.SetPart(id, 0)
	}

	attempts := 0
	b.commitHook = func(moves []partMove) error {
		attempts++
		if attempts <= 2 {
			return errors.New("target partition unreachable")
		}
		return nil
	}

	report, err := b.Balance(m)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Retries)
	assert.LessOrEqual(t, report.After, 0.1)
}

func TestBalance_ExhaustedRetriesAreFatalAndRolledBack(t *testing.T) {
	params := testParams(2, 3, 4)
	m, _ := newTestMesh(t, params, periodicBounds(2))
	b := newTestBalancer(t, 4, 0.1)
	for _, id := range m.Leaves() {
		m.SetPart(id, 0)
	}

	b.commitHook = func(moves []partMove) error {
		return errors.New("migration timeout")
	}

	_, err := b.Balance(m)
	require.ErrorIs(t, err, ErrMigrationFailed)

	// Rollback: no partial migration is ever observable.
	m.EachLeaf(func(id int) bool {
		assert.Equal(t, 0, m.Cell(id).Part)
		return true
	})
}
