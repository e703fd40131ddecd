package sim

import (
	"testing"

	"github.com/wqabc2008/breakup/sim/trace"
)

// testParams returns a valid parameter set for kernel tests. Callers
// override fields as needed.
func testParams(dim, minLevel, maxLevel int) *GlobalParams {
	return &GlobalParams{
		Dim:            dim,
		DensityRatio:   2,
		ViscosityRatio: 0.01,
		Reynolds:       100,
		Weber:          10,
		MinLevel:       minLevel,
		MaxLevel:       maxLevel,
		EndTime:        1,
		Dt:             1e-3,
		Extent:         1,
	}
}

// periodicBounds returns all-periodic boundaries for the dimension.
func periodicBounds(dim int) Boundaries {
	var b Boundaries
	for axis := 0; axis < dim; axis++ {
		b[2*axis] = BoundaryPeriodic
		b[2*axis+1] = BoundaryPeriodic
	}
	return b
}

// newTestMesh builds a mesh with registered standard fields, failing the
// test on error.
func newTestMesh(t *testing.T, params *GlobalParams, bcs Boundaries) (*Mesh, *FieldStore) {
	t.Helper()
	fs := NewFieldStore()
	if err := RegisterStandardFields(fs, params.Dim); err != nil {
		t.Fatalf("register fields: %v", err)
	}
	m, err := NewMesh(params, bcs, fs)
	if err != nil {
		t.Fatalf("new mesh: %v", err)
	}
	return m, fs
}

// newTestSimulator assembles a small 2D simulator with a short run window.
func newTestSimulator(t *testing.T, dt, endTime float64) (*Simulator, *FieldStore) {
	t.Helper()
	params := testParams(2, 2, 4)
	params.Dt = dt
	params.EndTime = endTime

	m, fs := newTestMesh(t, params, periodicBounds(2))
	mo := NewMomentum(params, NewJacobiSolver(10), false)
	b, err := NewBalancer("sfc", 2, 0.1)
	if err != nil {
		t.Fatalf("new balancer: %v", err)
	}
	metrics := NewMetrics(nil, nil)
	s := NewSimulator(params, m, fs, mo, b, NewPartitionedRNG(1),
		trace.New(trace.LevelNone), metrics, 2, 0)
	return s, fs
}
