package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ReachesEndTimeExactly(t *testing.T) {
	s, _ := newTestSimulator(t, 0.003, 0.01) // dt does not divide end_time

	sphere, err := BuildScalarExpr("sphere",
		map[string]float64{"radius": 0.25, "cx": 0.5, "cy": 0.5}, nil)
	require.NoError(t, err)
	s.Register(&Event{Name: "init-tracer", IEnd: 0,
		Action: &InitAction{Field: FieldTracer, Scalar: sphere}})

	require.NoError(t, s.Run())

	assert.Equal(t, 0.01, s.T, "final time snaps exactly to end_time")
	assert.Equal(t, 4, s.StepCount, "three full steps plus one clamped step")
	assert.Equal(t, 4, s.Metrics.StepsCompleted)
}

func TestRun_ConservesTracerWithStillVelocity(t *testing.T) {
	s, _ := newTestSimulator(t, 0.002, 0.02)

	sphere, err := BuildScalarExpr("sphere",
		map[string]float64{"radius": 0.25, "cx": 0.5, "cy": 0.5}, nil)
	require.NoError(t, err)
	s.Register(&Event{Name: "init-tracer", IEnd: 0,
		Action: &InitAction{Field: FieldTracer, Scalar: sphere}})

	// Record mass right after initialization.
	var m0 float64
	s.Register(&Event{Name: "probe", IStart: 0, IEnd: 0,
		Action: &recordMass{&m0}})

	require.NoError(t, s.Run())
	assert.InDelta(t, m0, TracerMass(s.Mesh, s.Fields), 1e-10,
		"periodic advection conserves tracer volume")
}

type recordMass struct{ out *float64 }

func (a *recordMass) Kind() string { return "record-mass" }
func (a *recordMass) Fire(s *Simulator, n int, t float64) error {
	*a.out = TracerMass(s.Mesh, s.Fields)
	return nil
}

func TestRun_DivergenceAborts(t *testing.T) {
	s, _ := newTestSimulator(t, 0.01, 1.0)

	// Poison the tracer after the first completed step. Advection smears
	// the NaN and the finite check at the next step must unwind the run.
	s.Register(&Event{Name: "poison", IStart: 1, IEnd: 1,
		Action: &poisonAction{}})

	err := s.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDiverged)
	assert.Contains(t, err.Error(), `field "T"`, "names the offending field")
	assert.Less(t, s.T, 1.0, "run halted well before end_time")
}

type poisonAction struct{}

func (a *poisonAction) Kind() string { return "poison" }
func (a *poisonAction) Fire(s *Simulator, n int, t float64) error {
	data := s.Fields.Data(FieldTracer)
	data[s.Mesh.Leaves()[0]] = math.NaN()
	return nil
}

func TestRun_EventErrorCarriesEventName(t *testing.T) {
	s, _ := newTestSimulator(t, 0.01, 0.01)
	s.Register(&Event{Name: "broken", IEnd: -1, Action: &failingAction{}})

	err := s.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `event "broken"`)
}

type failingAction struct{}

func (a *failingAction) Kind() string { return "fail" }
func (a *failingAction) Fire(s *Simulator, n int, t float64) error {
	return errBadConfigf("deliberate failure")
}

func TestRun_StartTimeOffsetsClock(t *testing.T) {
	s, _ := newTestSimulator(t, 0.01, 0.55)
	s.Params.StartTime = 0.5
	s.T = s.Params.StartTime

	require.NoError(t, s.Run())
	assert.Equal(t, 0.55, s.T)
	assert.Equal(t, 5, s.StepCount, "resumed runs only cover the remaining window")
}

func TestRegisterStandardFields(t *testing.T) {
	fs := NewFieldStore()
	require.NoError(t, RegisterStandardFields(fs, 3))
	for _, name := range []string{"T", "T1", "K", "p", "u", "v", "w"} {
		assert.True(t, fs.Has(name), "field %q", name)
	}

	fs2 := NewFieldStore()
	require.NoError(t, RegisterStandardFields(fs2, 2))
	assert.False(t, fs2.Has("w"), "no z velocity in 2D")
}
