package sim

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wqabc2008/breakup/sim/trace"
)

// Simulator is the event scheduler: it owns simulation time t, the step
// counter n, and the registered event list, and drives the tick loop that
// fires due events and advances the coupled VOF/momentum state.
type Simulator struct {
	Params   *GlobalParams
	Mesh     *Mesh
	Fields   *FieldStore
	Momentum *Momentum
	Balancer Balancer
	RNG      *PartitionedRNG
	Trace    *trace.RunTrace
	Metrics  *Metrics

	// NumParts is the worker/partition count for domain decomposition.
	NumParts int
	// FilterWidth enables tracer filtering into T1 when positive; a
	// scenario-driven capability, not a universal default.
	FilterWidth int

	// T is the simulation time, StepCount the tick counter n.
	T         float64
	StepCount int

	events []*Event
}

// NewSimulator assembles the scheduler around its components. The field
// store must already hold the standard fields; the mesh must be built to
// minlevel.
func NewSimulator(params *GlobalParams, m *Mesh, fs *FieldStore, mo *Momentum,
	b Balancer, rng *PartitionedRNG, rt *trace.RunTrace, metrics *Metrics,
	numParts, filterWidth int) *Simulator {
	return &Simulator{
		Params:      params,
		Mesh:        m,
		Fields:      fs,
		Momentum:    mo,
		Balancer:    b,
		RNG:         rng,
		Trace:       rt,
		Metrics:     metrics,
		NumParts:    numParts,
		FilterWidth: filterWidth,
		T:           params.StartTime,
	}
}

// Register appends an event. Events fire in registration order within a
// tick; later events may read fields mutated by earlier ones, so this
// order is a correctness requirement.
func (s *Simulator) Register(e *Event) {
	s.events = append(s.events, e)
}

// RegisterStandardFields registers the fields every run carries.
func RegisterStandardFields(fs *FieldStore, dim int) error {
	names := []string{FieldTracer, FieldFiltered, FieldCurv, FieldPressure}
	for axis := 0; axis < dim; axis++ {
		names = append(names, VelocityField(axis))
	}
	for _, n := range names {
		if err := fs.Register(n); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the tick loop until t reaches end_time, firing events due
// at end_time before stopping. Non-recoverable conditions (divergence,
// migration failure) unwind here with the step and time at which they
// occurred; the run halts with a consistent state at the last completed
// tick boundary.
func (s *Simulator) Run() error {
	start := time.Now()

	// Tick 0: initialization and any other events due at the start.
	if err := s.fireDue(); err != nil {
		return errWrapf(err, "at step %d t=%.6f", s.StepCount, s.T)
	}

	for s.T < s.Params.EndTime-timeTol {
		stepStart := time.Now()
		dt := math.Min(s.Params.Dt, s.Params.EndTime-s.T)

		if err := s.advance(dt); err != nil {
			return errWrapf(err, "advancing step %d", s.StepCount+1)
		}
		s.StepCount++
		s.T += dt
		if s.Params.EndTime-s.T < s.Params.Dt*1e-9 {
			s.T = s.Params.EndTime
		}

		if err := s.checkFinite(); err != nil {
			return errWrapf(err,
				"at step %d t=%.6f (last valid step %d t=%.6f)",
				s.StepCount, s.T, s.StepCount-1, s.T-dt)
		}
		if err := s.fireDue(); err != nil {
			return errWrapf(err, "at step %d t=%.6f", s.StepCount, s.T)
		}

		imbalance := s.Balancer.Imbalance(s.Mesh)
		wall := time.Since(stepStart)
		s.Metrics.LogStep(s.StepCount, s.T, s.Mesh.NumLeaves(), wall, imbalance)
		logrus.Infof("[step %06d] t=%.6f dt=%.2e leaves=%d %.1f steps/s",
			s.StepCount, s.T, dt, s.Mesh.NumLeaves(),
			1/math.Max(wall.Seconds(), 1e-9))
	}

	logrus.Infof("[step %06d] run ended at t=%.6f (%s wall)",
		s.StepCount, s.T, time.Since(start).Round(time.Millisecond))
	return nil
}

// fireDue evaluates every registered event against the current tick, in
// registration order.
func (s *Simulator) fireDue() error {
	for _, e := range s.events {
		if !e.Due(s.StepCount, s.T) {
			continue
		}
		if err := e.Action.Fire(s, s.StepCount, s.T); err != nil {
			return errWrapf(err, "event %q", e.Name)
		}
	}
	return nil
}

// advance moves the coupled fields forward by dt: tracer advection with
// clamp accounting, optional filtering, curvature reconstruction, then
// the momentum forcing and projection.
func (s *Simulator) advance(dt float64) error {
	report := Advect(s.Mesh, s.Fields, dt)
	if report.Clamped() {
		s.Metrics.ClampEvents++
		s.Metrics.ClampedMass += report.ClampedMass
		logrus.Warnf("[step %06d] tracer clamped in %d cells (mass %.3e, range [%.4f, %.4f])",
			s.StepCount+1, report.ClampedCells, report.ClampedMass,
			report.MinValue, report.MaxValue)
	}

	curvSource := FieldTracer
	if s.FilterWidth > 0 {
		Filter(s.Mesh, s.Fields, s.FilterWidth)
		curvSource = FieldFiltered
	}
	Curvature(s.Mesh, s.Fields, curvSource)

	return s.Momentum.Step(s.Mesh, s.Fields, s.T, dt)
}

// checkFinite scans the primary fields for numerical divergence.
func (s *Simulator) checkFinite() error {
	fields := []string{FieldTracer, FieldPressure}
	for axis := 0; axis < s.Params.Dim; axis++ {
		fields = append(fields, VelocityField(axis))
	}
	return FiniteCheck(s.Mesh, s.Fields, s.NumParts, fields...)
}

// forEachLeafCtx visits every leaf with a populated evaluation context.
func (s *Simulator) forEachLeafCtx(t float64, fn func(id int, ctx *EvalContext) error) error {
	mean := MeanVelocity(s.Mesh, s.Fields)
	var failed error
	s.Mesh.EachLeaf(func(id int) bool {
		c := s.Mesh.Center(id)
		ctx := &EvalContext{
			X: c[0], Y: c[1], Z: c[2],
			Time: t, Cell: id,
			Fields: s.Fields, Params: s.Params,
			MeanVel: mean,
		}
		if err := fn(id, ctx); err != nil {
			failed = err
			return false
		}
		return true
	})
	return failed
}

// writeScalarStats emits the named aggregate values for this step:
// tracer mass, kinetic energy, interface cell count, and peak |K|.
func (s *Simulator) writeScalarStats(n int, t float64) {
	tracer := s.Fields.Data(FieldTracer)
	curv := s.Fields.Data(FieldCurv)
	vel := make([][]float64, s.Params.Dim)
	for axis := 0; axis < s.Params.Dim; axis++ {
		vel[axis] = s.Fields.Data(VelocityField(axis))
	}

	mass := ReduceSum(s.Mesh, s.NumParts, func(id int) float64 {
		return tracer[id] * s.Mesh.Volume(id)
	})
	ke := ReduceSum(s.Mesh, s.NumParts, func(id int) float64 {
		sq := 0.0
		for axis := range vel {
			sq += vel[axis][id] * vel[axis][id]
		}
		rho := 1 / s.Params.InvDensity(tracer[id])
		return 0.5 * rho * sq * s.Mesh.Volume(id)
	})
	cells := ReduceSum(s.Mesh, s.NumParts, func(id int) float64 {
		if IsInterface(tracer[id]) {
			return 1
		}
		return 0
	})
	peakK := ReduceMax(s.Mesh, s.NumParts, func(id int) float64 {
		return math.Abs(curv[id])
	})

	s.Metrics.LogScalar(n, t, "tracer_mass", mass)
	s.Metrics.LogScalar(n, t, "kinetic_energy", ke)
	s.Metrics.LogScalar(n, t, "interface_cells", cells)
	s.Metrics.LogScalar(n, t, "max_curvature", peakK)
}
