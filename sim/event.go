package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/wqabc2008/breakup/sim/trace"
)

// Event binds a trigger window to an action. Events are registered at
// setup, evaluated once per scheduler tick for the remainder of the run,
// and never mutated after registration.
//
// The step window fires at IStart, then every IStep ticks, up to and
// including IEnd (IEnd < 0 means unbounded). The optional time window
// [Start, End] further gates firing.
type Event struct {
	Name   string
	IStart int
	IStep  int
	IEnd   int
	Start  float64
	End    float64 // 0 means unbounded
	Action EventAction
}

// Due reports whether the event fires at step n, time t.
func (e *Event) Due(n int, t float64) bool {
	step := e.IStep
	if step <= 0 {
		step = 1
	}
	if n < e.IStart || (e.IEnd >= 0 && n > e.IEnd) {
		return false
	}
	if (n-e.IStart)%step != 0 {
		return false
	}
	if t < e.Start-timeTol {
		return false
	}
	if e.End > 0 && t > e.End+timeTol {
		return false
	}
	return true
}

// timeTol absorbs float drift when comparing simulation times.
const timeTol = 1e-12

// EventAction is one of the tagged action variants fired by a due event.
type EventAction interface {
	Kind() string
	Fire(s *Simulator, n int, t float64) error
}

// InitAction sets fields from resolved expressions. Fired once at the
// start of a run (or at a restart offset) by convention, though nothing
// prevents scheduling re-initialization mid-run.
type InitAction struct {
	Field  string
	Scalar ScalarExpr // exactly one of Scalar/Vector is set
	Vector VectorExpr // writes the velocity components
}

// Kind implements EventAction.
func (a *InitAction) Kind() string { return "init" }

// Fire implements EventAction.
func (a *InitAction) Fire(s *Simulator, n int, t float64) error {
	return s.forEachLeafCtx(t, func(id int, ctx *EvalContext) error {
		if a.Vector != nil {
			v := a.Vector(ctx)
			for axis := 0; axis < s.Params.Dim; axis++ {
				s.Fields.Data(VelocityField(axis))[id] = v[axis]
			}
			return nil
		}
		s.Fields.Data(a.Field)[id] = a.Scalar(ctx)
		return nil
	})
}

// SourceAction adds a dt-scaled expression to a scalar field each firing.
type SourceAction struct {
	Field string
	Expr  ScalarExpr
}

// Kind implements EventAction.
func (a *SourceAction) Kind() string { return "source" }

// Fire implements EventAction.
func (a *SourceAction) Fire(s *Simulator, n int, t float64) error {
	data := s.Fields.Data(a.Field)
	return s.forEachLeafCtx(t, func(id int, ctx *EvalContext) error {
		data[id] += s.Params.Dt * a.Expr(ctx)
		return nil
	})
}

// AdaptAction runs one adaptivity engine. The engine's own istart/istep
// gating applies on top of the event window.
type AdaptAction struct {
	Engine *AdaptEngine
	Name   string // "adapt_function" or "adapt_error"
}

// Kind implements EventAction.
func (a *AdaptAction) Kind() string { return a.Name }

// Fire implements EventAction.
func (a *AdaptAction) Fire(s *Simulator, n int, t float64) error {
	if !a.Engine.Due(n) {
		return nil
	}
	report := a.Engine.Apply(s.Mesh, s.Fields, t)
	s.Metrics.BoundSkips += report.BoundSkips
	s.Trace.RecordAdapt(trace.AdaptRecord{
		Step: n, Time: t,
		Criterion: a.Engine.crit.Kind,
		Refined:   report.Refined, Coarsened: report.Coarsened,
		BoundSkips: report.BoundSkips,
		Leaves:     s.Mesh.NumLeaves(),
	})
	return nil
}

// BalanceAction runs the load balancer. Migration failure after bounded
// retries is fatal: consistent ownership cannot be guaranteed.
type BalanceAction struct{}

// Kind implements EventAction.
func (a *BalanceAction) Kind() string { return "balance" }

// Fire implements EventAction.
func (a *BalanceAction) Fire(s *Simulator, n int, t float64) error {
	report, err := s.Balancer.Balance(s.Mesh)
	if err != nil {
		return err
	}
	s.Trace.RecordBalance(trace.BalanceRecord{
		Step: n, Time: t,
		Skipped: report.Skipped, Moved: report.Moved,
		Retries: report.Retries, Before: report.Before, After: report.After,
	})
	if !report.Skipped {
		logrus.Infof("[step %06d] balanced: moved=%d imbalance %.3f -> %.3f",
			n, report.Moved, report.Before, report.After)
	}
	return nil
}

// OutputAction writes a full-state snapshot and/or the scalar statistics
// line for the current step.
type OutputAction struct {
	Snapshot bool
	Stats    bool
	Dir      string
}

// Kind implements EventAction.
func (a *OutputAction) Kind() string { return "output" }

// Fire implements EventAction.
func (a *OutputAction) Fire(s *Simulator, n int, t float64) error {
	if a.Snapshot {
		path, err := WriteSnapshotFile(a.Dir, s.Mesh, s.Fields, t)
		if err != nil {
			return err
		}
		s.Metrics.SnapshotsTaken++
		logrus.Infof("[step %06d] wrote %s", n, path)
	}
	if a.Stats {
		s.writeScalarStats(n, t)
	}
	return nil
}

// CompositeAction fires an ordered list of sub-actions atomically within
// the tick, in registration order. Ordering is a correctness requirement:
// later children may read fields mutated by earlier ones.
type CompositeAction struct {
	Children []EventAction
}

// Kind implements EventAction.
func (a *CompositeAction) Kind() string { return "composite" }

// Fire implements EventAction.
func (a *CompositeAction) Fire(s *Simulator, n int, t float64) error {
	for _, child := range a.Children {
		if err := child.Fire(s, n, t); err != nil {
			return err
		}
	}
	return nil
}
