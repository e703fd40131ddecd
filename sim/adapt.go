package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// Criterion kinds understood by the adaptivity engine.
const (
	// CritInterface refines wherever the tracer is interfacial.
	CritInterface = "interface"
	// CritCurvature refines on the neighborhood curvature peak scaled by
	// cell size, so under-resolved high-curvature pinch regions refine
	// first.
	CritCurvature = "curvature"
	// CritError refines on an undivided-difference error estimator for a
	// named field.
	CritError = "error"
	// CritExpr refines on a registered scalar expression.
	CritExpr = "expr"
)

// Criterion is one adaptivity rule. CMax is the refinement threshold;
// cells whose value falls below CMax*CoarsenFrac may coarsen. CFactor
// bounds how many levels may change in one pass, guarding against
// runaway refinement within a single tick. IStart and IStep gate the
// criterion to exclude transient initialization noise.
type Criterion struct {
	Kind        string
	Field       string  // CritError: estimated field
	CMax        float64 // refinement threshold
	CoarsenFrac float64 // coarsen below CMax*CoarsenFrac (default 0.25)
	CFactor     int     // max level changes per pass (default 1)
	IStart      int     // first eligible step
	IStep       int     // repeat interval in steps (default 1)

	Expr ScalarExpr // CritExpr: resolved at configuration load
}

// AdaptReport aggregates the outcome of one adaptivity pass.
type AdaptReport struct {
	Refined     int
	Coarsened   int
	BoundSkips  int // refine/coarsen requests skipped at level bounds
	PassesTaken int
}

// AdaptEngine evaluates one criterion against the live fields and drives
// mesh refine/coarsen requests. Mesh-bound violations are skipped and
// counted, never fatal.
type AdaptEngine struct {
	params *GlobalParams
	crit   Criterion
}

// NewAdaptEngine validates and wraps a criterion.
func NewAdaptEngine(params *GlobalParams, crit Criterion) (*AdaptEngine, error) {
	switch crit.Kind {
	case CritInterface, CritCurvature:
	case CritError:
		if crit.Field == "" {
			return nil, errBadConfigf("error criterion needs a field name")
		}
	case CritExpr:
		if crit.Expr == nil {
			return nil, errBadConfigf("expr criterion has no resolved expression")
		}
	default:
		return nil, errBadConfigf("unknown criterion kind %q", crit.Kind)
	}
	if crit.CMax <= 0 {
		return nil, errBadConfigf("criterion cmax must be positive: %g", crit.CMax)
	}
	if crit.CoarsenFrac <= 0 {
		crit.CoarsenFrac = 0.25
	}
	if crit.CFactor <= 0 {
		crit.CFactor = 1
	}
	if crit.IStep <= 0 {
		crit.IStep = 1
	}
	return &AdaptEngine{params: params, crit: crit}, nil
}

// Due reports whether the criterion window admits step n.
func (a *AdaptEngine) Due(n int) bool {
	return n >= a.crit.IStart && (n-a.crit.IStart)%a.crit.IStep == 0
}

// Apply runs up to CFactor refine/coarsen passes. Each pass changes a
// cell by at most one level; passes stop early when the mesh settles.
func (a *AdaptEngine) Apply(m *Mesh, fs *FieldStore, t float64) AdaptReport {
	var report AdaptReport
	for pass := 0; pass < a.crit.CFactor; pass++ {
		refined, coarsened, skipped := a.pass(m, fs, t)
		report.Refined += refined
		report.Coarsened += coarsened
		report.BoundSkips += skipped
		report.PassesTaken++
		if refined == 0 && coarsened == 0 {
			break
		}
	}
	if report.BoundSkips > 0 {
		logrus.Warnf("adaptivity: %d requests skipped at level bounds", report.BoundSkips)
	}
	return report
}

func (a *AdaptEngine) pass(m *Mesh, fs *FieldStore, t float64) (refined, coarsened, skipped int) {
	values := a.evaluate(m, fs, t)

	// Refine first: collect ids, then mutate, so traversal never walks a
	// mesh it is mutating.
	var toRefine []int
	coarsenable := map[int]bool{} // parent id -> all children below coarsen threshold
	m.EachLeaf(func(id int) bool {
		v := values[id]
		c := m.Cell(id)
		if v > a.crit.CMax {
			toRefine = append(toRefine, id)
			return true
		}
		if parent := c.Parent; parent >= 0 && c.Level > a.params.MinLevel && v < a.crit.CMax*a.crit.CoarsenFrac {
			if _, seen := coarsenable[parent]; !seen {
				coarsenable[parent] = true
			}
		} else if c.Parent >= 0 {
			coarsenable[c.Parent] = false
		}
		return true
	})

	for _, id := range toRefine {
		// A refine in this pass may have split an ancestor ordering; the
		// id itself stays valid because refinement never frees cells.
		if parent := m.Cell(id).Parent; parent >= 0 {
			coarsenable[parent] = false
		}
		switch err := m.Refine(id); err {
		case nil:
			refined++
		case ErrRefinementBound:
			skipped++
		default:
			skipped++
		}
	}

	// Coarsen parents whose whole family sits well below threshold.
	// Morton-ordered for determinism. Intactness is snapshot before any
	// merge runs, so a parent with a non-leaf child stays ineligible even
	// if that child coarsens later in the same pass; nested families give
	// up at most one level per pass.
	var parents []int
	m.EachLeaf(func(id int) bool {
		p := m.Cell(id).Parent
		if p >= 0 && coarsenable[p] {
			coarsenable[p] = false // visit once
			if a.familyIntact(m, p) {
				parents = append(parents, p)
			}
		}
		return true
	})
	for _, p := range parents {
		switch err := m.Coarsen(p); err {
		case nil:
			coarsened++
		case ErrCoarsenBound:
			skipped++
		default:
			skipped++
		}
	}
	return refined, coarsened, skipped
}

// familyIntact verifies every child of the parent is still a live leaf.
func (a *AdaptEngine) familyIntact(m *Mesh, parent int) bool {
	c := m.Cell(parent)
	if c.Leaf {
		return false
	}
	for k := 0; k < a.params.Children(); k++ {
		child := c.Children[k]
		if child < 0 || !m.Cell(child).Leaf {
			return false
		}
	}
	return true
}

// evaluate computes the criterion value for every leaf.
func (a *AdaptEngine) evaluate(m *Mesh, fs *FieldStore, t float64) map[int]float64 {
	values := make(map[int]float64, m.NumLeaves())
	switch a.crit.Kind {
	case CritInterface:
		tracer := fs.Data(FieldTracer)
		m.EachLeaf(func(id int) bool {
			if IsInterface(tracer[id]) {
				values[id] = 1
			}
			return true
		})
	case CritCurvature:
		kmax := Curvature(m, fs, FieldTracer)
		m.EachLeaf(func(id int) bool {
			// Dimensionless resolution measure: cells where the radius of
			// curvature is comparable to the cell size score high.
			values[id] = kmax[id] * m.Size(id, 0)
			return true
		})
	case CritError:
		f := fs.Snapshot(a.crit.Field)
		m.EachLeaf(func(id int) bool {
			est := 0.0
			for axis := 0; axis < a.params.Dim; axis++ {
				plus := m.NeighborValue(f, id, axis, +1, false)
				minus := m.NeighborValue(f, id, axis, -1, false)
				est = math.Max(est, math.Abs(plus-minus)/2)
			}
			values[id] = est
			return true
		})
	case CritExpr:
		m.EachLeaf(func(id int) bool {
			center := m.Center(id)
			values[id] = a.crit.Expr(&EvalContext{
				X: center[0], Y: center[1], Z: center[2],
				Time: t, Cell: id, Fields: fs, Params: a.params,
			})
			return true
		})
	}
	return values
}
