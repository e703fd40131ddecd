package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wqabc2008/breakup/sim/trace"
)

// Scenario is the hierarchical run description consumed once at startup.
// Decoded with strict field checking: unknown keys are configuration
// errors, caught before any simulation step runs.
type Scenario struct {
	Name      string            `yaml:"name"`
	Dimension int               `yaml:"dimension"`
	Extent    float64           `yaml:"extent"`
	Bounds    map[string]string `yaml:"boundaries"`

	Parameters ScenarioParams `yaml:"parameters"`

	Partitions  int           `yaml:"partitions"`
	FilterWidth int           `yaml:"filter_width"`
	Balance     BalanceConfig `yaml:"balance"`
	Solver      SolverConfig  `yaml:"solver"`
	TraceLevel  string        `yaml:"trace_level"`
	OutputDir   string        `yaml:"output_dir"`

	Events []EventConfig `yaml:"events"`
}

// ScenarioParams maps the global scalar set.
type ScenarioParams struct {
	DensityRatio   float64 `yaml:"density_ratio"`
	ViscosityRatio float64 `yaml:"viscosity_ratio"`
	Reynolds       float64 `yaml:"reynolds"`
	Weber          float64 `yaml:"weber"`
	MinLevel       int     `yaml:"minlevel"`
	MaxLevel       int     `yaml:"maxlevel"`
	EndTime        float64 `yaml:"end_time"`
	Dt             float64 `yaml:"dt"`
	StartTime      float64 `yaml:"start_time"`
}

// BalanceConfig selects and tunes the load balancer.
type BalanceConfig struct {
	Kind      string  `yaml:"kind"`
	Threshold float64 `yaml:"threshold"`
}

// SolverConfig tunes the bundled projection primitive.
type SolverConfig struct {
	Sweeps int `yaml:"sweeps"`
}

// ExprConfig names a registered expression with its arguments.
type ExprConfig struct {
	Name string             `yaml:"name"`
	Args map[string]float64 `yaml:"args"`
}

// CriterionConfig configures one adaptivity criterion.
type CriterionConfig struct {
	Kind        string      `yaml:"kind"`
	Field       string      `yaml:"field"`
	CMax        float64     `yaml:"cmax"`
	CoarsenFrac float64     `yaml:"coarsen_frac"`
	CFactor     int         `yaml:"cfactor"`
	IStart      int         `yaml:"istart"`
	IStep       int         `yaml:"istep"`
	Expr        *ExprConfig `yaml:"expr"`
}

// EventConfig describes one event's schedule and action. Composite
// events nest further EventConfigs under children.
type EventConfig struct {
	Name   string  `yaml:"name"`
	Action string  `yaml:"action"`
	IStart int     `yaml:"istart"`
	IStep  int     `yaml:"istep"`
	IEnd   *int    `yaml:"iend"`
	Start  float64 `yaml:"start"`
	End    float64 `yaml:"end"`

	Field     string           `yaml:"field"`
	Expr      *ExprConfig      `yaml:"expr"`
	Vector    *ExprConfig      `yaml:"vector"`
	Criterion *CriterionConfig `yaml:"criterion"`
	Snapshot  bool             `yaml:"snapshot"`
	Stats     bool             `yaml:"stats"`
	Children  []EventConfig    `yaml:"children"`
}

// LoadScenario reads and strictly decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, errWrap(ErrBadConfig, err)
	}
	return &sc, nil
}

// faceNames maps scenario face keys to Boundaries indices.
var faceNames = map[string]int{
	"left": 0, "right": 1,
	"bottom": 2, "top": 3,
	"front": 4, "back": 5,
}

var boundaryKinds = map[string]BoundaryKind{
	"outflow":  BoundaryOutflow,
	"wall":     BoundaryWall,
	"periodic": BoundaryPeriodic,
}

// boundaries resolves the face tag map, defaulting every face to outflow.
func (sc *Scenario) boundaries() (Boundaries, error) {
	var b Boundaries
	for face, kind := range sc.Bounds {
		idx, ok := faceNames[face]
		if !ok {
			return b, errBadConfigf("unknown boundary face %q", face)
		}
		k, ok := boundaryKinds[kind]
		if !ok {
			return b, errBadConfigf("unknown boundary kind %q on face %q", kind, face)
		}
		b[idx] = k
	}
	return b, nil
}

// GlobalParams resolves the immutable parameter struct.
func (sc *Scenario) GlobalParams() (*GlobalParams, error) {
	p := &GlobalParams{
		Dim:            sc.Dimension,
		DensityRatio:   sc.Parameters.DensityRatio,
		ViscosityRatio: sc.Parameters.ViscosityRatio,
		Reynolds:       sc.Parameters.Reynolds,
		Weber:          sc.Parameters.Weber,
		MinLevel:       sc.Parameters.MinLevel,
		MaxLevel:       sc.Parameters.MaxLevel,
		EndTime:        sc.Parameters.EndTime,
		Dt:             sc.Parameters.Dt,
		StartTime:      sc.Parameters.StartTime,
		Extent:         sc.Extent,
	}
	if p.Dim == 0 {
		p.Dim = 2
	}
	if p.Extent == 0 {
		p.Extent = 1
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// BuildOptions carries the runtime knobs not part of the scenario file.
type BuildOptions struct {
	Seed    RunKey
	Metrics *Metrics
}

// Build assembles a ready-to-run Simulator from the scenario: parameters,
// mesh, fields, forcing, balancer, and the resolved event list.
func (sc *Scenario) Build(opts BuildOptions) (*Simulator, error) {
	params, err := sc.GlobalParams()
	if err != nil {
		return nil, err
	}
	bcs, err := sc.boundaries()
	if err != nil {
		return nil, err
	}
	if !trace.IsValidLevel(sc.TraceLevel) {
		return nil, errBadConfigf("unknown trace level %q", sc.TraceLevel)
	}

	fields := NewFieldStore()
	if err := RegisterStandardFields(fields, params.Dim); err != nil {
		return nil, err
	}
	mesh, err := NewMesh(params, bcs, fields)
	if err != nil {
		return nil, err
	}

	parts := sc.Partitions
	if parts <= 0 {
		parts = 1
	}
	threshold := sc.Balance.Threshold
	if threshold <= 0 {
		threshold = 0.1
	}
	balancer, err := NewBalancer(sc.Balance.Kind, parts, threshold)
	if err != nil {
		return nil, err
	}

	rng := NewPartitionedRNG(opts.Seed)
	momentum := NewMomentum(params, NewJacobiSolver(sc.Solver.Sweeps), sc.FilterWidth > 0)

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil, nil)
	}
	s := NewSimulator(params, mesh, fields, momentum, balancer, rng,
		trace.New(trace.Level(sc.TraceLevel)), metrics, parts, sc.FilterWidth)

	for i := range sc.Events {
		e, err := sc.buildEvent(&sc.Events[i], s, rng)
		if err != nil {
			return nil, err
		}
		s.Register(e)
	}
	return s, nil
}

// buildEvent resolves one event configuration, recursively for
// composites. Expression names are resolved here, once, at load time.
func (sc *Scenario) buildEvent(ec *EventConfig, s *Simulator, rng *PartitionedRNG) (*Event, error) {
	action, err := sc.buildAction(ec, s, rng)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", ec.Name, err)
	}
	iend := -1
	if ec.IEnd != nil {
		iend = *ec.IEnd
	}
	return &Event{
		Name:   ec.Name,
		IStart: ec.IStart,
		IStep:  ec.IStep,
		IEnd:   iend,
		Start:  ec.Start,
		End:    ec.End,
		Action: action,
	}, nil
}

func (sc *Scenario) buildAction(ec *EventConfig, s *Simulator, rng *PartitionedRNG) (EventAction, error) {
	switch ec.Action {
	case "init":
		if ec.Vector != nil {
			v, err := BuildVectorExpr(ec.Vector.Name, ec.Vector.Args, rng.ForSubsystem(SubsystemInit))
			if err != nil {
				return nil, err
			}
			return &InitAction{Vector: v}, nil
		}
		if ec.Expr == nil {
			return nil, errBadConfigf("init event needs expr or vector")
		}
		if !s.Fields.Has(ec.Field) {
			return nil, errBadConfigf("init targets unknown field %q", ec.Field)
		}
		f, err := BuildScalarExpr(ec.Expr.Name, ec.Expr.Args, rng.ForSubsystem(SubsystemInit))
		if err != nil {
			return nil, err
		}
		return &InitAction{Field: ec.Field, Scalar: f}, nil

	case "source":
		if ec.Expr == nil {
			return nil, errBadConfigf("source event needs expr")
		}
		if !s.Fields.Has(ec.Field) {
			return nil, errBadConfigf("source targets unknown field %q", ec.Field)
		}
		f, err := BuildScalarExpr(ec.Expr.Name, ec.Expr.Args, rng.ForSubsystem(SubsystemForcing))
		if err != nil {
			return nil, err
		}
		return &SourceAction{Field: ec.Field, Expr: f}, nil

	case "forcing":
		// Persistent body force registered with the momentum module; the
		// expression is evaluated per cell per step from then on.
		if ec.Vector == nil {
			return nil, errBadConfigf("forcing event needs vector")
		}
		v, err := BuildVectorExpr(ec.Vector.Name, ec.Vector.Args, rng.ForSubsystem(SubsystemForcing))
		if err != nil {
			return nil, err
		}
		s.Momentum.AddBodyForce(v)
		// Registration is the whole effect; the event itself is a no-op
		// fired never by giving it an empty composite.
		return &CompositeAction{}, nil

	case "adapt_function", "adapt_error":
		if ec.Criterion == nil {
			return nil, errBadConfigf("adapt event needs criterion")
		}
		crit := Criterion{
			Kind:        ec.Criterion.Kind,
			Field:       ec.Criterion.Field,
			CMax:        ec.Criterion.CMax,
			CoarsenFrac: ec.Criterion.CoarsenFrac,
			CFactor:     ec.Criterion.CFactor,
			IStart:      ec.Criterion.IStart,
			IStep:       ec.Criterion.IStep,
		}
		if ec.Action == "adapt_error" && crit.Kind == "" {
			crit.Kind = CritError
		}
		if crit.Kind == CritError && crit.Field != "" && !s.Fields.Has(crit.Field) {
			return nil, errBadConfigf("criterion references unknown field %q", crit.Field)
		}
		if ec.Criterion.Expr != nil {
			f, err := BuildScalarExpr(ec.Criterion.Expr.Name, ec.Criterion.Expr.Args, nil)
			if err != nil {
				return nil, err
			}
			crit.Expr = f
			crit.Kind = CritExpr
		}
		engine, err := NewAdaptEngine(s.Params, crit)
		if err != nil {
			return nil, err
		}
		return &AdaptAction{Engine: engine, Name: ec.Action}, nil

	case "balance":
		return &BalanceAction{}, nil

	case "output":
		dir := sc.OutputDir
		if dir == "" {
			dir = "."
		}
		return &OutputAction{Snapshot: ec.Snapshot, Stats: ec.Stats, Dir: dir}, nil

	case "composite":
		comp := &CompositeAction{}
		for i := range ec.Children {
			child, err := sc.buildAction(&ec.Children[i], s, rng)
			if err != nil {
				return nil, fmt.Errorf("child %q: %w", ec.Children[i].Name, err)
			}
			comp.Children = append(comp.Children, child)
		}
		return comp, nil

	default:
		return nil, errBadConfigf("unknown event action %q", ec.Action)
	}
}
