// Package trace provides decision-trace recording for adaptivity and
// load-balancing analysis. It stores pure data types and has no
// dependency on the sim package.
package trace

// Level controls the verbosity of decision tracing.
type Level string

const (
	// LevelNone disables tracing (zero overhead).
	LevelNone Level = "none"
	// LevelDecisions captures every adaptivity and balancing decision.
	LevelDecisions Level = "decisions"
)

var validLevels = map[Level]bool{
	LevelNone:      true,
	LevelDecisions: true,
	"":             true, // empty defaults to none
}

// IsValidLevel returns true if the string is a recognized trace level.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// AdaptRecord captures the outcome of one adaptivity pass.
type AdaptRecord struct {
	Step       int
	Time       float64
	Criterion  string
	Refined    int
	Coarsened  int
	BoundSkips int
	Leaves     int // leaf count after the pass
}

// BalanceRecord captures one load-balancing invocation.
type BalanceRecord struct {
	Step    int
	Time    float64
	Skipped bool
	Moved   int
	Retries int
	Before  float64
	After   float64
}

// RunTrace collects decision records during a run.
type RunTrace struct {
	Level    Level
	Adapts   []AdaptRecord
	Balances []BalanceRecord
}

// New creates a RunTrace ready for recording.
func New(level Level) *RunTrace {
	return &RunTrace{
		Level:    level,
		Adapts:   make([]AdaptRecord, 0),
		Balances: make([]BalanceRecord, 0),
	}
}

// RecordAdapt appends an adaptivity record when tracing is enabled.
func (rt *RunTrace) RecordAdapt(r AdaptRecord) {
	if rt == nil || rt.Level != LevelDecisions {
		return
	}
	rt.Adapts = append(rt.Adapts, r)
}

// RecordBalance appends a balancing record when tracing is enabled.
func (rt *RunTrace) RecordBalance(r BalanceRecord) {
	if rt == nil || rt.Level != LevelDecisions {
		return
	}
	rt.Balances = append(rt.Balances, r)
}
