package sim

import (
	"errors"
	"fmt"
)

// Sentinel errors for the simulation kernel. Recoverable conditions
// (mesh bound violations, clamped tracer values) are absorbed by the
// owning component and surfaced as warning counters; everything else
// unwinds to the scheduler loop, which halts the run.
var (
	// ErrRefinementBound is returned when a refine request targets a cell
	// already at maxlevel. Non-fatal: the request is skipped.
	ErrRefinementBound = errors.New("refine would exceed maxlevel")

	// ErrCoarsenBound is returned when a coarsen request targets a family
	// at or below minlevel, or whose children are not all leaves.
	ErrCoarsenBound = errors.New("coarsen below minlevel or non-leaf children")

	// ErrDiverged indicates a non-finite value was found in a field.
	// Fatal: the run aborts, reporting the last valid step.
	ErrDiverged = errors.New("non-finite value in field")

	// ErrMigrationFailed indicates a cell migration could not be completed
	// after bounded retries. Fatal: consistent ownership cannot be guaranteed.
	ErrMigrationFailed = errors.New("partition migration failed")

	// ErrBadConfig indicates a malformed scenario configuration.
	// Fatal at startup, before any simulation step runs.
	ErrBadConfig = errors.New("invalid scenario configuration")
)

// errBadConfigf wraps ErrBadConfig with formatted detail so callers can
// still test with errors.Is.
func errBadConfigf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrBadConfig}, args...)...)
}

// errWrap chains a sentinel with its cause.
func errWrap(sentinel, cause error) error {
	return fmt.Errorf("%w: %v", sentinel, cause)
}

// errWrapf chains a sentinel with formatted detail.
func errWrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}

