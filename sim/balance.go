package sim

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Balancer measures partition imbalance and redistributes leaf ownership
// across workers when it exceeds a threshold.
type Balancer interface {
	// Imbalance returns (max-min)/max over partition leaf counts.
	Imbalance(m *Mesh) float64
	// Balance repartitions when the imbalance exceeds the threshold; an
	// already-balanced mesh is an idempotent no-op.
	Balance(m *Mesh) (BalanceReport, error)
}

// BalanceReport describes one balancing invocation.
type BalanceReport struct {
	Skipped bool // below threshold, nothing moved
	Moved   int  // leaves whose owner changed
	Retries int
	Before  float64
	After   float64
}

// NewBalancer creates a balancer of the named kind.
func NewBalancer(kind string, numParts int, threshold float64) (Balancer, error) {
	if numParts <= 0 {
		return nil, errBadConfigf("balancer needs a positive partition count, got %d", numParts)
	}
	switch kind {
	case "sfc", "":
		return &SFCBalancer{
			NumParts:   numParts,
			Threshold:  threshold,
			MaxRetries: 3,
			Backoff:    10 * time.Millisecond,
		}, nil
	default:
		return nil, errBadConfigf("unknown balancer kind %q", kind)
	}
}

// AvailableBalancers returns the supported balancer kinds.
func AvailableBalancers() []string {
	return []string{"sfc"}
}

// SFCBalancer re-slices the Morton-ordered leaf sequence into contiguous
// equal-count ranges, preserving spatial locality. Migration is staged
// then committed atomically: other components never observe a partially
// moved partition.
type SFCBalancer struct {
	NumParts   int
	Threshold  float64
	MaxRetries int
	Backoff    time.Duration

	// commitHook intercepts the staged move list before it is applied;
	// a non-nil error triggers rollback and retry. Tests inject failures
	// here; in production it models the migration transport.
	commitHook func(moves []partMove) error
}

type partMove struct {
	cell int
	from int
	to   int
}

// Imbalance implements Balancer.
func (b *SFCBalancer) Imbalance(m *Mesh) float64 {
	counts := b.counts(m)
	lo, hi := counts[0], counts[0]
	for _, c := range counts[1:] {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	if hi == 0 {
		return 0
	}
	return float64(hi-lo) / float64(hi)
}

func (b *SFCBalancer) counts(m *Mesh) []int {
	counts := make([]int, b.NumParts)
	m.EachLeaf(func(id int) bool {
		p := m.Cell(id).Part
		if p >= 0 && p < b.NumParts {
			counts[p]++
		}
		return true
	})
	return counts
}

// Balance implements Balancer.
func (b *SFCBalancer) Balance(m *Mesh) (BalanceReport, error) {
	report := BalanceReport{Before: b.Imbalance(m)}
	if report.Before <= b.Threshold {
		report.Skipped = true
		report.After = report.Before
		return report, nil
	}

	// Target assignment: equal contiguous slices of the Morton order.
	leaves := m.Leaves()
	moves := make([]partMove, 0)
	for i, id := range leaves {
		target := i * b.NumParts / len(leaves)
		if from := m.Cell(id).Part; from != target {
			moves = append(moves, partMove{cell: id, from: from, to: target})
		}
	}

	backoff := b.Backoff
	for attempt := 0; ; attempt++ {
		err := b.commit(moves)
		if err == nil {
			break
		}
		if attempt >= b.MaxRetries {
			return report, errMigration(err)
		}
		report.Retries++
		logrus.Warnf("balance: migration attempt %d failed, retrying in %s: %v",
			attempt+1, backoff, err)
		time.Sleep(backoff)
		backoff *= 2
	}

	// Commit succeeded: apply ownership in one pass. Nothing observed the
	// staged state.
	for _, mv := range moves {
		m.SetPart(mv.cell, mv.to)
	}
	report.Moved = len(moves)
	report.After = b.Imbalance(m)
	return report, nil
}

func (b *SFCBalancer) commit(moves []partMove) error {
	if b.commitHook == nil {
		return nil
	}
	return b.commitHook(moves)
}

func errMigration(cause error) error {
	return errWrap(ErrMigrationFailed, cause)
}
