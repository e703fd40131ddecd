package trace

// Summary aggregates statistics from a RunTrace.
type Summary struct {
	AdaptPasses    int
	TotalRefined   int
	TotalCoarsened int
	TotalSkips     int
	PeakLeaves     int

	BalancePasses  int
	BalanceSkipped int
	TotalMoved     int
	TotalRetries   int
	WorstImbalance float64
}

// Summarize computes aggregate statistics from a RunTrace. Safe for nil
// or empty traces (returns zero-value fields).
func Summarize(rt *RunTrace) *Summary {
	s := &Summary{}
	if rt == nil {
		return s
	}
	for _, a := range rt.Adapts {
		s.AdaptPasses++
		s.TotalRefined += a.Refined
		s.TotalCoarsened += a.Coarsened
		s.TotalSkips += a.BoundSkips
		if a.Leaves > s.PeakLeaves {
			s.PeakLeaves = a.Leaves
		}
	}
	for _, b := range rt.Balances {
		s.BalancePasses++
		if b.Skipped {
			s.BalanceSkipped++
		}
		s.TotalMoved += b.Moved
		s.TotalRetries += b.Retries
		if b.Before > s.WorstImbalance {
			s.WorstImbalance = b.Before
		}
	}
	return s
}
