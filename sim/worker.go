package sim

import (
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Domain decomposition: one worker per partition over disjoint leaf
// subsets. Workers read neighbor data only through field snapshots taken
// before the sweep - the halo refresh - and the errgroup Wait is the
// barrier: no worker proceeds past it until all complete the step.

// PartitionLeaves groups active leaves by owning partition, each group in
// Morton order.
func PartitionLeaves(m *Mesh, numParts int) [][]int {
	byPart := make([][]int, numParts)
	m.EachLeaf(func(id int) bool {
		p := m.Cell(id).Part
		if p < 0 || p >= numParts {
			p = 0
		}
		byPart[p] = append(byPart[p], id)
		return true
	})
	return byPart
}

// RunPartitioned executes fn concurrently, once per partition over its
// owned leaves, and blocks until every worker finishes. Workers must
// mutate only cells they own; cross-partition reads go through snapshots
// taken before this call.
func RunPartitioned(m *Mesh, numParts int, fn func(part int, leaves []int) error) error {
	var g errgroup.Group
	for part, leaves := range PartitionLeaves(m, numParts) {
		part, leaves := part, leaves
		g.Go(func() error {
			return fn(part, leaves)
		})
	}
	return g.Wait()
}

// FiniteCheck scans the named fields for non-finite values in parallel
// and returns ErrDiverged naming the first hit in the lowest offending
// partition. Fields are scanned in argument order, cells in Morton order
// within each field, so an earlier field wins over an earlier cell.
func FiniteCheck(m *Mesh, fs *FieldStore, numParts int, fields ...string) error {
	type hit struct {
		field string
		cell  int
	}
	hits := make([]*hit, numParts)
	_ = RunPartitioned(m, numParts, func(part int, leaves []int) error {
		for _, name := range fields {
			data := fs.Data(name)
			for _, id := range leaves {
				if math.IsNaN(data[id]) || math.IsInf(data[id], 0) {
					if hits[part] == nil {
						hits[part] = &hit{field: name, cell: id}
					}
					return nil
				}
			}
		}
		return nil
	})
	for _, h := range hits {
		if h != nil {
			return errBadFieldValue(h.field, h.cell)
		}
	}
	return nil
}

func errBadFieldValue(field string, cell int) error {
	return errWrapf(ErrDiverged, "field %q cell %d", field, cell)
}

// ReduceSum computes a spatial sum of per-leaf contributions with an
// all-reduce across partitions: each worker sums its own leaves, the
// partials are combined after the barrier.
func ReduceSum(m *Mesh, numParts int, contrib func(id int) float64) float64 {
	partials := make([]float64, numParts)
	_ = RunPartitioned(m, numParts, func(part int, leaves []int) error {
		sum := 0.0
		for _, id := range leaves {
			sum += contrib(id)
		}
		partials[part] = sum
		return nil
	})
	return floats.Sum(partials)
}

// ReduceMax computes a spatial maximum with the same all-reduce shape.
func ReduceMax(m *Mesh, numParts int, contrib func(id int) float64) float64 {
	partials := make([]float64, numParts)
	for i := range partials {
		partials[i] = math.Inf(-1)
	}
	_ = RunPartitioned(m, numParts, func(part int, leaves []int) error {
		peak := math.Inf(-1)
		for _, id := range leaves {
			peak = math.Max(peak, contrib(id))
		}
		partials[part] = peak
		return nil
	})
	return floats.Max(partials)
}
