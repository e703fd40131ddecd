package sim

// The mesh is a quadtree (2D) or octree (3D) stored as an arena of Cell
// records addressed by integer index. Parent and child links are indices,
// never pointers, so deleting a subtree just returns indices to a free
// list. Field arrays are sized to the arena and grown alongside it.

// BoundaryKind tags one face of the domain box.
type BoundaryKind int

const (
	// BoundaryOutflow is a zero-gradient open face.
	BoundaryOutflow BoundaryKind = iota
	// BoundaryWall is a reflective no-penetration face.
	BoundaryWall
	// BoundaryPeriodic wraps to the opposite face. Must be set on both
	// faces of an axis.
	BoundaryPeriodic
)

// Boundaries holds one BoundaryKind per domain face, ordered
// -x, +x, -y, +y, -z, +z.
type Boundaries [6]BoundaryKind

// Validate checks that periodic faces are paired per axis.
func (b Boundaries) Validate(dim int) error {
	for axis := 0; axis < dim; axis++ {
		lo, hi := b[2*axis], b[2*axis+1]
		if (lo == BoundaryPeriodic) != (hi == BoundaryPeriodic) {
			return errBadConfigf("periodic boundary on axis %d is not paired", axis)
		}
	}
	return nil
}

// Cell is one node of the mesh arena. A cell is either a leaf (active,
// holds data) or an internal node with exactly 2^dim children whose data
// is derived by restriction.
type Cell struct {
	Level    int
	Parent   int    // arena index of the parent, -1 for the root
	Children [8]int // arena indices; only the first 2^dim entries are used
	Leaf     bool
	Part     int // owning partition id
	Lo       [3]float64
	Hi       [3]float64

	alive bool
}

// Mesh owns cell topology. Refine/coarsen/traverse/neighbor queries all go
// through it; other components hold cell ids only.
type Mesh struct {
	params *GlobalParams
	bcs    Boundaries
	fields *FieldStore

	cells  []Cell
	free   []int
	root   int
	leaves int
}

// NewMesh builds a mesh holding a single root leaf covering the domain
// box, then uniformly refines it to params.MinLevel.
func NewMesh(params *GlobalParams, bcs Boundaries, fields *FieldStore) (*Mesh, error) {
	if err := bcs.Validate(params.Dim); err != nil {
		return nil, err
	}
	m := &Mesh{
		params: params,
		bcs:    bcs,
		fields: fields,
	}
	root := Cell{
		Level:  0,
		Parent: -1,
		Leaf:   true,
		alive:  true,
	}
	for i := range root.Children {
		root.Children[i] = -1
	}
	root.Lo = params.Origin
	for axis := 0; axis < params.Dim; axis++ {
		root.Hi[axis] = params.Origin[axis] + params.Extent
	}
	if params.Dim == 2 {
		// Degenerate z extent of 1 keeps volume arithmetic uniform.
		root.Lo[2] = 0
		root.Hi[2] = 1
	}
	m.root = m.alloc(root)
	m.leaves = 1

	for level := 0; level < params.MinLevel; level++ {
		for _, id := range m.Leaves() {
			if m.cells[id].Level == level {
				if err := m.Refine(id); err != nil {
					return nil, err
				}
			}
		}
	}
	return m, nil
}

func (m *Mesh) alloc(c Cell) int {
	if n := len(m.free); n > 0 {
		id := m.free[n-1]
		m.free = m.free[:n-1]
		m.cells[id] = c
		return id
	}
	m.cells = append(m.cells, c)
	if m.fields != nil {
		m.fields.grow(len(m.cells))
	}
	return len(m.cells) - 1
}

// Cell returns a read-only copy of the cell record.
func (m *Mesh) Cell(id int) Cell { return m.cells[id] }

// SetPart reassigns the owning partition of a cell. Only the load
// balancer calls this, and only inside a committed migration.
func (m *Mesh) SetPart(id, part int) { m.cells[id].Part = part }

// NumLeaves returns the current active leaf count.
func (m *Mesh) NumLeaves() int { return m.leaves }

// Root returns the root cell id.
func (m *Mesh) Root() int { return m.root }

// Size returns the edge length of a cell along the given axis.
func (m *Mesh) Size(id int, axis int) float64 {
	return m.cells[id].Hi[axis] - m.cells[id].Lo[axis]
}

// Center returns the cell center point.
func (m *Mesh) Center(id int) [3]float64 {
	c := &m.cells[id]
	return [3]float64{
		(c.Lo[0] + c.Hi[0]) / 2,
		(c.Lo[1] + c.Hi[1]) / 2,
		(c.Lo[2] + c.Hi[2]) / 2,
	}
}

// Volume returns the cell volume (area in 2D, where the z extent is 1).
func (m *Mesh) Volume(id int) float64 {
	c := &m.cells[id]
	v := 1.0
	for axis := 0; axis < 3; axis++ {
		v *= c.Hi[axis] - c.Lo[axis]
	}
	return v
}

// FaceArea returns the area of the cell face normal to axis.
func (m *Mesh) FaceArea(id int, axis int) float64 {
	v := 1.0
	for a := 0; a < 3; a++ {
		if a != axis {
			v *= m.cells[id].Hi[a] - m.cells[id].Lo[a]
		}
	}
	return v
}

// Refine splits a leaf into 2^dim children, prolongating field values so
// that volume-weighted sums are preserved exactly. Returns
// ErrRefinementBound when the cell is already at maxlevel.
func (m *Mesh) Refine(id int) error {
	c := &m.cells[id]
	if !c.Leaf {
		return errBadConfigf("refine target %d is not a leaf", id)
	}
	if c.Level >= m.params.MaxLevel {
		return ErrRefinementBound
	}

	nc := m.params.Children()
	level := c.Level + 1
	part := c.Part
	lo, hi := c.Lo, c.Hi
	mid := m.Center(id)

	children := make([]int, nc)
	for k := 0; k < nc; k++ {
		child := Cell{
			Level:  level,
			Parent: id,
			Leaf:   true,
			Part:   part,
			alive:  true,
		}
		for i := range child.Children {
			child.Children[i] = -1
		}
		child.Lo = lo
		child.Hi = hi
		for axis := 0; axis < m.params.Dim; axis++ {
			if k>>axis&1 == 0 {
				child.Hi[axis] = mid[axis]
			} else {
				child.Lo[axis] = mid[axis]
			}
		}
		// alloc may grow the arena; re-take the parent pointer after.
		children[k] = m.alloc(child)
	}

	c = &m.cells[id]
	c.Leaf = false
	for k := 0; k < nc; k++ {
		c.Children[k] = children[k]
	}
	m.leaves += nc - 1

	if m.fields != nil {
		m.fields.prolong(id, children)
	}
	return nil
}

// Coarsen merges the 2^dim children of an internal cell back into it,
// restricting field values by volume-weighted average. Returns
// ErrCoarsenBound when a child is internal or at/below minlevel.
func (m *Mesh) Coarsen(id int) error {
	c := &m.cells[id]
	if c.Leaf {
		return errBadConfigf("coarsen target %d has no children", id)
	}
	nc := m.params.Children()
	children := make([]int, nc)
	for k := 0; k < nc; k++ {
		child := c.Children[k]
		children[k] = child
		if !m.cells[child].Leaf {
			return ErrCoarsenBound
		}
		if m.cells[child].Level <= m.params.MinLevel {
			return ErrCoarsenBound
		}
	}

	if m.fields != nil {
		m.fields.restrict(id, children)
	}
	for k := 0; k < nc; k++ {
		m.cells[children[k]].alive = false
		m.free = append(m.free, children[k])
		c.Children[k] = -1
	}
	c.Leaf = true
	m.leaves -= nc - 1
	return nil
}

// EachLeaf visits active leaves in depth-first child order, which is
// Morton/Z-order over the domain: deterministic and reproducible across
// runs with identical inputs. The visit function returns false to stop.
func (m *Mesh) EachLeaf(visit func(id int) bool) {
	m.walk(m.root, visit)
}

func (m *Mesh) walk(id int, visit func(id int) bool) bool {
	c := &m.cells[id]
	if c.Leaf {
		return visit(id)
	}
	for k := 0; k < m.params.Children(); k++ {
		if !m.walk(c.Children[k], visit) {
			return false
		}
	}
	return true
}

// Leaves returns all active leaf ids in Morton order.
func (m *Mesh) Leaves() []int {
	out := make([]int, 0, m.leaves)
	m.EachLeaf(func(id int) bool {
		out = append(out, id)
		return true
	})
	return out
}

// LeavesWhere returns the Morton-ordered leaves satisfying the predicate.
func (m *Mesh) LeavesWhere(pred func(id int) bool) []int {
	out := []int{}
	m.EachLeaf(func(id int) bool {
		if pred(id) {
			out = append(out, id)
		}
		return true
	})
	return out
}

// eps returns a sub-cell probe offset, a quarter of the finest cell size.
func (m *Mesh) eps() float64 {
	return m.params.Extent / float64(int(1)<<uint(m.params.MaxLevel)) / 4
}

// wrap maps a point back into the domain along periodic axes. The second
// return is false when the point leaves the domain through a non-periodic
// face.
func (m *Mesh) wrap(p [3]float64) ([3]float64, bool) {
	root := &m.cells[m.root]
	for axis := 0; axis < m.params.Dim; axis++ {
		if p[axis] < root.Lo[axis] {
			if m.bcs[2*axis] != BoundaryPeriodic {
				return p, false
			}
			p[axis] += root.Hi[axis] - root.Lo[axis]
		} else if p[axis] >= root.Hi[axis] {
			if m.bcs[2*axis+1] != BoundaryPeriodic {
				return p, false
			}
			p[axis] -= root.Hi[axis] - root.Lo[axis]
		}
	}
	return p, true
}

// Locate returns the leaf containing the point, or -1 when the point is
// outside the domain through a non-periodic face.
func (m *Mesh) Locate(p [3]float64) int {
	p, ok := m.wrap(p)
	if !ok {
		return -1
	}
	id := m.root
	for !m.cells[id].Leaf {
		mid := m.Center(id)
		k := 0
		for axis := 0; axis < m.params.Dim; axis++ {
			if p[axis] >= mid[axis] {
				k |= 1 << axis
			}
		}
		id = m.cells[id].Children[k]
	}
	return id
}

// Neighbors returns the leaf cells adjacent to the given face. The result
// is a single same-or-coarser leaf, or the set of finer leaves sharing the
// face, in Morton order. Crossing a non-periodic domain face yields an
// empty result; the caller applies the boundary ghost value.
//
// axis selects x/y/z, sign is -1 or +1.
func (m *Mesh) Neighbors(id int, axis int, sign int) []int {
	c := &m.cells[id]
	eps := m.eps()

	// Probe box: the face pushed outward by eps, shrunk tangentially so
	// corner-only contact never matches.
	var lo, hi [3]float64
	for a := 0; a < 3; a++ {
		lo[a], hi[a] = c.Lo[a]+eps, c.Hi[a]-eps
	}
	if sign > 0 {
		lo[axis], hi[axis] = c.Hi[axis]+eps, c.Hi[axis]+2*eps
	} else {
		lo[axis], hi[axis] = c.Lo[axis]-2*eps, c.Lo[axis]-eps
	}
	if m.params.Dim == 2 {
		lo[2], hi[2] = 0.25, 0.75
	}

	// Wrap the probe center; shift the whole box by the same offset.
	center := [3]float64{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2, (lo[2] + hi[2]) / 2}
	wrapped, ok := m.wrap(center)
	if !ok {
		return nil
	}
	for a := 0; a < 3; a++ {
		d := wrapped[a] - center[a]
		lo[a] += d
		hi[a] += d
	}

	var out []int
	m.collect(m.root, lo, hi, &out)
	return out
}

func (m *Mesh) collect(id int, lo, hi [3]float64, out *[]int) {
	c := &m.cells[id]
	for a := 0; a < 3; a++ {
		if c.Hi[a] <= lo[a] || c.Lo[a] >= hi[a] {
			return
		}
	}
	if c.Leaf {
		*out = append(*out, id)
		return
	}
	for k := 0; k < m.params.Children(); k++ {
		m.collect(c.Children[k], lo, hi, out)
	}
}

// NeighborValue samples a face neighbor of the given field, averaging over
// finer neighbors, and applies the domain boundary condition when the face
// lies on a non-periodic boundary: zero-gradient for outflow, and for
// walls either zero-gradient (scalars) or reflection (the velocity
// component normal to the wall, when reflect is set).
func (m *Mesh) NeighborValue(f []float64, id int, axis int, sign int, reflect bool) float64 {
	ns := m.Neighbors(id, axis, sign)
	if len(ns) == 0 {
		face := 2*axis + min(sign+1, 1)
		if m.bcs[face] == BoundaryWall && reflect {
			return -f[id]
		}
		return f[id]
	}
	sum := 0.0
	for _, n := range ns {
		sum += f[n]
	}
	return sum / float64(len(ns))
}
