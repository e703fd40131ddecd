package sim

import (
	"math"
)

// interfaceBand is the tracer range treated as interfacial. Outside it a
// cell is considered pure phase and carries no reconstructed geometry.
const interfaceBand = 1e-6

// IsInterface reports whether a tracer value lies on the phase interface.
func IsInterface(t float64) bool {
	return t > interfaceBand && t < 1-interfaceBand
}

// AdvectReport carries the data-quality diagnostics of one advection
// sweep. Bound violations are clamped and reported, never fatal: VOF
// schemes have known bounded discretization error.
type AdvectReport struct {
	ClampedCells int
	ClampedMass  float64 // total |tracer·volume| removed by clamping
	MinValue     float64 // pre-clamp extrema
	MaxValue     float64
}

// Clamped reports whether any tracer value left [0,1] this sweep.
func (r AdvectReport) Clamped() bool { return r.ClampedCells > 0 }

// Advect performs one conservative upwind flux update of the tracer
// fraction and clamps the result to [0,1]. Each face flux is computed
// once and applied with opposite signs to both cells, so the total
// tracer volume is invariant under divergence-free flow up to
// discretization error (outflow faces excepted, where mass legitimately
// leaves the domain).
func Advect(m *Mesh, fs *FieldStore, dt float64) AdvectReport {
	tracer := fs.Snapshot(FieldTracer)
	vel := make([][]float64, m.params.Dim)
	for axis := 0; axis < m.params.Dim; axis++ {
		vel[axis] = fs.Data(VelocityField(axis))
	}

	delta := make([]float64, len(tracer))
	for _, id := range m.Leaves() {
		level := m.Cell(id).Level
		for axis := 0; axis < m.params.Dim; axis++ {
			for _, sign := range [2]int{+1, -1} {
				ns := m.Neighbors(id, axis, sign)
				if !ownsFace(m, level, ns, sign) {
					continue
				}
				m.fluxFace(tracer, vel[axis], delta, id, ns, axis, sign, dt)
			}
		}
	}

	report := AdvectReport{MinValue: math.Inf(1), MaxValue: math.Inf(-1)}
	data := fs.Data(FieldTracer)
	for _, id := range m.Leaves() {
		v := data[id] + delta[id]
		report.MinValue = math.Min(report.MinValue, v)
		report.MaxValue = math.Max(report.MaxValue, v)
		clamped := math.Max(0, math.Min(1, v))
		if clamped != v {
			report.ClampedCells++
			report.ClampedMass += math.Abs(v-clamped) * m.Volume(id)
		}
		data[id] = clamped
	}
	return report
}

// ownsFace decides which side of a face computes its flux: the finer
// cell at resolution jumps, and the negative-to-positive direction
// between equal levels. Boundary faces (no neighbor) always belong to
// the inside cell.
func ownsFace(m *Mesh, level int, ns []int, sign int) bool {
	if len(ns) == 0 {
		return true
	}
	if len(ns) > 1 {
		// Multiple finer neighbors own their sub-faces.
		return false
	}
	nl := m.Cell(ns[0]).Level
	if nl == level {
		return sign > 0
	}
	return nl < level
}

// fluxFace computes the upwind donor flux through one face and applies it
// to both sides of the face.
func (m *Mesh) fluxFace(tracer, u, delta []float64, id int, ns []int, axis, sign int, dt float64) {
	area := m.FaceArea(id, axis)
	var neighbor int
	var uOut, tNeighbor float64
	if len(ns) == 0 {
		face := 2*axis + (sign+1)/2
		if m.bcs[face] == BoundaryWall {
			return // no penetration
		}
		// Outflow: face velocity and donor value from the inside cell.
		neighbor = -1
		uOut = float64(sign) * u[id]
		tNeighbor = tracer[id]
	} else {
		neighbor = ns[0]
		uOut = float64(sign) * (u[id] + u[neighbor]) / 2
		tNeighbor = tracer[neighbor]
	}

	donor := tracer[id]
	if uOut < 0 {
		donor = tNeighbor
	}
	dm := uOut * area * dt * donor // tracer volume leaving id
	delta[id] -= dm / m.Volume(id)
	if neighbor >= 0 {
		delta[neighbor] += dm / m.Volume(neighbor)
	}
}

// Filter writes the box-filtered tracer into T1, leaving T untouched.
// Each pass averages a cell with its face neighbors; width is the pass
// count. Used to smooth property transitions at high density ratios.
// Whether filtering runs at all is scenario-driven, not a default.
func Filter(m *Mesh, fs *FieldStore, width int) {
	src := fs.Snapshot(FieldTracer)
	dst := fs.Data(FieldFiltered)
	copy(dst, src)
	for pass := 0; pass < width; pass++ {
		prev := make([]float64, len(dst))
		copy(prev, dst)
		for _, id := range m.Leaves() {
			sum := prev[id]
			n := 1
			for axis := 0; axis < m.params.Dim; axis++ {
				sum += m.NeighborValue(prev, id, axis, +1, false)
				sum += m.NeighborValue(prev, id, axis, -1, false)
				n += 2
			}
			dst[id] = sum / float64(n)
		}
	}
}

// Curvature estimates the mean interface curvature at interface cells as
// minus the divergence of the tracer gradient direction, and records in
// Kmax the largest |K| over the face neighborhood (consumed by the
// curvature adaptivity criterion). Pure-phase cells get zero curvature.
//
// For a sphere of radius r the estimate converges to 2/r (1/r for a
// circle in 2D).
func Curvature(m *Mesh, fs *FieldStore, source string) (kmax map[int]float64) {
	tracer := fs.Snapshot(source)
	curv := fs.Data(FieldCurv)

	// Interface normals from central-difference tracer gradients, for
	// every cell with a usable gradient, one band wider than the
	// interface itself so the curvature stencil has normals to difference.
	normals := make([][]float64, m.params.Dim)
	for axis := range normals {
		normals[axis] = make([]float64, len(tracer))
	}
	leaves := m.Leaves()
	for _, id := range leaves {
		mag := 0.0
		grad := make([]float64, m.params.Dim)
		for axis := 0; axis < m.params.Dim; axis++ {
			plus := m.NeighborValue(tracer, id, axis, +1, false)
			minus := m.NeighborValue(tracer, id, axis, -1, false)
			grad[axis] = (plus - minus) / (2 * m.Size(id, axis))
			mag += grad[axis] * grad[axis]
		}
		mag = math.Sqrt(mag)
		if mag < interfaceBand {
			continue
		}
		for axis := 0; axis < m.params.Dim; axis++ {
			normals[axis][id] = grad[axis] / mag
		}
	}

	for _, id := range leaves {
		if !IsInterface(tracer[id]) {
			curv[id] = 0
			continue
		}
		div := 0.0
		for axis := 0; axis < m.params.Dim; axis++ {
			plus := m.NeighborValue(normals[axis], id, axis, +1, false)
			minus := m.NeighborValue(normals[axis], id, axis, -1, false)
			div += (plus - minus) / (2 * m.Size(id, axis))
		}
		curv[id] = -div
	}

	kmax = make(map[int]float64)
	for _, id := range leaves {
		if !IsInterface(tracer[id]) {
			continue
		}
		peak := math.Abs(curv[id])
		for axis := 0; axis < m.params.Dim; axis++ {
			for _, sign := range [2]int{+1, -1} {
				for _, n := range m.Neighbors(id, axis, sign) {
					peak = math.Max(peak, math.Abs(curv[n]))
				}
			}
		}
		kmax[id] = peak
	}
	return kmax
}

// TracerMass returns the total tracer volume, the conserved quantity of
// the VOF scheme.
func TracerMass(m *Mesh, fs *FieldStore) float64 {
	tracer := fs.Data(FieldTracer)
	sum := 0.0
	m.EachLeaf(func(id int) bool {
		sum += tracer[id] * m.Volume(id)
		return true
	})
	return sum
}
