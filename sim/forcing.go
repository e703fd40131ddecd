package sim

// PressureSolver is the opaque pressure-projection primitive. Given the
// divergence of the provisional velocity it produces a potential whose
// gradient makes the corrected velocity divergence-free. The kernel
// depends on nothing about the solve beyond this contract.
type PressureSolver interface {
	Solve(m *Mesh, fs *FieldStore, div []float64) error
}

// JacobiSolver is the bundled projection primitive: damped Jacobi sweeps
// of the cell-centered Poisson equation. Production runs would swap in a
// multigrid implementation behind the same interface.
type JacobiSolver struct {
	Sweeps int
}

// NewJacobiSolver returns a JacobiSolver with the given sweep count
// (40 when non-positive).
func NewJacobiSolver(sweeps int) *JacobiSolver {
	if sweeps <= 0 {
		sweeps = 40
	}
	return &JacobiSolver{Sweeps: sweeps}
}

// Solve writes the pressure potential into the pressure field.
func (s *JacobiSolver) Solve(m *Mesh, fs *FieldStore, div []float64) error {
	p := fs.Data(FieldPressure)
	leaves := m.Leaves()
	for _, id := range leaves {
		p[id] = 0
	}
	for sweep := 0; sweep < s.Sweeps; sweep++ {
		prev := make([]float64, len(p))
		copy(prev, p)
		for _, id := range leaves {
			sum, diag := 0.0, 0.0
			for axis := 0; axis < m.params.Dim; axis++ {
				h := m.Size(id, axis)
				sum += (m.NeighborValue(prev, id, axis, +1, false) +
					m.NeighborValue(prev, id, axis, -1, false)) / (h * h)
				diag += 2 / (h * h)
			}
			p[id] = (sum - div[id]) / diag
		}
	}
	return nil
}

// Momentum assembles the additive source terms of the momentum equation
// each step: viscous diffusion, curvature-driven surface tension, and
// optional body forcing, followed by the projection hand-off.
type Momentum struct {
	params *GlobalParams
	solver PressureSolver

	// bodyForces are evaluated per cell per step with the live context.
	bodyForces []VectorExpr

	// useFiltered selects T1 instead of T for property evaluation; a
	// scenario-driven capability, off unless configured.
	useFiltered bool
}

// NewMomentum builds the forcing module around a projection primitive.
func NewMomentum(params *GlobalParams, solver PressureSolver, useFiltered bool) *Momentum {
	return &Momentum{params: params, solver: solver, useFiltered: useFiltered}
}

// AddBodyForce appends a body-force expression evaluated every step.
func (mo *Momentum) AddBodyForce(f VectorExpr) {
	mo.bodyForces = append(mo.bodyForces, f)
}

// propertyField returns the tracer field used for material properties.
func (mo *Momentum) propertyField() string {
	if mo.useFiltered {
		return FieldFiltered
	}
	return FieldTracer
}

// Step advances the velocity field by dt: explicit viscous and forcing
// update, then projection. The tracer must already be advected and its
// curvature refreshed for the surface tension term.
func (mo *Momentum) Step(m *Mesh, fs *FieldStore, t, dt float64) error {
	dim := mo.params.Dim
	prop := fs.Snapshot(mo.propertyField())
	tracer := fs.Snapshot(FieldTracer)
	curv := fs.Snapshot(FieldCurv)
	leaves := m.Leaves()

	prevVel := make([][]float64, dim)
	vel := make([][]float64, dim)
	for axis := 0; axis < dim; axis++ {
		prevVel[axis] = fs.Snapshot(VelocityField(axis))
		vel[axis] = fs.Data(VelocityField(axis))
	}

	mean := MeanVelocity(m, fs)

	for _, id := range leaves {
		invRho := mo.params.InvDensity(prop[id])
		nu := mo.params.Viscosity(prop[id])
		center := m.Center(id)
		ctx := &EvalContext{
			X: center[0], Y: center[1], Z: center[2],
			Time: t, Cell: id,
			Fields: fs, Params: mo.params,
			MeanVel: mean,
		}

		var body [3]float64
		for _, f := range mo.bodyForces {
			v := f(ctx)
			for axis := 0; axis < dim; axis++ {
				body[axis] += v[axis]
			}
		}

		for axis := 0; axis < dim; axis++ {
			// Viscous diffusion, explicit Laplacian with reflective walls.
			lap := 0.0
			h := m.Size(id, axis)
			for a := 0; a < dim; a++ {
				ha := m.Size(id, a)
				plus := m.NeighborValue(prevVel[axis], id, a, +1, a == axis)
				minus := m.NeighborValue(prevVel[axis], id, a, -1, a == axis)
				lap += (plus - 2*prevVel[axis][id] + minus) / (ha * ha)
			}
			accel := nu * lap

			// Continuum surface force: sigma·K·grad T at interface cells.
			if mo.params.Weber > 0 && IsInterface(tracer[id]) {
				gradT := (m.NeighborValue(tracer, id, axis, +1, false) -
					m.NeighborValue(tracer, id, axis, -1, false)) / (2 * h)
				accel += curv[id] * gradT / mo.params.Weber
			}

			accel += body[axis]
			vel[axis][id] = prevVel[axis][id] + dt*accel*invRho
		}
	}

	return mo.project(m, fs, dt)
}

// project hands the provisional divergence to the pressure primitive and
// subtracts the resulting potential gradient, the sole dependency on the
// external Poisson solver.
func (mo *Momentum) project(m *Mesh, fs *FieldStore, dt float64) error {
	div := Divergence(m, fs)
	if err := mo.solver.Solve(m, fs, div); err != nil {
		return err
	}
	p := fs.Snapshot(FieldPressure)
	for axis := 0; axis < mo.params.Dim; axis++ {
		vel := fs.Data(VelocityField(axis))
		for _, id := range m.Leaves() {
			grad := (m.NeighborValue(p, id, axis, +1, false) -
				m.NeighborValue(p, id, axis, -1, false)) / (2 * m.Size(id, axis))
			vel[id] -= grad
		}
	}
	return nil
}

// Divergence computes the cell-centered velocity divergence for every
// leaf, indexed by cell id.
func Divergence(m *Mesh, fs *FieldStore) []float64 {
	div := make([]float64, len(m.cells))
	for axis := 0; axis < m.params.Dim; axis++ {
		vel := fs.Snapshot(VelocityField(axis))
		for _, id := range m.Leaves() {
			plus := m.NeighborValue(vel, id, axis, +1, true)
			minus := m.NeighborValue(vel, id, axis, -1, true)
			div[id] += (plus - minus) / (2 * m.Size(id, axis))
		}
	}
	return div
}

// MeanVelocity returns the volume-averaged velocity over the domain,
// refreshed once per tick for linear forcing.
func MeanVelocity(m *Mesh, fs *FieldStore) [3]float64 {
	var sum [3]float64
	total := 0.0
	vel := make([][]float64, m.params.Dim)
	for axis := 0; axis < m.params.Dim; axis++ {
		vel[axis] = fs.Data(VelocityField(axis))
	}
	m.EachLeaf(func(id int) bool {
		v := m.Volume(id)
		total += v
		for axis := 0; axis < m.params.Dim; axis++ {
			sum[axis] += vel[axis][id] * v
		}
		return true
	})
	if total > 0 {
		for axis := range sum {
			sum[axis] /= total
		}
	}
	return sum
}
