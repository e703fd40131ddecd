package sim

// GlobalParams holds the immutable scalar parameters of a run. It is
// resolved once at startup from the scenario file and CLI flags and passed
// by reference to every component that needs it; nothing mutates it after
// construction.
type GlobalParams struct {
	// Dim is the spatial dimension, 2 or 3.
	Dim int

	// DensityRatio is the dense-phase to ambient-phase density ratio.
	DensityRatio float64
	// ViscosityRatio is the dense-phase to ambient-phase dynamic viscosity ratio.
	ViscosityRatio float64
	// Reynolds scales the viscous term.
	Reynolds float64
	// Weber scales the surface tension term (capillary forcing uses 1/Weber).
	Weber float64

	// MinLevel and MaxLevel bound the refinement level of every cell.
	MinLevel int
	MaxLevel int

	// EndTime is the simulated time at which the run terminates.
	EndTime float64
	// Dt is the fixed time increment per tick.
	Dt float64
	// StartTime is nonzero when resuming from a snapshot time offset.
	StartTime float64

	// Extent is the edge length of the (cubic) domain box.
	Extent float64
	// Origin is the lower corner of the domain box.
	Origin [3]float64
}

// Children returns the number of children a refined cell holds (2^Dim).
func (p *GlobalParams) Children() int {
	return 1 << p.Dim
}

// Viscosity evaluates the local dimensionless viscosity from the current
// tracer value. Arithmetic mixing between the two phases, scaled by the
// Reynolds number. Must be re-evaluated every step from the live field;
// never cache across steps.
func (p *GlobalParams) Viscosity(tracer float64) float64 {
	return (1 + (p.ViscosityRatio-1)*tracer) / p.Reynolds
}

// InvDensity evaluates the local inverse density from the current tracer
// value. Used to scale forcing terms in the momentum update.
func (p *GlobalParams) InvDensity(tracer float64) float64 {
	return 1 / (1 + tracer*(p.DensityRatio-1))
}

// Validate reports configuration errors before any step runs.
func (p *GlobalParams) Validate() error {
	switch {
	case p.Dim != 2 && p.Dim != 3:
		return errBadConfigf("dim must be 2 or 3, got %d", p.Dim)
	case p.MinLevel < 0 || p.MaxLevel < p.MinLevel:
		return errBadConfigf("level bounds invalid: min=%d max=%d", p.MinLevel, p.MaxLevel)
	case p.DensityRatio <= 0 || p.ViscosityRatio <= 0:
		return errBadConfigf("phase ratios must be positive: density=%g viscosity=%g",
			p.DensityRatio, p.ViscosityRatio)
	case p.Reynolds <= 0:
		return errBadConfigf("reynolds must be positive: %g", p.Reynolds)
	case p.Dt <= 0:
		return errBadConfigf("dt must be positive: %g", p.Dt)
	case p.EndTime <= p.StartTime:
		return errBadConfigf("end_time %g must exceed start_time %g", p.EndTime, p.StartTime)
	case p.Extent <= 0:
		return errBadConfigf("extent must be positive: %g", p.Extent)
	}
	return nil
}
