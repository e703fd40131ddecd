package sim

import (
	"math"
	"math/rand"
	"sort"
)

// Scenario files bind initialization, source terms, and adaptivity
// criteria to expression snippets. Rather than interpreting snippets at
// runtime, expressions are typed function objects registered by name,
// resolved once at configuration load, and invoked per cell against a
// fixed evaluation context.

// EvalContext is the fixed evaluation contract for expressions: cell
// position, simulation time, and field lookups for the owning cell.
type EvalContext struct {
	X, Y, Z float64
	Time    float64
	Cell    int
	Fields  *FieldStore
	Params  *GlobalParams

	// MeanVel is the domain volume-averaged velocity, refreshed once per
	// tick before source evaluation; consumed by linear forcing.
	MeanVel [3]float64
}

// Lookup returns the named field value at the context cell.
func (c *EvalContext) Lookup(field string) float64 {
	return c.Fields.Data(field)[c.Cell]
}

// ScalarExpr evaluates to one scalar per cell (tracer initialization,
// criterion fields).
type ScalarExpr func(ctx *EvalContext) float64

// VectorExpr evaluates to one vector per cell (velocity initialization,
// body forcing).
type VectorExpr func(ctx *EvalContext) [3]float64

// ScalarBuilder constructs a ScalarExpr from scenario arguments.
type ScalarBuilder func(args map[string]float64, rng *rand.Rand) (ScalarExpr, error)

// VectorBuilder constructs a VectorExpr from scenario arguments.
type VectorBuilder func(args map[string]float64, rng *rand.Rand) (VectorExpr, error)

var (
	scalarBuilders = map[string]ScalarBuilder{}
	vectorBuilders = map[string]VectorBuilder{}
)

// RegisterScalarExpr adds a named scalar expression builder. Called from
// init functions; panics on duplicate names.
func RegisterScalarExpr(name string, b ScalarBuilder) {
	if _, ok := scalarBuilders[name]; ok {
		panic("duplicate scalar expression: " + name)
	}
	scalarBuilders[name] = b
}

// RegisterVectorExpr adds a named vector expression builder.
func RegisterVectorExpr(name string, b VectorBuilder) {
	if _, ok := vectorBuilders[name]; ok {
		panic("duplicate vector expression: " + name)
	}
	vectorBuilders[name] = b
}

// AvailableScalarExprs lists registered scalar expression names, sorted.
func AvailableScalarExprs() []string { return sortedKeys(scalarBuilders) }

// AvailableVectorExprs lists registered vector expression names, sorted.
func AvailableVectorExprs() []string { return sortedKeys(vectorBuilders) }

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// BuildScalarExpr resolves a named scalar expression with its arguments.
func BuildScalarExpr(name string, args map[string]float64, rng *rand.Rand) (ScalarExpr, error) {
	b, ok := scalarBuilders[name]
	if !ok {
		return nil, errBadConfigf("unknown scalar expression %q", name)
	}
	return b(args, rng)
}

// BuildVectorExpr resolves a named vector expression with its arguments.
func BuildVectorExpr(name string, args map[string]float64, rng *rand.Rand) (VectorExpr, error) {
	b, ok := vectorBuilders[name]
	if !ok {
		return nil, errBadConfigf("unknown vector expression %q", name)
	}
	return b(args, rng)
}

func arg(args map[string]float64, key string, def float64) float64 {
	if v, ok := args[key]; ok {
		return v
	}
	return def
}

// smoothStep maps a signed distance to a tanh tracer profile of the given
// transition width. Positive distance is inside the dense phase.
func smoothStep(dist, width float64) float64 {
	if width <= 0 {
		if dist >= 0 {
			return 1
		}
		return 0
	}
	return (1 + math.Tanh(dist/width)) / 2
}

func init() {
	RegisterScalarExpr("zero", func(map[string]float64, *rand.Rand) (ScalarExpr, error) {
		return func(*EvalContext) float64 { return 0 }, nil
	})
	RegisterScalarExpr("one", func(map[string]float64, *rand.Rand) (ScalarExpr, error) {
		return func(*EvalContext) float64 { return 1 }, nil
	})

	// sphere: dense drop of given radius and center, tanh-smoothed over
	// `width` (defaults to radius/8). In 2D this is a disk.
	RegisterScalarExpr("sphere", func(args map[string]float64, _ *rand.Rand) (ScalarExpr, error) {
		r := arg(args, "radius", 0.2)
		if r <= 0 {
			return nil, errBadConfigf("sphere radius must be positive: %g", r)
		}
		cx, cy, cz := arg(args, "cx", 0.5), arg(args, "cy", 0.5), arg(args, "cz", 0.5)
		width := arg(args, "width", r/8)
		return func(ctx *EvalContext) float64 {
			dx, dy, dz := ctx.X-cx, ctx.Y-cy, ctx.Z-cz
			if ctx.Params.Dim == 2 {
				dz = 0
			}
			return smoothStep(r-math.Sqrt(dx*dx+dy*dy+dz*dz), width)
		}, nil
	})

	// thread: dense cylinder along x with optional sinusoidal radius
	// perturbation; the perturbation phase is drawn from the init RNG so
	// runs are reproducible per seed.
	RegisterScalarExpr("thread", func(args map[string]float64, rng *rand.Rand) (ScalarExpr, error) {
		r := arg(args, "radius", 0.1)
		if r <= 0 {
			return nil, errBadConfigf("thread radius must be positive: %g", r)
		}
		cy, cz := arg(args, "cy", 0.5), arg(args, "cz", 0.5)
		width := arg(args, "width", r/8)
		amp := arg(args, "amplitude", 0)
		mode := arg(args, "mode", 4)
		phase := 0.0
		if amp != 0 && rng != nil {
			phase = 2 * math.Pi * rng.Float64()
		}
		return func(ctx *EvalContext) float64 {
			dy, dz := ctx.Y-cy, ctx.Z-cz
			if ctx.Params.Dim == 2 {
				dz = 0
			}
			local := r * (1 + amp*math.Sin(2*math.Pi*mode*ctx.X/ctx.Params.Extent+phase))
			return smoothStep(local-math.Sqrt(dy*dy+dz*dz), width)
		}, nil
	})

	RegisterVectorExpr("still", func(map[string]float64, *rand.Rand) (VectorExpr, error) {
		return func(*EvalContext) [3]float64 { return [3]float64{} }, nil
	})

	// uniform: constant vector, for directional body forcing or bulk
	// translation initial conditions.
	RegisterVectorExpr("uniform", func(args map[string]float64, _ *rand.Rand) (VectorExpr, error) {
		v := [3]float64{arg(args, "x", 0), arg(args, "y", 0), arg(args, "z", 0)}
		return func(*EvalContext) [3]float64 { return v }, nil
	})

	// vortex_pair: counter-rotating vortex pair in the x-y plane whose
	// strength oscillates in time; a stirring body force.
	RegisterVectorExpr("vortex_pair", func(args map[string]float64, _ *rand.Rand) (VectorExpr, error) {
		strength := arg(args, "strength", 1)
		freq := arg(args, "frequency", 1)
		k := 2 * math.Pi * arg(args, "mode", 1)
		return func(ctx *EvalContext) [3]float64 {
			a := strength * math.Cos(2*math.Pi*freq*ctx.Time)
			l := ctx.Params.Extent
			return [3]float64{
				a * math.Sin(k*ctx.X/l) * math.Cos(k*ctx.Y/l),
				-a * math.Cos(k*ctx.X/l) * math.Sin(k*ctx.Y/l),
				0,
			}
		}, nil
	})

	// linear_forcing: accelerates each cell toward the domain-mean
	// velocity, a standard way to sustain turbulence without net momentum
	// injection.
	RegisterVectorExpr("linear_forcing", func(args map[string]float64, _ *rand.Rand) (VectorExpr, error) {
		gain := arg(args, "gain", 1)
		return func(ctx *EvalContext) [3]float64 {
			var out [3]float64
			for axis := 0; axis < ctx.Params.Dim; axis++ {
				out[axis] = gain * (ctx.MeanVel[axis] - ctx.Lookup(VelocityField(axis)))
			}
			return out
		}, nil
	})
}
