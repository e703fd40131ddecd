package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exprCtx(x, y, z float64, params *GlobalParams) *EvalContext {
	return &EvalContext{X: x, Y: y, Z: z, Params: params}
}

func TestBuildScalarExpr_Unknown(t *testing.T) {
	_, err := BuildScalarExpr("no-such-shape", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadConfig)

	_, err = BuildVectorExpr("no-such-flow", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadConfig)
}

func TestSphereExpr(t *testing.T) {
	params := testParams(2, 2, 4)
	f, err := BuildScalarExpr("sphere",
		map[string]float64{"radius": 0.25, "cx": 0.5, "cy": 0.5, "width": 0.01}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1, f(exprCtx(0.5, 0.5, 0, params)), 1e-6, "center is dense")
	assert.InDelta(t, 0, f(exprCtx(0.95, 0.5, 0, params)), 1e-6, "far field is light")
	assert.InDelta(t, 0.5, f(exprCtx(0.75, 0.5, 0, params)), 1e-9, "half value on the surface")
}

func TestSphereExpr_RejectsBadRadius(t *testing.T) {
	_, err := BuildScalarExpr("sphere", map[string]float64{"radius": -1}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadConfig)
}

func TestThreadExpr_PerturbationPhaseFromRNG(t *testing.T) {
	params := testParams(2, 2, 4)
	args := map[string]float64{"radius": 0.2, "amplitude": 0.1, "width": 0.01}

	build := func(seed int64) []float64 {
		f, err := BuildScalarExpr("thread", args, rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		out := make([]float64, 16)
		for i := range out {
			out[i] = f(exprCtx(float64(i)/16, 0.68, 0, params))
		}
		return out
	}

	assert.Equal(t, build(3), build(3), "same source, same phase")
	assert.NotEqual(t, build(3), build(4), "phase varies with the source")
}

func TestThreadExpr_NoAmplitudeIsAxisymmetric(t *testing.T) {
	params := testParams(2, 2, 4)
	f, err := BuildScalarExpr("thread",
		map[string]float64{"radius": 0.2}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	v0 := f(exprCtx(0.1, 0.6, 0, params))
	for _, x := range []float64{0.3, 0.55, 0.9} {
		assert.Equal(t, v0, f(exprCtx(x, 0.6, 0, params)), "profile independent of x")
	}
}

func TestUniformAndStillVectors(t *testing.T) {
	params := testParams(3, 2, 4)

	still, err := BuildVectorExpr("still", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{}, still(exprCtx(0.3, 0.4, 0.5, params)))

	uni, err := BuildVectorExpr("uniform", map[string]float64{"x": 1, "z": -2}, nil)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, 0, -2}, uni(exprCtx(0.3, 0.4, 0.5, params)))
}

func TestLinearForcing_PullsTowardMean(t *testing.T) {
	params := testParams(2, 2, 4)
	fs := NewFieldStore()
	require.NoError(t, RegisterStandardFields(fs, 2))
	fs.grow(1)
	fs.Data("u")[0] = 2
	fs.Data("v")[0] = -1

	f, err := BuildVectorExpr("linear_forcing", map[string]float64{"gain": 0.5}, nil)
	require.NoError(t, err)

	ctx := &EvalContext{Cell: 0, Fields: fs, Params: params, MeanVel: [3]float64{1, 1, 0}}
	out := f(ctx)
	assert.InDelta(t, 0.5*(1-2), out[0], 1e-15)
	assert.InDelta(t, 0.5*(1-(-1)), out[1], 1e-15)
	assert.Zero(t, out[2])
}

func TestAvailableExprs_SortedAndComplete(t *testing.T) {
	scalars := AvailableScalarExprs()
	assert.IsIncreasing(t, scalars)
	for _, w := range []string{"zero", "one", "sphere", "thread"} {
		assert.Contains(t, scalars, w)
	}

	vectors := AvailableVectorExprs()
	assert.IsIncreasing(t, vectors)
	for _, w := range []string{"still", "uniform", "vortex_pair", "linear_forcing"} {
		assert.Contains(t, vectors, w)
	}
}
