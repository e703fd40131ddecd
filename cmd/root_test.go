package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wqabc2008/breakup/sim"
)

func TestApplyParamOverrides(t *testing.T) {
	sc := &sim.Scenario{}
	sc.Parameters.DensityRatio = 2
	sc.Parameters.Reynolds = 5800
	sc.Parameters.Dt = 0.002

	reynolds = 1000
	dt = 0
	defer func() { reynolds, dt = 0, 0 }()

	applyParamOverrides(sc)
	assert.Equal(t, 1000.0, sc.Parameters.Reynolds, "set flags override")
	assert.Equal(t, 0.002, sc.Parameters.Dt, "unset flags leave scenario values")
	assert.Equal(t, 2.0, sc.Parameters.DensityRatio)
}

func TestOpenSinks(t *testing.T) {
	dir := t.TempDir()
	runLogPath = filepath.Join(dir, "run.log")
	statsPath = ""
	defer func() { runLogPath, statsPath = "", "" }()

	metrics, closers, err := openSinks()
	require.NoError(t, err)
	require.NotNil(t, metrics)

	metrics.LogStep(1, 0.1, 16, 0, 0)
	metrics.LogScalar(1, 0.1, "x", 1) // nil stats sink discards
	closers()

	data, err := os.ReadFile(runLogPath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
