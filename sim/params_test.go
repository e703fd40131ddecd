package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViscosity_MixesBetweenPhases(t *testing.T) {
	p := testParams(2, 1, 3)
	p.ViscosityRatio = 0.01
	p.Reynolds = 100

	// Ambient phase (tracer 0) carries unit viscosity over Reynolds.
	assert.InDelta(t, 1.0/100, p.Viscosity(0), 1e-15)
	// Dense phase (tracer 1) carries the ratio.
	assert.InDelta(t, 0.01/100, p.Viscosity(1), 1e-15)
	// Interface mixes linearly.
	assert.InDelta(t, (1+0.5*(0.01-1))/100, p.Viscosity(0.5), 1e-15)
}

func TestInvDensity_MixesBetweenPhases(t *testing.T) {
	p := testParams(2, 1, 3)
	p.DensityRatio = 2

	assert.InDelta(t, 1.0, p.InvDensity(0), 1e-15)
	assert.InDelta(t, 0.5, p.InvDensity(1), 1e-15)
	assert.InDelta(t, 1/1.5, p.InvDensity(0.5), 1e-15)
}

func TestGlobalParams_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*GlobalParams)
		ok     bool
	}{
		{"valid", func(p *GlobalParams) {}, true},
		{"bad dim", func(p *GlobalParams) { p.Dim = 4 }, false},
		{"inverted levels", func(p *GlobalParams) { p.MinLevel = 5; p.MaxLevel = 2 }, false},
		{"zero density ratio", func(p *GlobalParams) { p.DensityRatio = 0 }, false},
		{"negative reynolds", func(p *GlobalParams) { p.Reynolds = -1 }, false},
		{"zero dt", func(p *GlobalParams) { p.Dt = 0 }, false},
		{"end before start", func(p *GlobalParams) { p.StartTime = 2; p.EndTime = 1 }, false},
		{"zero extent", func(p *GlobalParams) { p.Extent = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := testParams(2, 1, 5)
			tc.mutate(p)
			err := p.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrBadConfig)
			}
		})
	}
}

func TestChildren_PerDimension(t *testing.T) {
	assert.Equal(t, 4, testParams(2, 1, 3).Children())
	assert.Equal(t, 8, testParams(3, 1, 3).Children())
}
