package thermo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/ptcbox/internal/feedforward"
)

func TestDefaultParamsValid(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
		param  string
	}{
		{"zero hysteresis", func(p *Params) { p.Hysteresis = 0 }, "hysteresis"},
		{"target at safety max", func(p *Params) { p.Target = 120 }, "target"},
		{"nan target", func(p *Params) { p.Target = math.NaN() }, "target"},
		{"heating below warming", func(p *Params) { p.HeatingBias = 5 }, "heating_bias"},
		{"fan max above one", func(p *Params) { p.FanMax = 1.2 }, "fan_max"},
		{"negative gain", func(p *Params) { p.Inner.Kp = -1 }, "inner.kp"},
		{"inverted bounds", func(p *Params) { p.Outer.OutMin = 30 }, "outer.out_min"},
		{"idle band too wide", func(p *Params) { p.IdleBand = 3 }, "idle_band"},
		{"zero decay", func(p *Params) { p.InactiveDecay = 0 }, "inactive_decay"},
		{"nan duty entry", func(p *Params) {
			p.Duty = feedforward.New(feedforward.DutyTable, []feedforward.Point{{X: 20, Y: 0.2}, {X: 30, Y: math.NaN()}})
		}, feedforward.DutyTable},
		{"nan bias x", func(p *Params) {
			p.Bias = feedforward.New(feedforward.BiasTable, []feedforward.Point{{X: 25, Y: 8}, {X: math.NaN(), Y: 10}, {X: 40, Y: 14}})
		}, feedforward.BiasTable},
		{"infinite warming entry", func(p *Params) {
			p.Warming = feedforward.New(feedforward.WarmingTable, []feedforward.Point{{X: 25, Y: math.Inf(1)}})
		}, feedforward.WarmingTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidParam)

			var pe *ParamError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.param, pe.Name)
		})
	}
}

func TestCloneDeepCopiesTables(t *testing.T) {
	p := DefaultParams()
	c := p.Clone()

	_, err := c.Duty.Set(40, 0.1)
	require.NoError(t, err)
	c.Target = 55

	assert.Equal(t, 40.0, p.Target)
	assert.InDelta(t, 0.36, p.Duty.Lookup(40), 1e-9)
	assert.InDelta(t, 0.1, c.Duty.Lookup(40), 1e-9)
}

func TestEffectiveWarmingThreshold(t *testing.T) {
	p := DefaultParams()
	assert.InDelta(t, 1.0, p.EffectiveWarmingThreshold(), 1e-9)

	p.WarmingFromTable = false
	assert.Equal(t, 3.0, p.EffectiveWarmingThreshold())
}

func TestLookupByName(t *testing.T) {
	p := DefaultParams()

	for _, name := range []string{"duty", "ptc", "0"} {
		tbl, err := p.Table(name)
		require.NoError(t, err)
		assert.Same(t, p.Duty, tbl)
	}
	_, err := p.Table("nope")
	assert.ErrorIs(t, err, ErrUnknownTable)

	lp, err := p.Loop("heat")
	require.NoError(t, err)
	assert.Same(t, &p.Inner, lp)
	_, err = p.Loop("nope")
	assert.ErrorIs(t, err, ErrUnknownLoop)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"heating": Heating, "WARMING": Warming, "cool": Cooling, "idle": Idle} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("boil")
	assert.ErrorIs(t, err, ErrUnknownMode)

	assert.Equal(t, Cool, Cooling.Direction())
	assert.Equal(t, Heat, Warming.Direction())
	assert.Equal(t, "HEATING", Heating.String())
}
