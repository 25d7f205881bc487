package optim

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/ptcbox/internal/engine"
	"github.com/san-kum/ptcbox/internal/plant"
	"github.com/san-kum/ptcbox/internal/sensor"
	"github.com/san-kum/ptcbox/internal/sim"
	"github.com/san-kum/ptcbox/internal/thermo"
)

func TestSearchFindsMinimum(t *testing.T) {
	g := NewGridSearch(
		Axis{Name: "inner.kp", Values: []float64{0.01, 0.02, 0.03}},
		Axis{Name: "inner.ki", Values: []float64{0.001, 0.005}},
	)
	obj := func(_ context.Context, p *thermo.Params) (float64, error) {
		return math.Abs(p.Inner.Kp-0.02) + math.Abs(p.Inner.Ki-0.005), nil
	}

	best, trials, err := g.Search(context.Background(), thermo.DefaultParams(), obj)
	require.NoError(t, err)
	assert.Len(t, trials, 6)
	assert.InDelta(t, 0.02, best.Values["inner.kp"], 1e-12)
	assert.InDelta(t, 0.005, best.Values["inner.ki"], 1e-12)
	assert.InDelta(t, 0.0, best.Score, 1e-12)
	for i := 1; i < len(trials); i++ {
		assert.LessOrEqual(t, trials[i-1].Score, trials[i].Score)
	}
}

func TestSearchDoesNotTouchBase(t *testing.T) {
	base := thermo.DefaultParams()
	g := NewGridSearch(Axis{Name: "outer.kp", Values: []float64{3}})
	_, _, err := g.Search(context.Background(), base, func(context.Context, *thermo.Params) (float64, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1.5, base.Outer.Kp)
}

func TestSearchKeepsInvalidTrials(t *testing.T) {
	g := NewGridSearch(Axis{Name: "inner.kp", Values: []float64{-1, 0.02}})
	best, trials, err := g.Search(context.Background(), thermo.DefaultParams(),
		func(context.Context, *thermo.Params) (float64, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 0.02, best.Values["inner.kp"])
	require.Len(t, trials, 2)
	assert.ErrorIs(t, trials[1].Err, thermo.ErrInvalidParam)

	g = NewGridSearch(Axis{Name: "inner.kp", Values: []float64{-1}})
	_, _, err = g.Search(context.Background(), thermo.DefaultParams(),
		func(context.Context, *thermo.Params) (float64, error) { return 2, nil })
	assert.ErrorIs(t, err, ErrNoTrials)
}

func TestSearchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGridSearch(Axis{Name: "inner.kp", Values: []float64{0.01, 0.02}})
	_, _, err := g.Search(ctx, thermo.DefaultParams(), func(ctx context.Context, _ *thermo.Params) (float64, error) {
		return 0, ctx.Err()
	})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSet(t *testing.T) {
	p := thermo.DefaultParams()
	require.NoError(t, Set(p, "cool.ki", 0.02))
	require.NoError(t, Set(p, "heating_bias", 30))
	assert.Equal(t, 0.02, p.Cool.Ki)
	assert.Equal(t, 30.0, p.HeatingBias)

	assert.Error(t, Set(p, "kp", 1))
	assert.ErrorIs(t, Set(p, "middle.kp", 1), thermo.ErrUnknownLoop)
	assert.Error(t, Set(p, "inner.gain", 1))
}

func TestTrackingObjective(t *testing.T) {
	cfg := sim.Config{
		Params: thermo.DefaultParams(),
		Model:  plant.DefaultModel(),
		NTC:    sensor.DefaultNTC(),
		Timing: engine.DefaultTiming(),
		Seed:   1,
	}
	obj := TrackingObjective(cfg, 40, 30*time.Second)
	a, err := obj(context.Background(), thermo.DefaultParams())
	require.NoError(t, err)
	b, err := obj(context.Background(), thermo.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Greater(t, a, 0.0)
}

func TestMetricObjective(t *testing.T) {
	cfg := sim.Config{
		Params:   thermo.DefaultParams(),
		Model:    plant.DefaultModel(),
		NTC:      sensor.DefaultNTC(),
		Timing:   engine.DefaultTiming(),
		Duration: time.Minute,
		Seed:     1,
	}
	v, err := MetricObjective(cfg, "iae")(context.Background(), thermo.DefaultParams())
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)

	_, err = MetricObjective(cfg, "nope")(context.Background(), thermo.DefaultParams())
	assert.Error(t, err)
}
