package rig

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/ptcbox/internal/config"
	"github.com/san-kum/ptcbox/internal/engine"
	"github.com/san-kum/ptcbox/internal/thermo"
)

func fastConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timing = engine.Timing{
		SlowPeriod:  50 * time.Millisecond,
		FastPeriod:  10 * time.Millisecond,
		SwitchPause: time.Millisecond,
	}
	return cfg
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Control.Hysteresis = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, thermo.ErrInvalidParam)

	_, err = New(fastConfig(), WithTimeScale(0))
	assert.Error(t, err)
}

func TestRunHeatsFromAmbient(t *testing.T) {
	r, err := New(fastConfig(), WithTimeScale(50), WithPhysicsStep(5*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, thermo.Heating, r.State().Mode().Mode)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	assert.Greater(t, r.Plant().PTC(), 22.0)
	heater, _ := r.Plant().Drive()
	assert.Equal(t, 0.0, heater, "engine leaves the heater off on exit")

	st := r.Tuning().Status()
	assert.Equal(t, "HEATING", st.ControlState)
	assert.Greater(t, st.DesiredPTC, st.TargetTemperature)
}

func TestLiveEvaluation(t *testing.T) {
	r, err := New(fastConfig(), WithTimeScale(50), WithPhysicsStep(5*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	score, err := r.Tuning().Evaluate(context.Background(), 45, 500*time.Millisecond)
	cancel()
	require.NoError(t, err)
	require.NoError(t, <-done)

	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1000.0)
	assert.Equal(t, 40.0, r.Tuning().Params().Target)
	assert.False(t, r.Tuning().Status().Forced)
}
