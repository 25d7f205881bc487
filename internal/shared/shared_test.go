package shared

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/ptcbox/internal/cascade"
	"github.com/san-kum/ptcbox/internal/statemachine"
	"github.com/san-kum/ptcbox/internal/thermo"
)

func TestModeWordPacking(t *testing.T) {
	for _, w := range []ModeWord{
		{Mode: thermo.Idle},
		{Mode: thermo.Cooling, Forced: true, Epoch: 1},
		{Mode: thermo.Warming, Epoch: 1 << 40},
	} {
		assert.Equal(t, w, unpack(w.pack()))
	}
}

func TestPublishTransitionBumpsEpoch(t *testing.T) {
	s := New(thermo.DefaultParams(), thermo.Warming)
	assert.Equal(t, ModeWord{Mode: thermo.Warming}, s.Mode())

	s.PublishTransition(statemachine.Transition{From: thermo.Warming, To: thermo.Heating, At: time.Now()})
	s.PublishTransition(statemachine.Transition{From: thermo.Heating, To: thermo.Cooling, Forced: true})

	w := s.Mode()
	assert.Equal(t, thermo.Cooling, w.Mode)
	assert.True(t, w.Forced)
	assert.Equal(t, uint64(2), w.Epoch)

	tr, ok := s.LastTransition()
	require.True(t, ok)
	assert.Equal(t, thermo.Heating, tr.From)
}

func TestUpdateParamsIsAllOrNothing(t *testing.T) {
	s := New(thermo.DefaultParams(), thermo.Warming)
	before := s.Params()

	_, err := s.UpdateParams(func(p *thermo.Params) error {
		p.Target = 50
		p.Hysteresis = -1
		return nil
	})
	require.Error(t, err)
	assert.Same(t, before, s.Params())
	assert.Equal(t, 40.0, s.Params().Target)

	boom := errors.New("boom")
	_, err = s.UpdateParams(func(p *thermo.Params) error {
		p.Target = 50
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 40.0, s.Params().Target)

	next, err := s.UpdateParams(func(p *thermo.Params) error {
		p.Target = 50
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, next, s.Params())
	assert.Equal(t, 50.0, s.Params().Target)
	assert.Equal(t, 40.0, before.Target)
}

func TestUpdateParamsDoesNotShareTables(t *testing.T) {
	s := New(thermo.DefaultParams(), thermo.Warming)
	before := s.Params()
	_, err := s.UpdateParams(func(p *thermo.Params) error {
		_, err := p.Duty.Set(40, 0.30)
		return err
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.36, before.Duty.Lookup(40), 1e-9)
	assert.InDelta(t, 0.30, s.Params().Duty.Lookup(40), 1e-9)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := New(thermo.DefaultParams(), thermo.Warming)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.SetBox(float64(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.SetPTC(float64(i))
			s.PublishOutput(cascade.Output{Duty: 0.5}, cascade.Loops{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := s.Snapshot()
			assert.NotNil(t, snap.Params)
		}
	}()
	wg.Wait()
	assert.Equal(t, 999.0, s.Readings().Box)
	assert.Equal(t, 0.5, s.Output().Duty)
}
