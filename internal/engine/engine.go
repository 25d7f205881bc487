// Package engine runs the two periodic control tasks. The slow task samples
// the discrete sensors and drives the state machine; the fast task reads the
// PTC thermistor, runs the cascade and writes the actuator every cycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ptcbox/internal/cascade"
	"github.com/san-kum/ptcbox/internal/sensor"
	"github.com/san-kum/ptcbox/internal/shared"
	"github.com/san-kum/ptcbox/internal/statemachine"
	"github.com/san-kum/ptcbox/internal/thermo"
)

// Actuator drives the shared PWM line. dir selects heater or fan.
type Actuator interface {
	Apply(duty float64, dir thermo.Direction) error
}

type Timing struct {
	SlowPeriod  time.Duration `yaml:"slow_period"`
	FastPeriod  time.Duration `yaml:"fast_period"`
	SwitchPause time.Duration `yaml:"switch_pause"`
}

func DefaultTiming() Timing {
	return Timing{
		SlowPeriod:  time.Second,
		FastPeriod:  100 * time.Millisecond,
		SwitchPause: 20 * time.Millisecond,
	}
}

func (t Timing) Validate() error {
	if t.SlowPeriod <= 0 || t.FastPeriod <= 0 {
		return fmt.Errorf("engine: periods must be positive, got slow=%v fast=%v", t.SlowPeriod, t.FastPeriod)
	}
	if t.SwitchPause < 0 || t.SwitchPause >= t.FastPeriod {
		return fmt.Errorf("engine: switch pause %v must be within [0, fast period)", t.SwitchPause)
	}
	return nil
}

// Observer is notified after every fast cycle.
type Observer interface {
	OnCycle(now time.Time, r shared.Readings, out cascade.Output)
}

type Engine struct {
	timing  Timing
	sensors *sensor.Adapter
	act     Actuator
	state   *shared.State
	machine *statemachine.Machine
	ctrl    *cascade.Controller
	lg      *slog.Logger
	pause   func(time.Duration)

	observers []Observer

	// fast task only
	epoch uint64
	dir   thermo.Direction
}

type Option func(*Engine)

func WithLogger(lg *slog.Logger) Option { return func(e *Engine) { e.lg = lg } }

// WithPause replaces the blocking switch pause, for virtual-time runs.
func WithPause(fn func(time.Duration)) Option { return func(e *Engine) { e.pause = fn } }

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

func New(timing Timing, sensors *sensor.Adapter, act Actuator, state *shared.State,
	machine *statemachine.Machine, ctrl *cascade.Controller, opts ...Option) (*Engine, error) {
	if err := timing.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		timing:  timing,
		sensors: sensors,
		act:     act,
		state:   state,
		machine: machine,
		ctrl:    ctrl,
		pause:   time.Sleep,
	}
	for _, o := range opts {
		o(e)
	}
	if e.lg == nil {
		e.lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	w := state.Mode()
	e.epoch = w.Epoch
	e.dir = w.Mode.Direction()
	return e, nil
}

func (e *Engine) AddObserver(o Observer) { e.observers = append(e.observers, o) }

func (e *Engine) Timing() Timing { return e.timing }

// SlowStep samples the discrete sensors and evaluates the state machine.
// Failed reads keep the previous value.
func (e *Engine) SlowStep(now time.Time) {
	s := e.sensors.Sample()
	if s.BoxOK {
		e.state.SetBox(s.Box)
	}
	if s.AmbientOK {
		e.state.SetAmbient(s.Ambient)
	}
	if s.HumidityOK {
		e.state.SetHumidity(s.Humidity)
	}
	e.machine.Step(s.Box, s.BoxOK, e.state.Params(), now)
}

// FastStep runs one control cycle and writes the actuator.
func (e *Engine) FastStep(now time.Time) cascade.Output {
	ptc, err := e.sensors.PTC()
	if err != nil {
		e.lg.Warn("ptc read failed", "error", err)
		ptc = e.state.Readings().PTC
	} else {
		e.state.SetPTC(ptc)
	}

	w := e.state.Mode()
	if w.Epoch != e.epoch {
		e.transition(w)
	}

	out := e.ctrl.Step(cascade.Inputs{
		Mode:   w.Mode,
		Box:    e.state.Readings().Box,
		PTC:    ptc,
		Params: e.state.Params(),
		Dt:     e.timing.FastPeriod.Seconds(),
		Now:    now,
	})
	e.apply(out.Duty, out.Direction)
	e.state.PublishOutput(out, e.ctrl.Loops())

	r := e.state.Readings()
	for _, o := range e.observers {
		o.OnCycle(now, r, out)
	}
	return out
}

// transition is the safe stop: zero the line on the old direction, switch
// the direction pin, hold zero for the pause, then clear controller history.
func (e *Engine) transition(w shared.ModeWord) {
	e.epoch = w.Epoch
	e.apply(0, e.dir)
	e.apply(0, w.Mode.Direction())
	if e.timing.SwitchPause > 0 {
		e.pause(e.timing.SwitchPause)
	}
	if w.Forced {
		e.ctrl.ResetAll()
	} else {
		e.ctrl.ResetFor(w.Mode)
	}
	e.lg.Debug("transition applied", "mode", w.Mode.String(), "epoch", w.Epoch, "forced", w.Forced)
}

func (e *Engine) apply(duty float64, dir thermo.Direction) {
	e.dir = dir
	if err := e.act.Apply(duty, dir); err != nil {
		e.lg.Error("actuator write failed", "error", err, "duty", duty, "dir", dir.String())
	}
}

// Run starts both tasks and blocks until ctx is cancelled. The actuator is
// left at zero duty on return.
func (e *Engine) Run(ctx context.Context) error {
	e.lg.Info("engine started", "slow", e.timing.SlowPeriod, "fast", e.timing.FastPeriod)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return every(ctx, e.timing.SlowPeriod, e.SlowStep)
	})
	g.Go(func() error {
		return every(ctx, e.timing.FastPeriod, func(now time.Time) { e.FastStep(now) })
	})

	err := g.Wait()
	e.apply(0, e.dir)
	e.lg.Info("engine stopped")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func every(ctx context.Context, period time.Duration, fn func(time.Time)) error {
	fn(time.Now())
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			fn(now)
		}
	}
}
