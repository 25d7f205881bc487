// Package rig runs the control engine in real time against the simulated
// plant, standing in for the enclosure hardware.
package rig

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ptcbox/internal/cascade"
	"github.com/san-kum/ptcbox/internal/config"
	"github.com/san-kum/ptcbox/internal/engine"
	"github.com/san-kum/ptcbox/internal/plant"
	"github.com/san-kum/ptcbox/internal/safety"
	"github.com/san-kum/ptcbox/internal/sensor"
	"github.com/san-kum/ptcbox/internal/shared"
	"github.com/san-kum/ptcbox/internal/statemachine"
	"github.com/san-kum/ptcbox/internal/tuning"
)

// DefaultPhysicsStep is how often the plant is integrated.
const DefaultPhysicsStep = 20 * time.Millisecond

type Rig struct {
	plant   *plant.Plant
	state   *shared.State
	machine *statemachine.Machine
	engine  *engine.Engine
	tuning  *tuning.Service
	lg      *slog.Logger
	step    time.Duration
	scale   float64
}

type Option func(*Rig)

func WithLogger(lg *slog.Logger) Option { return func(r *Rig) { r.lg = lg } }

// WithTimeScale integrates scale seconds of plant time per wall second.
func WithTimeScale(scale float64) Option { return func(r *Rig) { r.scale = scale } }

func WithPhysicsStep(d time.Duration) Option { return func(r *Rig) { r.step = d } }

func New(cfg *config.Config, opts ...Option) (*Rig, error) {
	r := &Rig{step: DefaultPhysicsStep, scale: 1}
	for _, opt := range opts {
		opt(r)
	}
	if r.lg == nil {
		r.lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.step <= 0 || r.scale <= 0 {
		return nil, errors.New("rig: physics step and time scale must be positive")
	}

	p, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	r.plant = plant.New(cfg.Plant, cfg.NTC, cfg.Sim.Seed)
	box := cfg.Plant.Ambient
	if cfg.Sim.InitialBox != nil {
		box = *cfg.Sim.InitialBox
	}
	r.plant.Reset(box, cfg.Plant.Ambient)

	initial := statemachine.Evaluate(box, p)
	r.state = shared.New(p, initial)
	r.state.SetBox(box)
	r.machine = statemachine.New(initial,
		statemachine.WithLogger(r.lg),
		statemachine.OnTransition(r.state.PublishTransition))
	monitor := safety.NewMonitor(p.MaxSafeTemp, safety.WithLogger(r.lg))
	adapter := sensor.NewAdapter(cfg.NTC, r.plant.Ports(), r.lg)

	r.engine, err = engine.New(cfg.Timing, adapter, r.plant, r.state, r.machine,
		cascade.New(p, monitor), engine.WithLogger(r.lg))
	if err != nil {
		return nil, err
	}
	r.tuning = tuning.New(r.state, r.machine,
		tuning.WithMonitor(monitor),
		tuning.WithLogger(r.lg),
		tuning.WithSamplePeriod(cfg.Timing.FastPeriod))
	return r, nil
}

func (r *Rig) Tuning() *tuning.Service { return r.tuning }
func (r *Rig) State() *shared.State    { return r.state }
func (r *Rig) Plant() *plant.Plant     { return r.plant }

// Run drives the engine and integrates the plant until ctx is done.
func (r *Rig) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.engine.Run(ctx) })
	g.Go(func() error {
		ticker := time.NewTicker(r.step)
		defer ticker.Stop()
		dt := r.step.Seconds() * r.scale
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				r.plant.Advance(dt)
			}
		}
	})
	return g.Wait()
}
