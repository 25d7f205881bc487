// Package sim closes the loop between the control engine and the simulated
// plant in virtual time, so hours of operation run in milliseconds.
package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/san-kum/ptcbox/internal/cascade"
	"github.com/san-kum/ptcbox/internal/engine"
	"github.com/san-kum/ptcbox/internal/metrics"
	"github.com/san-kum/ptcbox/internal/plant"
	"github.com/san-kum/ptcbox/internal/safety"
	"github.com/san-kum/ptcbox/internal/sensor"
	"github.com/san-kum/ptcbox/internal/shared"
	"github.com/san-kum/ptcbox/internal/statemachine"
	"github.com/san-kum/ptcbox/internal/tuning"
)

// epoch is the virtual wall clock origin.
var epoch = time.Unix(0, 0).UTC()

type Simulator struct {
	cfg     Config
	plant   *plant.Plant
	state   *shared.State
	machine *statemachine.Machine
	monitor *safety.Monitor
	engine  *engine.Engine
	tuning  *tuning.Service
	lg      *slog.Logger

	metrics     []metrics.Metric
	observers   []Observer
	transitions []statemachine.Transition
	schedule    []SetPoint
	elapsed     time.Duration
	nextSlow    time.Duration
}

func New(cfg Config, lg *slog.Logger) (*Simulator, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if lg == nil {
		lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Simulator{cfg: cfg, lg: lg}
	s.schedule = append([]SetPoint(nil), cfg.Schedule...)
	sort.Slice(s.schedule, func(i, j int) bool { return s.schedule[i].At < s.schedule[j].At })

	s.plant = plant.New(cfg.Model, cfg.NTC, cfg.Seed)
	box, ptc := cfg.Model.Ambient, cfg.Model.Ambient
	if cfg.InitialBox != nil {
		box = *cfg.InitialBox
	}
	if cfg.InitialPTC != nil {
		ptc = *cfg.InitialPTC
	}
	s.plant.Reset(box, ptc)

	initial := statemachine.Evaluate(box, cfg.Params)
	s.state = shared.New(cfg.Params, initial)
	s.state.SetBox(box)
	s.state.SetPTC(ptc)
	s.machine = statemachine.New(initial,
		statemachine.WithLogger(lg),
		statemachine.OnTransition(func(tr statemachine.Transition) {
			s.state.PublishTransition(tr)
			s.transitions = append(s.transitions, tr)
		}))
	s.monitor = safety.NewMonitor(cfg.Params.MaxSafeTemp, safety.WithLogger(lg))
	ctrl := cascade.New(cfg.Params, s.monitor)

	adapter := sensor.NewAdapter(cfg.NTC, s.plant.Ports(), lg)
	eng, err := engine.New(cfg.Timing, adapter, s.plant, s.state, s.machine, ctrl,
		engine.WithLogger(lg),
		engine.WithPause(func(time.Duration) {}))
	if err != nil {
		return nil, err
	}
	s.engine = eng
	s.tuning = tuning.New(s.state, s.machine,
		tuning.WithMonitor(s.monitor),
		tuning.WithLogger(lg),
		tuning.WithClock(s.now),
		tuning.WithSamplePeriod(cfg.Timing.FastPeriod))
	return s, nil
}

func validateConfig(cfg Config) error {
	if cfg.Params == nil {
		return fmt.Errorf("sim: params required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return fmt.Errorf("sim: %w", err)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("sim: duration must be positive, got %v", cfg.Duration)
	}
	return cfg.Timing.Validate()
}

func (s *Simulator) now() time.Time { return epoch.Add(s.elapsed) }

func (s *Simulator) AddMetric(m metrics.Metric) { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)     { s.observers = append(s.observers, o) }

// AddStandardMetrics registers metrics.Standard for the configured
// hysteresis band.
func (s *Simulator) AddStandardMetrics() {
	for _, m := range metrics.Standard(s.cfg.Params.Hysteresis) {
		s.AddMetric(m)
	}
}

// Tuning exposes the tuning surface, for forcing modes or editing params
// before or during a run.
func (s *Simulator) Tuning() *tuning.Service { return s.tuning }
func (s *Simulator) Plant() *plant.Plant     { return s.plant }
func (s *Simulator) State() *shared.State    { return s.state }

func (s *Simulator) Elapsed() time.Duration { return s.elapsed }

// Step runs one fast cycle: pending setpoints, the slow task when due, the
// fast task, then advances the plant by one fast period.
func (s *Simulator) Step() (metrics.Sample, error) {
	t := s.cfg.Timing
	for len(s.schedule) > 0 && s.schedule[0].At <= s.elapsed {
		sp := s.schedule[0]
		s.schedule = s.schedule[1:]
		if err := s.tuning.SetTarget(sp.Target); err != nil {
			return metrics.Sample{}, fmt.Errorf("sim: setpoint at %v: %w", sp.At, err)
		}
	}

	now := s.now()
	if s.elapsed >= s.nextSlow {
		s.engine.SlowStep(now)
		s.nextSlow += t.SlowPeriod
	}
	out := s.engine.FastStep(now)

	sample := metrics.Sample{
		T:      s.elapsed.Seconds(),
		Dt:     t.FastPeriod.Seconds(),
		Box:    s.plant.Box(),
		PTC:    s.plant.PTC(),
		Target: s.state.Params().Target,
		Power:  s.plant.Power(),
		Out:    out,
	}
	for _, m := range s.metrics {
		m.Observe(sample)
	}
	for _, o := range s.observers {
		o.OnSample(sample)
	}

	s.plant.Advance(t.FastPeriod.Seconds())
	s.elapsed += t.FastPeriod
	return sample, nil
}

// Run advances the closed loop for the configured duration.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	record := s.cfg.Record
	if record <= 0 {
		record = s.cfg.Timing.SlowPeriod
	}
	steps := int(s.cfg.Duration / s.cfg.Timing.FastPeriod)

	result := &Result{
		Points:  make([]Point, 0, int(s.cfg.Duration/record)+1),
		Metrics: make(map[string]float64),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	var nextRecord time.Duration
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		at := s.elapsed
		sample, err := s.Step()
		if err != nil {
			return result, err
		}
		if at >= nextRecord {
			result.Points = append(result.Points, point(sample, s.state.Readings().Humidity))
			nextRecord += record
		}
		result.Steps++
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.Transitions = s.transitions
	result.Trips = s.monitor.Trips()
	s.lg.Debug("simulation finished", "steps", result.Steps, "transitions", len(result.Transitions))
	return result, nil
}

// Transitions returns the mode changes seen so far.
func (s *Simulator) Transitions() []statemachine.Transition {
	return append([]statemachine.Transition(nil), s.transitions...)
}

func point(s metrics.Sample, humidity float64) Point {
	return Point{
		T:          s.T,
		Box:        s.Box,
		PTC:        s.PTC,
		Target:     s.Target,
		DesiredPTC: s.Out.DesiredPTC,
		Duty:       s.Out.Duty,
		Heater:     s.Out.Heater,
		Fan:        s.Out.Fan,
		Power:      s.Power,
		Humidity:   humidity,
		Mode:       s.Out.Mode,
		Safety:     s.Out.Safety,
	}
}
