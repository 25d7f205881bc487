// Package tuning is the mutation surface used by remote callers: parameter
// setters, gain and table edits, forced modes and the status record. All
// edits are validated on a copy and published atomically, so a rejected
// request changes nothing.
package tuning

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/san-kum/ptcbox/internal/control"
	"github.com/san-kum/ptcbox/internal/safety"
	"github.com/san-kum/ptcbox/internal/shared"
	"github.com/san-kum/ptcbox/internal/statemachine"
	"github.com/san-kum/ptcbox/internal/thermo"
)

// Evaluator runs a PTC tracking evaluation and returns the mean absolute
// PTC error.
type Evaluator func(ctx context.Context, target float64, d time.Duration) (float64, error)

// Param names accepted by SetParam. Short aliases follow the text command
// set.
var paramAliases = map[string]string{
	"target":            "target",
	"hys":               "hysteresis",
	"hysteresis":        "hysteresis",
	"warmbias":          "warming_bias",
	"warming_bias":      "warming_bias",
	"heatbias":          "heating_bias",
	"heating_bias":      "heating_bias",
	"warmthr":           "warming_threshold",
	"warming_threshold": "warming_threshold",
	"idle":              "idle_band",
	"idle_band":         "idle_band",
	"fan_min":           "fan_min",
	"fan_max":           "fan_max",
	"fan_smooth_alpha":  "fan_smooth_alpha",
	"inactive_decay":    "inactive_decay",
}

type Service struct {
	state    *shared.State
	machine  *statemachine.Machine
	monitor  *safety.Monitor
	evaluate Evaluator
	period   time.Duration
	lg       *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithMonitor(m *safety.Monitor) Option { return func(s *Service) { s.monitor = m } }
func WithEvaluator(e Evaluator) Option     { return func(s *Service) { s.evaluate = e } }
func WithLogger(lg *slog.Logger) Option    { return func(s *Service) { s.lg = lg } }
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSamplePeriod sets how often a live evaluation samples the PTC, normally
// the fast cycle period.
func WithSamplePeriod(d time.Duration) Option {
	return func(s *Service) { s.period = d }
}

func New(state *shared.State, machine *statemachine.Machine, opts ...Option) *Service {
	s := &Service{state: state, machine: machine, period: 100 * time.Millisecond, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.lg == nil {
		s.lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

func (s *Service) Params() *thermo.Params { return s.state.Params() }

// SetParam sets one scalar of the tuning group by name.
func (s *Service) SetParam(name string, value float64) error {
	canon, ok := paramAliases[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("tuning: %q: %w", name, control.ErrUnknownParam)
	}
	_, err := s.state.UpdateParams(func(p *thermo.Params) error {
		switch canon {
		case "target":
			p.Target = value
		case "hysteresis":
			p.Hysteresis = value
		case "warming_bias":
			p.WarmingBias = value
		case "heating_bias":
			p.HeatingBias = value
		case "warming_threshold":
			p.WarmingThreshold = value
			p.WarmingFromTable = false
		case "idle_band":
			p.IdleBand = value
		case "fan_min":
			p.FanMin = value
		case "fan_max":
			p.FanMax = value
		case "fan_smooth_alpha":
			p.FanSmoothAlpha = value
		case "inactive_decay":
			p.InactiveDecay = value
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.lg.Info("param set", "name", canon, "value", value)
	return nil
}

func (s *Service) SetTarget(v float64) error      { return s.SetParam("target", v) }
func (s *Service) SetHysteresis(v float64) error  { return s.SetParam("hysteresis", v) }
func (s *Service) SetWarmingBias(v float64) error { return s.SetParam("warming_bias", v) }
func (s *Service) SetHeatingBias(v float64) error { return s.SetParam("heating_bias", v) }

// SetWarmingThreshold switches the threshold to a static value.
func (s *Service) SetWarmingThreshold(v float64) error {
	return s.SetParam("warming_threshold", v)
}

// UseWarmingTable switches the threshold back to the warming table.
func (s *Service) UseWarmingTable() error {
	_, err := s.state.UpdateParams(func(p *thermo.Params) error {
		p.WarmingFromTable = true
		return nil
	})
	return err
}

// SetGain sets kp, ki, kd, imax, out_min or out_max of one loop.
func (s *Service) SetGain(loop, name string, value float64) error {
	_, err := s.state.UpdateParams(func(p *thermo.Params) error {
		lp, err := p.Loop(strings.ToLower(loop))
		if err != nil {
			return fmt.Errorf("tuning: %q: %w", loop, err)
		}
		switch strings.ToLower(name) {
		case "kp":
			lp.Kp = value
		case "ki":
			lp.Ki = value
		case "kd":
			lp.Kd = value
		case "imax", "integral_limit":
			lp.IntegralLimit = value
		case "out_min", "min":
			lp.OutMin = value
		case "out_max", "max":
			lp.OutMax = value
		default:
			return fmt.Errorf("tuning: %s.%s: %w", loop, name, control.ErrUnknownParam)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.lg.Info("gain set", "loop", loop, "name", name, "value", value)
	return nil
}

// SetTableEntry overwrites y of the entry nearest x and returns its index.
func (s *Service) SetTableEntry(table string, x, y float64) (int, error) {
	idx := -1
	_, err := s.state.UpdateParams(func(p *thermo.Params) error {
		t, err := p.Table(strings.ToLower(table))
		if err != nil {
			return fmt.Errorf("tuning: %q: %w", table, err)
		}
		idx, err = t.Set(x, y)
		return err
	})
	if err != nil {
		return -1, err
	}
	s.lg.Info("table entry set", "table", table, "index", idx, "x", x, "y", y)
	return idx, nil
}

// MoveTableEntry overwrites both x and y of the entry nearest x.
func (s *Service) MoveTableEntry(table string, x, newX, y float64) (int, error) {
	idx := -1
	_, err := s.state.UpdateParams(func(p *thermo.Params) error {
		t, err := p.Table(strings.ToLower(table))
		if err != nil {
			return fmt.Errorf("tuning: %q: %w", table, err)
		}
		idx, err = t.Move(x, newX, y)
		return err
	})
	if err != nil {
		return -1, err
	}
	s.lg.Info("table entry moved", "table", table, "index", idx, "x", newX, "y", y)
	return idx, nil
}

// ForceMode pins the mode. The transition is published through the state
// machine, and the fast task performs the safe stop and resets every loop.
func (s *Service) ForceMode(mode thermo.Mode) error {
	_, _, err := s.machine.Force(mode, s.now())
	return err
}

func (s *Service) ReleaseMode() { s.machine.Release() }

// Evaluate runs the configured evaluator, or a live evaluation against the
// running engine when none is set.
func (s *Service) Evaluate(ctx context.Context, target float64, d time.Duration) (float64, error) {
	if s.evaluate != nil {
		return s.evaluate(ctx, target, d)
	}
	return s.EvaluatePTC(ctx, target, d)
}
