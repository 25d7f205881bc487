// Package statemachine decides the control mode from the box temperature.
// Evaluation is level-triggered: every slow cycle recomputes the mode from
// the current reading alone, using strict comparisons so a reading that sits
// exactly on a boundary keeps the warm-hold mode.
package statemachine

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/san-kum/ptcbox/internal/thermo"
)

// Transition describes a mode change. Forced transitions come from the
// tuning surface and reset every controller instead of only the entered
// mode's.
type Transition struct {
	From   thermo.Mode `json:"from"`
	To     thermo.Mode `json:"to"`
	Box    float64     `json:"box"`
	Forced bool        `json:"forced"`
	At     time.Time   `json:"at"`
}

// Bounds are the thresholds derived from a parameter snapshot.
type Bounds struct {
	Heat float64 // below: HEATING
	Cool float64 // above: COOLING
	Idle float64 // |box-target| below: IDLE, 0 disables
}

func BoundsFor(p *thermo.Params) Bounds {
	return Bounds{
		Heat: p.Target - p.Hysteresis - p.EffectiveWarmingThreshold(),
		Cool: p.Target + p.Hysteresis,
		Idle: p.IdleBand,
	}
}

// Evaluate returns the mode for a box reading.
func Evaluate(box float64, p *thermo.Params) thermo.Mode {
	b := BoundsFor(p)
	switch {
	case box < b.Heat:
		return thermo.Heating
	case box > b.Cool:
		return thermo.Cooling
	case b.Idle > 0 && math.Abs(box-p.Target) < b.Idle:
		return thermo.Idle
	default:
		return thermo.Warming
	}
}

// Machine holds the current mode. Step is called by the slow task; Force
// and Release may be called from any goroutine.
type Machine struct {
	mu     sync.Mutex
	mode   thermo.Mode
	forced bool
	lg     *slog.Logger
	notify func(Transition)
}

type Option func(*Machine)

// OnTransition registers fn, called with the machine lock held after every
// mode change.
func OnTransition(fn func(Transition)) Option {
	return func(m *Machine) { m.notify = fn }
}

func WithLogger(lg *slog.Logger) Option {
	return func(m *Machine) { m.lg = lg }
}

func New(initial thermo.Mode, opts ...Option) *Machine {
	m := &Machine{mode: initial}
	for _, o := range opts {
		o(m)
	}
	if m.lg == nil {
		m.lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m
}

func (m *Machine) Mode() thermo.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Machine) Forced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forced
}

// Step evaluates one box reading. A failed read (ok false) or a forced mode
// leaves the mode alone.
func (m *Machine) Step(box float64, ok bool, p *thermo.Params, now time.Time) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !ok || m.forced {
		return Transition{}, false
	}
	next := Evaluate(box, p)
	if next == m.mode {
		return Transition{}, false
	}
	return m.switchTo(next, box, false, now), true
}

// Force pins the mode until Release. Forcing the current mode pins it
// without a transition.
func (m *Machine) Force(mode thermo.Mode, now time.Time) (Transition, bool, error) {
	if !mode.Valid() {
		return Transition{}, false, thermo.ErrUnknownMode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced = true
	if mode == m.mode {
		m.lg.Info("mode pinned", "mode", mode.String())
		return Transition{}, false, nil
	}
	return m.switchTo(mode, math.NaN(), true, now), true, nil
}

// Restart pins mode like Force but always emits a forced transition, even
// when mode is already active, so every loop starts from a clean state.
func (m *Machine) Restart(mode thermo.Mode, now time.Time) (Transition, error) {
	if !mode.Valid() {
		return Transition{}, thermo.ErrUnknownMode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced = true
	return m.switchTo(mode, math.NaN(), true, now), nil
}

// Release hands the mode back to automatic evaluation on the next Step.
func (m *Machine) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced {
		m.lg.Info("mode released", "mode", m.mode.String())
	}
	m.forced = false
}

func (m *Machine) switchTo(next thermo.Mode, box float64, forced bool, now time.Time) Transition {
	tr := Transition{From: m.mode, To: next, Box: box, Forced: forced, At: now}
	m.mode = next
	m.lg.Info("mode changed", "from", tr.From.String(), "to", tr.To.String(), "box", box, "forced", forced)
	if m.notify != nil {
		m.notify(tr)
	}
	return tr
}
