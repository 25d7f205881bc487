package metrics

import (
	"math"

	"github.com/san-kum/ptcbox/internal/safety"
	"github.com/san-kum/ptcbox/internal/thermo"
)

// IAE is the integral of absolute box temperature error, in °C·s.
type IAE struct{ sum float64 }

func NewIAE() *IAE { return &IAE{} }

func (m *IAE) Name() string     { return "iae" }
func (m *IAE) Observe(s Sample) { m.sum += math.Abs(s.Target-s.Box) * s.Dt }
func (m *IAE) Value() float64   { return m.sum }
func (m *IAE) Reset()           { m.sum = 0 }

// PTCTracking is the mean absolute inner-loop error over cycles in which
// the cascade was running.
type PTCTracking struct {
	sum float64
	n   int
}

func NewPTCTracking() *PTCTracking { return &PTCTracking{} }

func (m *PTCTracking) Name() string { return "ptc_mae" }

func (m *PTCTracking) Observe(s Sample) {
	if s.Out.Mode != thermo.Heating && s.Out.Mode != thermo.Warming {
		return
	}
	if s.Out.Safety != safety.OK {
		return
	}
	m.sum += math.Abs(s.PTC - s.Out.DesiredPTC)
	m.n++
}

func (m *PTCTracking) Value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

func (m *PTCTracking) Reset() { m.sum, m.n = 0, 0 }

// Overshoot is the largest excursion above target once the box has
// reached it.
type Overshoot struct {
	reached bool
	max     float64
}

func NewOvershoot() *Overshoot { return &Overshoot{} }

func (m *Overshoot) Name() string { return "overshoot" }

func (m *Overshoot) Observe(s Sample) {
	if s.Box >= s.Target {
		m.reached = true
	}
	if m.reached {
		m.max = math.Max(m.max, s.Box-s.Target)
	}
}

func (m *Overshoot) Value() float64 { return m.max }
func (m *Overshoot) Reset()         { m.reached, m.max = false, 0 }

// OverheatCycles counts cycles in which the interlock forced the heater off.
type OverheatCycles struct{ n int }

func NewOverheatCycles() *OverheatCycles { return &OverheatCycles{} }

func (m *OverheatCycles) Name() string { return "overheat_cycles" }
func (m *OverheatCycles) Observe(s Sample) {
	if s.Out.Safety != safety.OK {
		m.n++
	}
}
func (m *OverheatCycles) Value() float64 { return float64(m.n) }
func (m *OverheatCycles) Reset()         { m.n = 0 }

// ModeSwitches counts mode changes seen by the fast task.
type ModeSwitches struct {
	n    int
	last thermo.Mode
	seen bool
}

func NewModeSwitches() *ModeSwitches { return &ModeSwitches{} }

func (m *ModeSwitches) Name() string { return "mode_switches" }

func (m *ModeSwitches) Observe(s Sample) {
	if m.seen && s.Out.Mode != m.last {
		m.n++
	}
	m.last, m.seen = s.Out.Mode, true
}

func (m *ModeSwitches) Value() float64 { return float64(m.n) }
func (m *ModeSwitches) Reset()         { m.n, m.seen = 0, false }
