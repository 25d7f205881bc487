package cascade

import (
	"math"

	"github.com/san-kum/ptcbox/internal/control"
	"github.com/san-kum/ptcbox/internal/safety"
	"github.com/san-kum/ptcbox/internal/thermo"
)

// regime is the mode-specific part of a fast cycle.
type regime interface {
	owns(pid *control.PID) bool
	step(in Inputs, v safety.Verdict) Output
}

// heatRegime serves HEATING and WARMING: the same cascade, with the
// dynamic bias deciding how hard the PTC is pushed.
type heatRegime struct {
	outer, inner *control.PID
}

type coolRegime struct {
	pid    *control.PID
	filter *control.LowPass
}

type idleRegime struct{}

func (c *Controller) regimeFor(m thermo.Mode) regime {
	switch m {
	case thermo.Heating, thermo.Warming:
		return heatRegime{outer: c.outer, inner: c.inner}
	case thermo.Cooling:
		return coolRegime{pid: c.cool, filter: c.fan}
	default:
		return idleRegime{}
	}
}

func (r heatRegime) owns(pid *control.PID) bool {
	return pid == r.outer || pid == r.inner
}

func (r heatRegime) step(in Inputs, v safety.Verdict) Output {
	p := in.Params
	outerErr := p.Target - in.Box
	dyn := DynamicBias(outerErr, p.Hysteresis, p.WarmingBias, p.HeatingBias)

	// The loops are frozen while the interlock holds the heater off so no
	// sentinel or overheat error reaches the integrators.
	if v.Tripped() {
		return Output{DynamicBias: dyn}
	}

	outerOut := r.outer.Update(outerErr, in.Dt, 0)
	desired := p.Target + p.Bias.Lookup(p.Target) + outerOut
	desired = math.Min(desired, p.Target+dyn)
	desired = math.Max(desired, p.Target+p.WarmingBias)
	desired = math.Min(desired, p.MaxSafeTemp)

	ff := p.Duty.Lookup(desired)
	duty := r.inner.Update(desired-in.PTC, in.Dt, ff)

	return Output{
		Heater:      duty,
		DesiredPTC:  desired,
		Feedforward: ff,
		OuterOut:    outerOut,
		InnerOut:    duty - ff,
		DynamicBias: dyn,
	}
}

func (r coolRegime) owns(pid *control.PID) bool { return pid == r.pid }

func (r coolRegime) step(in Inputs, _ safety.Verdict) Output {
	p := in.Params
	raw := r.pid.Update(in.Box-p.Target, in.Dt, 0)
	smoothed := r.filter.Step(raw)
	fan := math.Max(p.FanMin, math.Min(p.FanMax, smoothed))
	return Output{Fan: fan}
}

func (idleRegime) owns(*control.PID) bool { return false }

func (idleRegime) step(Inputs, safety.Verdict) Output { return Output{} }
