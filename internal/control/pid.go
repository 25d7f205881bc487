package control

import (
	"fmt"
	"math"
)

type Gains struct {
	Kp float64 `yaml:"kp" json:"kp"`
	Ki float64 `yaml:"ki" json:"ki"`
	Kd float64 `yaml:"kd" json:"kd"`
}

type PID struct {
	Gains
	OutMin        float64
	OutMax        float64
	IntegralLimit float64

	integral float64
	prevErr  float64
	first    bool
}

// Snapshot is a read-only copy of a PID's gains and internals.
type Snapshot struct {
	Gains
	Integral      float64 `json:"integral"`
	PrevError     float64 `json:"prev_error"`
	OutMin        float64 `json:"out_min"`
	OutMax        float64 `json:"out_max"`
	IntegralLimit float64 `json:"integral_limit"`
}

func NewPID(g Gains, outMin, outMax, integralLimit float64) *PID {
	return &PID{
		Gains:         g,
		OutMin:        outMin,
		OutMax:        outMax,
		IntegralLimit: math.Abs(integralLimit),
		first:         true,
	}
}

// Update advances the loop by dt seconds and returns the clamped output.
// ff is added before clamping. The first sample after a reset carries no
// derivative term.
func (p *PID) Update(err, dt, ff float64) float64 {
	if dt <= 0 {
		return p.clamp(p.Kp*err + p.Ki*p.integral + ff)
	}

	// A non-finite error leaves the loop state untouched and drives the
	// output to OutMin.
	if math.IsNaN(err) || math.IsInf(err, 0) {
		return p.OutMin
	}

	p.integral += err * dt
	p.integral = clamp(p.integral, -p.IntegralLimit, p.IntegralLimit)

	derivative := 0.0
	if !p.first {
		derivative = (err - p.prevErr) / dt
	}
	p.first = false
	p.prevErr = err

	return p.clamp(p.Kp*err + p.Ki*p.integral + p.Kd*derivative + ff)
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.first = true
}

// Decay scales the integral by f, for loops that are idle but should not
// snap to zero on reactivation. f outside (0,1) is ignored.
func (p *PID) Decay(f float64) {
	if f > 0 && f < 1 {
		p.integral *= f
	}
}

func (p *PID) Integral() float64  { return p.integral }
func (p *PID) PrevError() float64 { return p.prevErr }

func (p *PID) SetGains(g Gains) { p.Gains = g }

// SetIntegralLimit re-clamps the accumulator to the new band.
func (p *PID) SetIntegralLimit(limit float64) {
	p.IntegralLimit = math.Abs(limit)
	p.integral = clamp(p.integral, -p.IntegralLimit, p.IntegralLimit)
}

func (p *PID) Snapshot() Snapshot {
	return Snapshot{
		Gains:         p.Gains,
		Integral:      p.integral,
		PrevError:     p.prevErr,
		OutMin:        p.OutMin,
		OutMax:        p.OutMax,
		IntegralLimit: p.IntegralLimit,
	}
}

// Params returns tunable parameters for live adjustment
func (p *PID) Params() map[string]float64 {
	return map[string]float64{
		"kp":   p.Kp,
		"ki":   p.Ki,
		"kd":   p.Kd,
		"imax": p.IntegralLimit,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return fmt.Errorf("control: %s=%v: %w", name, value, ErrBadGain)
	}
	switch name {
	case "kp":
		p.Kp = value
	case "ki":
		p.Ki = value
	case "kd":
		p.Kd = value
	case "imax":
		p.SetIntegralLimit(value)
	default:
		return fmt.Errorf("control: %q: %w", name, ErrUnknownParam)
	}
	return nil
}

func (p *PID) clamp(v float64) float64 {
	return clamp(v, p.OutMin, p.OutMax)
}

// clamp maps NaN to lo so a poisoned input never escapes the bounds.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
