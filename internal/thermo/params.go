package thermo

import (
	"math"

	"github.com/san-kum/ptcbox/internal/control"
	"github.com/san-kum/ptcbox/internal/feedforward"
)

const (
	LoopOuter = "outer"
	LoopInner = "inner"
	LoopCool  = "cool"
)

// LoopParams configures one PID loop.
type LoopParams struct {
	control.Gains `yaml:",inline"`
	OutMin        float64 `yaml:"out_min" json:"out_min"`
	OutMax        float64 `yaml:"out_max" json:"out_max"`
	IntegralLimit float64 `yaml:"integral_limit" json:"integral_limit"`
}

// Params is the tuning group read by the state machine and the cascade.
type Params struct {
	Target           float64
	Hysteresis       float64
	WarmingBias      float64
	HeatingBias      float64
	WarmingThreshold float64
	WarmingFromTable bool
	IdleBand         float64

	FanMin         float64
	FanMax         float64
	FanSmoothAlpha float64
	InactiveDecay  float64
	MaxSafeTemp    float64

	Outer LoopParams
	Inner LoopParams
	Cool  LoopParams

	Duty    *feedforward.Table
	Bias    *feedforward.Table
	Warming *feedforward.Table
}

func DefaultParams() *Params {
	return &Params{
		Target:           40,
		Hysteresis:       2,
		WarmingBias:      10,
		HeatingBias:      25,
		WarmingThreshold: 3,
		WarmingFromTable: true,
		FanMin:           0,
		FanMax:           0.63,
		FanSmoothAlpha:   0.3,
		InactiveDecay:    0.98,
		MaxSafeTemp:      120,
		Outer: LoopParams{
			Gains:         control.Gains{Kp: 1.5, Ki: 0.02, Kd: 0},
			OutMin:        -20,
			OutMax:        20,
			IntegralLimit: 200,
		},
		Inner: LoopParams{
			Gains:         control.Gains{Kp: 0.03, Ki: 0.01, Kd: 0.01},
			OutMin:        0,
			OutMax:        1,
			IntegralLimit: 50,
		},
		Cool: LoopParams{
			Gains:         control.Gains{Kp: 0.1, Ki: 0.005},
			OutMin:        0,
			OutMax:        1,
			IntegralLimit: 50,
		},
		Duty:    feedforward.DefaultDuty(),
		Bias:    feedforward.DefaultBias(),
		Warming: feedforward.DefaultWarming(),
	}
}

// Clone returns a deep copy, tables included.
func (p *Params) Clone() *Params {
	c := *p
	if p.Duty != nil {
		c.Duty = p.Duty.Clone()
	}
	if p.Bias != nil {
		c.Bias = p.Bias.Clone()
	}
	if p.Warming != nil {
		c.Warming = p.Warming.Clone()
	}
	return &c
}

// Loop returns a pointer to the named loop's parameters.
func (p *Params) Loop(name string) (*LoopParams, error) {
	switch name {
	case LoopOuter:
		return &p.Outer, nil
	case LoopInner, "heat":
		return &p.Inner, nil
	case LoopCool:
		return &p.Cool, nil
	}
	return nil, ErrUnknownLoop
}

// Table returns the named feedforward table.
func (p *Params) Table(name string) (*feedforward.Table, error) {
	switch name {
	case feedforward.DutyTable, "ptc", "0":
		return p.Duty, nil
	case feedforward.BiasTable, "2":
		return p.Bias, nil
	case feedforward.WarmingTable, "warmt", "1":
		return p.Warming, nil
	}
	return nil, ErrUnknownTable
}

// EffectiveWarmingThreshold is the static threshold or the table value at
// the current target.
func (p *Params) EffectiveWarmingThreshold() float64 {
	if p.WarmingFromTable && p.Warming != nil && p.Warming.Len() > 0 {
		return p.Warming.Lookup(p.Target)
	}
	return p.WarmingThreshold
}

func (p *Params) Validate() error {
	checks := []struct {
		name   string
		v      float64
		ok     bool
		reason string
	}{
		{"max_safe_temp", p.MaxSafeTemp, p.MaxSafeTemp > 0, "must be positive"},
		{"target", p.Target, p.Target >= 0 && p.Target < p.MaxSafeTemp, "must be within [0, max_safe_temp)"},
		{"hysteresis", p.Hysteresis, p.Hysteresis > 0, "must be positive"},
		{"warming_bias", p.WarmingBias, p.WarmingBias >= 0, "must not be negative"},
		{"heating_bias", p.HeatingBias, p.HeatingBias >= p.WarmingBias, "must be at least warming_bias"},
		{"idle_band", p.IdleBand, p.IdleBand >= 0 && p.IdleBand < p.Hysteresis, "must be within [0, hysteresis)"},
		{"fan_min", p.FanMin, p.FanMin >= 0 && p.FanMin <= 1, "must be within [0, 1]"},
		{"fan_max", p.FanMax, p.FanMax >= p.FanMin && p.FanMax <= 1, "must be within [fan_min, 1]"},
		{"fan_smooth_alpha", p.FanSmoothAlpha, p.FanSmoothAlpha > 0 && p.FanSmoothAlpha <= 1, "must be within (0, 1]"},
		{"inactive_decay", p.InactiveDecay, p.InactiveDecay > 0 && p.InactiveDecay <= 1, "must be within (0, 1]"},
		{"warming_threshold", p.WarmingThreshold, true, ""},
	}
	for _, c := range checks {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return &ParamError{Name: c.name, Value: c.v, Reason: "must be finite"}
		}
		if !c.ok {
			return &ParamError{Name: c.name, Value: c.v, Reason: c.reason}
		}
	}

	loops := []struct {
		name     string
		lp       LoopParams
		unitDuty bool
	}{
		{LoopOuter, p.Outer, false},
		{LoopInner, p.Inner, true},
		{LoopCool, p.Cool, true},
	}
	for _, l := range loops {
		if err := l.lp.validate(l.name, l.unitDuty); err != nil {
			return err
		}
	}

	for _, t := range []*feedforward.Table{p.Duty, p.Bias, p.Warming} {
		if t == nil || t.Len() == 0 {
			return &ParamError{Name: "table", Reason: "missing or empty"}
		}
		if !t.Finite() {
			return &ParamError{Name: t.Name(), Reason: "entries must be finite"}
		}
		if !t.Sorted() {
			return &ParamError{Name: t.Name(), Reason: "x must be strictly increasing"}
		}
	}
	return nil
}

func (l LoopParams) validate(name string, unitDuty bool) error {
	vals := map[string]float64{
		"kp": l.Kp, "ki": l.Ki, "kd": l.Kd,
		"out_min": l.OutMin, "out_max": l.OutMax, "integral_limit": l.IntegralLimit,
	}
	for k, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ParamError{Name: name + "." + k, Value: v, Reason: "must be finite"}
		}
	}
	for _, k := range []string{"kp", "ki", "kd", "integral_limit"} {
		if vals[k] < 0 {
			return &ParamError{Name: name + "." + k, Value: vals[k], Reason: "must not be negative"}
		}
	}
	if l.OutMin > l.OutMax {
		return &ParamError{Name: name + ".out_min", Value: l.OutMin, Reason: "must not exceed out_max"}
	}
	if unitDuty && (l.OutMin < 0 || l.OutMax > 1) {
		return &ParamError{Name: name + ".out_max", Value: l.OutMax, Reason: "duty bounds must lie within [0, 1]"}
	}
	return nil
}
