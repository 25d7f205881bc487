package cascade

import (
	"math"
	"time"

	"github.com/san-kum/ptcbox/internal/control"
	"github.com/san-kum/ptcbox/internal/safety"
	"github.com/san-kum/ptcbox/internal/thermo"
)

// Inputs is everything one fast cycle reads.
type Inputs struct {
	Mode   thermo.Mode
	Box    float64
	PTC    float64
	Params *thermo.Params
	Dt     float64
	Now    time.Time
}

// Output is the result of one fast cycle. Duty is what goes to the shared
// PWM line; Direction selects heater or fan.
type Output struct {
	Mode        thermo.Mode      `json:"mode"`
	Direction   thermo.Direction `json:"direction"`
	Duty        float64          `json:"duty"`
	Heater      float64          `json:"heater"`
	Fan         float64          `json:"fan"`
	DesiredPTC  float64          `json:"desired_ptc"`
	Feedforward float64          `json:"feedforward"`
	OuterOut    float64          `json:"outer_out"`
	InnerOut    float64          `json:"inner_out"`
	DynamicBias float64          `json:"dynamic_bias"`
	Safety      safety.Kind      `json:"safety"`
}

// Loops is a snapshot of all loop internals.
type Loops struct {
	Outer control.Snapshot `json:"outer"`
	Inner control.Snapshot `json:"inner"`
	Cool  control.Snapshot `json:"cool"`
	Fan   float64          `json:"fan_filtered"`
}

type Controller struct {
	outer   *control.PID
	inner   *control.PID
	cool    *control.PID
	fan     *control.LowPass
	monitor *safety.Monitor
	last    Output
}

func New(p *thermo.Params, monitor *safety.Monitor) *Controller {
	if monitor == nil {
		monitor = safety.NewMonitor(p.MaxSafeTemp)
	}
	c := &Controller{
		outer:   control.NewPID(p.Outer.Gains, p.Outer.OutMin, p.Outer.OutMax, p.Outer.IntegralLimit),
		inner:   control.NewPID(p.Inner.Gains, p.Inner.OutMin, p.Inner.OutMax, p.Inner.IntegralLimit),
		cool:    control.NewPID(p.Cool.Gains, p.Cool.OutMin, p.Cool.OutMax, p.Cool.IntegralLimit),
		fan:     control.NewLowPass(p.FanSmoothAlpha),
		monitor: monitor,
	}
	c.apply(p)
	return c
}

// Step runs one fast cycle.
func (c *Controller) Step(in Inputs) Output {
	c.apply(in.Params)
	r := c.regimeFor(in.Mode)

	for _, pid := range c.all() {
		if !r.owns(pid) {
			pid.Decay(in.Params.InactiveDecay)
		}
	}

	verdict := c.monitor.Check(in.PTC, in.Now)
	out := r.step(in, verdict)
	out.Mode = in.Mode
	out.Direction = in.Mode.Direction()
	out.Safety = verdict.Kind
	if verdict.Tripped() {
		out.Heater = 0
	}
	if out.Direction == thermo.Heat {
		out.Duty = out.Heater
	} else {
		out.Duty = out.Fan
	}
	c.last = out
	return out
}

// ResetFor clears the loops owned by mode.
func (c *Controller) ResetFor(mode thermo.Mode) {
	switch mode {
	case thermo.Heating, thermo.Warming:
		c.outer.Reset()
		c.inner.Reset()
	case thermo.Cooling:
		c.cool.Reset()
		c.fan.Reset(0)
	}
}

func (c *Controller) ResetAll() {
	for _, pid := range c.all() {
		pid.Reset()
	}
	c.fan.Reset(0)
}

func (c *Controller) Last() Output { return c.last }

func (c *Controller) Loops() Loops {
	return Loops{
		Outer: c.outer.Snapshot(),
		Inner: c.inner.Snapshot(),
		Cool:  c.cool.Snapshot(),
		Fan:   c.fan.Value(),
	}
}

func (c *Controller) Monitor() *safety.Monitor { return c.monitor }

func (c *Controller) all() []*control.PID {
	return []*control.PID{c.outer, c.inner, c.cool}
}

// apply copies the tuning snapshot onto the loops. The cooling loop is PI
// only.
func (c *Controller) apply(p *thermo.Params) {
	set := func(pid *control.PID, lp thermo.LoopParams) {
		pid.SetGains(lp.Gains)
		pid.OutMin, pid.OutMax = lp.OutMin, lp.OutMax
		if pid.IntegralLimit != lp.IntegralLimit {
			pid.SetIntegralLimit(lp.IntegralLimit)
		}
	}
	set(c.outer, p.Outer)
	set(c.inner, p.Inner)
	set(c.cool, p.Cool)
	c.cool.Kd = 0
	c.fan.Alpha = p.FanSmoothAlpha
}

// DynamicBias interpolates between the warming and heating bias by how far
// the box sits outside the hysteresis band: the ratio
// |outerErr + hysteresis| / (2*hysteresis), clamped to [0, 1].
func DynamicBias(outerErr, hysteresis, warmingBias, heatingBias float64) float64 {
	var ratio float64
	if hysteresis > 0 {
		ratio = math.Abs(outerErr+hysteresis) / (2 * hysteresis)
	} else if outerErr > 0 {
		ratio = 1
	}
	ratio = math.Max(0, math.Min(1, ratio))
	return warmingBias + ratio*(heatingBias-warmingBias)
}
