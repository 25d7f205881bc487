package metrics

// Energy integrates heater power, reported in watt-hours.
type Energy struct {
	joules float64
}

func NewEnergy() *Energy { return &Energy{} }

func (e *Energy) Name() string { return "energy_wh" }

func (e *Energy) Observe(s Sample) { e.joules += s.Power * s.Dt }

func (e *Energy) Value() float64 { return e.joules / 3600 }

func (e *Energy) Reset() { e.joules = 0 }
