// Package metrics scores closed-loop runs. Each metric sees one Sample per
// fast control cycle.
package metrics

import (
	"github.com/san-kum/ptcbox/internal/cascade"
)

// Sample is one fast cycle as seen by the metrics.
type Sample struct {
	T      float64
	Dt     float64
	Box    float64
	PTC    float64
	Target float64
	Power  float64 // W drawn by the heater
	Out    cascade.Output
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Standard returns the metric set recorded for every run.
func Standard(hysteresis float64) []Metric {
	return []Metric{
		NewIAE(),
		NewPTCTracking(),
		NewControlEffort(),
		NewEnergy(),
		NewStability(hysteresis),
		NewOvershoot(),
		NewOverheatCycles(),
		NewModeSwitches(),
	}
}
