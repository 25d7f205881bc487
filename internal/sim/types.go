package sim

import (
	"time"

	"github.com/san-kum/ptcbox/internal/engine"
	"github.com/san-kum/ptcbox/internal/metrics"
	"github.com/san-kum/ptcbox/internal/plant"
	"github.com/san-kum/ptcbox/internal/safety"
	"github.com/san-kum/ptcbox/internal/sensor"
	"github.com/san-kum/ptcbox/internal/statemachine"
	"github.com/san-kum/ptcbox/internal/thermo"
)

// SetPoint changes the target at a given offset into the run.
type SetPoint struct {
	At     time.Duration `yaml:"at" json:"at"`
	Target float64       `yaml:"target" json:"target"`
}

type Config struct {
	Params   *thermo.Params
	Model    plant.Model
	NTC      sensor.NTC
	Timing   engine.Timing
	Duration time.Duration
	Seed     int64

	// InitialBox and InitialPTC default to the model ambient when nil.
	InitialBox *float64
	InitialPTC *float64
	Schedule   []SetPoint
	// Record is the trace sampling interval; zero records every slow period.
	Record time.Duration
}

// Point is one recorded trace row.
type Point struct {
	T          float64     `json:"t"`
	Box        float64     `json:"box"`
	PTC        float64     `json:"ptc"`
	Target     float64     `json:"target"`
	DesiredPTC float64     `json:"desired_ptc"`
	Duty       float64     `json:"duty"`
	Heater     float64     `json:"heater"`
	Fan        float64     `json:"fan"`
	Power      float64     `json:"power"`
	Humidity   float64     `json:"humidity"`
	Mode       thermo.Mode `json:"mode"`
	Safety     safety.Kind `json:"safety"`
}

type Result struct {
	Points      []Point                   `json:"points"`
	Metrics     map[string]float64        `json:"metrics"`
	Transitions []statemachine.Transition `json:"transitions"`
	Trips       uint64                    `json:"trips"`
	Steps       int                       `json:"steps"`
}

// Observer sees every fast cycle.
type Observer interface {
	OnSample(s metrics.Sample)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s metrics.Sample)

func (f ObserverFunc) OnSample(s metrics.Sample) { f(s) }
