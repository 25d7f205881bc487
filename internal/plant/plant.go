// Package plant simulates the enclosure: a PTC element with a self-limiting
// power curve heating the box air, a fan pulling in ambient air, and the
// sensor and actuator ports a real board would expose.
package plant

import (
	"errors"
	"math"
	"math/rand"
	"sync"

	"github.com/san-kum/ptcbox/internal/integrators"
	"github.com/san-kum/ptcbox/internal/sensor"
	"github.com/san-kum/ptcbox/internal/thermo"
)

var ErrSensorFault = errors.New("plant: injected sensor fault")

// Model holds the lumped thermal parameters.
type Model struct {
	Ambient    float64 `yaml:"ambient"`     // °C
	Humidity   float64 `yaml:"humidity"`    // %RH at ambient
	PTCPower   float64 `yaml:"ptc_power"`   // W at full duty, cold
	Curie      float64 `yaml:"curie"`       // °C where PTC power halves
	CurieWidth float64 `yaml:"curie_width"` // °C
	PTCMass    float64 `yaml:"ptc_mass"`    // J/K
	Coupling   float64 `yaml:"coupling"`    // W/K, PTC to box air
	BoxMass    float64 `yaml:"box_mass"`    // J/K
	Loss       float64 `yaml:"loss"`        // W/K, box walls
	FanLoss    float64 `yaml:"fan_loss"`    // W/K at full fan
	Noise      float64 `yaml:"noise"`       // °C, sensor stddev
	Integrator string  `yaml:"integrator"`
}

func DefaultModel() Model {
	return Model{
		Ambient:    22,
		Humidity:   50,
		PTCPower:   40,
		Curie:      130,
		CurieWidth: 6,
		PTCMass:    60,
		Coupling:   0.9,
		BoxMass:    1500,
		Loss:       0.6,
		FanLoss:    4,
		Noise:      0.05,
		Integrator: "rk4",
	}
}

// PTCPowerAt is the electrical power drawn at a given duty and element
// temperature.
func (m Model) PTCPowerAt(duty, ptc float64) float64 {
	w := m.CurieWidth
	if w <= 0 {
		w = 1
	}
	return duty * m.PTCPower / (1 + math.Exp((ptc-m.Curie)/w))
}

const (
	idxBox = iota
	idxPTC
)

// Plant is safe for concurrent use: the engine tasks read the sensor ports
// while a simulation loop advances time.
type Plant struct {
	mu      sync.Mutex
	model   Model
	ntc     sensor.NTC
	stepper integrators.Stepper
	rng     *rand.Rand

	x      []float64
	t      float64
	heater float64
	fan    float64
	dir    thermo.Direction

	ptcDisconnected bool
	boxFailures     int
}

func New(m Model, ntc sensor.NTC, seed int64) *Plant {
	stepper, ok := integrators.ByName(m.Integrator)
	if !ok {
		stepper = integrators.NewRK4()
	}
	return &Plant{
		model:   m,
		ntc:     ntc,
		stepper: stepper,
		rng:     rand.New(rand.NewSource(seed)),
		x:       []float64{m.Ambient, m.Ambient},
	}
}

// Reset puts the box and the element at the given temperatures.
func (p *Plant) Reset(box, ptc float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x = []float64{box, ptc}
	p.t = 0
	p.heater, p.fan = 0, 0
}

// Derive implements integrators.System. Called with the lock held.
func (p *Plant) Derive(x []float64, t float64) []float64 {
	m := p.model
	box, ptc := x[idxBox], x[idxPTC]
	power := m.PTCPowerAt(p.heater, ptc)
	toBox := m.Coupling * (ptc - box)
	loss := (m.Loss + p.fan*m.FanLoss) * (box - m.Ambient)
	return []float64{
		(toBox - loss) / m.BoxMass,
		(power - toBox) / m.PTCMass,
	}
}

// Advance integrates dt seconds with the current actuator state.
func (p *Plant) Advance(dt float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x = p.stepper.Step(p, p.x, p.t, dt)
	p.t += dt
}

// Apply implements engine.Actuator. The line drives the heater or the fan
// depending on the direction pin, never both.
func (p *Plant) Apply(duty float64, dir thermo.Direction) error {
	duty = math.Max(0, math.Min(1, duty))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dir = dir
	if dir == thermo.Cool {
		p.heater, p.fan = 0, duty
	} else {
		p.heater, p.fan = duty, 0
	}
	return nil
}

// True values, without sensor noise.
func (p *Plant) Box() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x[idxBox]
}

func (p *Plant) PTC() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x[idxPTC]
}

func (p *Plant) Time() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.t
}

// Drive returns the heater and fan duty currently applied.
func (p *Plant) Drive() (heater, fan float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heater, p.fan
}

// Power is the electrical power the heater currently draws.
func (p *Plant) Power() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model.PTCPowerAt(p.heater, p.x[idxPTC])
}

// DisconnectPTC makes the ADC read full scale, as an open thermistor would.
func (p *Plant) DisconnectPTC(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ptcDisconnected = v
}

// FailBoxReads makes the next n box sensor reads fail.
func (p *Plant) FailBoxReads(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boxFailures = n
}

func (p *Plant) noise() float64 {
	if p.model.Noise <= 0 {
		return 0
	}
	return p.rng.NormFloat64() * p.model.Noise
}

// ReadADC implements sensor.ADC.
func (p *Plant) ReadADC() (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ptcDisconnected {
		return p.ntc.MaxCode, nil
	}
	return p.ntc.Code(p.x[idxPTC] + p.noise()), nil
}

// BoxSensor, AmbientSensor and HumiditySensor return the discrete sensor
// ports backed by this plant.
func (p *Plant) BoxSensor() sensor.Thermometer     { return boxPort{p} }
func (p *Plant) AmbientSensor() sensor.Thermometer { return ambientPort{p} }
func (p *Plant) HumiditySensor() sensor.Hygrometer { return humidityPort{p} }

// Ports bundles every sensor port for sensor.NewAdapter.
func (p *Plant) Ports() sensor.Ports {
	return sensor.Ports{
		ADC:      p,
		Box:      p.BoxSensor(),
		Ambient:  p.AmbientSensor(),
		Humidity: p.HumiditySensor(),
	}
}

type boxPort struct{ p *Plant }

func (b boxPort) ReadTemperature() (float64, error) {
	p := b.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.boxFailures > 0 {
		p.boxFailures--
		return 0, ErrSensorFault
	}
	// the discrete sensor reports tenths of a degree
	return math.Round((p.x[idxBox]+p.noise())*10) / 10, nil
}

type ambientPort struct{ p *Plant }

func (a ambientPort) ReadTemperature() (float64, error) {
	p := a.p
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model.Ambient + p.noise(), nil
}

type humidityPort struct{ p *Plant }

// ReadHumidity scales ambient relative humidity by the saturation pressure
// ratio (Magnus formula) between ambient and box air.
func (h humidityPort) ReadHumidity() (float64, error) {
	p := h.p
	p.mu.Lock()
	defer p.mu.Unlock()
	rh := p.model.Humidity * magnus(p.model.Ambient) / magnus(p.x[idxBox])
	return math.Round(math.Max(0, math.Min(100, rh))*10) / 10, nil
}

func magnus(t float64) float64 {
	return 6.112 * math.Exp(17.62*t/(243.12+t))
}
