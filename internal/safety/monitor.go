// Package safety implements the PTC overheat interlock. It is consulted
// inside every fast control cycle and overrides the heater output.
package safety

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/ptcbox/internal/sensor"
)

const DefaultMaxTemp = 120.0

type Kind int

const (
	OK Kind = iota
	// Overheat: the PTC reading is at or above the maximum safe temperature.
	Overheat
	// Fault: no valid PTC reading (sensor sentinel or NaN).
	Fault
)

func (k Kind) String() string {
	switch k {
	case Overheat:
		return "overheat"
	case Fault:
		return "sensor_fault"
	default:
		return "ok"
	}
}

// Event records one cycle in which the interlock forced the heater off.
type Event struct {
	Kind    Kind      `json:"kind"`
	PTC     float64   `json:"ptc"`
	MaxTemp float64   `json:"max_temp"`
	At      time.Time `json:"at"`
}

// Verdict is the result of one check.
type Verdict struct {
	Kind Kind
	// Onset is set on the first tripped cycle after an OK one.
	Onset bool
}

func (v Verdict) Tripped() bool { return v.Kind != OK }

// Monitor has no latch: it clears as soon as a reading is valid and below
// MaxTemp again.
type Monitor struct {
	maxTemp float64
	lg      *slog.Logger
	onEvent func(Event)

	trips   atomic.Uint64
	tripped atomic.Bool

	mu   sync.Mutex
	last Event
	seen bool
}

type Option func(*Monitor)

// WithCallback registers fn to be called for every tripped cycle.
func WithCallback(fn func(Event)) Option {
	return func(m *Monitor) { m.onEvent = fn }
}

func WithLogger(lg *slog.Logger) Option {
	return func(m *Monitor) { m.lg = lg }
}

func NewMonitor(maxTemp float64, opts ...Option) *Monitor {
	if maxTemp <= 0 {
		maxTemp = DefaultMaxTemp
	}
	m := &Monitor{maxTemp: maxTemp}
	for _, o := range opts {
		o(m)
	}
	if m.lg == nil {
		m.lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m
}

func (m *Monitor) MaxTemp() float64 { return m.maxTemp }

// Check classifies a PTC reading and reports tripped cycles.
func (m *Monitor) Check(ptc float64, now time.Time) Verdict {
	kind := OK
	switch {
	case !sensor.Valid(ptc):
		kind = Fault
	case ptc >= m.maxTemp:
		kind = Overheat
	}

	was := m.tripped.Swap(kind != OK)
	if kind == OK {
		if was {
			m.lg.Info("ptc interlock cleared", "ptc", ptc)
		}
		return Verdict{Kind: OK}
	}

	ev := Event{Kind: kind, PTC: ptc, MaxTemp: m.maxTemp, At: now}
	m.trips.Add(1)
	m.mu.Lock()
	m.last, m.seen = ev, true
	m.mu.Unlock()

	if !was {
		m.lg.Warn("ptc interlock tripped, heater forced off", "kind", kind.String(), "ptc", ptc, "max", m.maxTemp)
	}
	if m.onEvent != nil {
		m.onEvent(ev)
	}
	return Verdict{Kind: kind, Onset: !was}
}

// Trips is the number of cycles in which the heater was forced off.
func (m *Monitor) Trips() uint64 { return m.trips.Load() }

func (m *Monitor) Tripped() bool { return m.tripped.Load() }

// Last returns the most recent event and false if none happened yet.
func (m *Monitor) Last() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.seen
}
