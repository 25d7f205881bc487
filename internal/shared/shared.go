// Package shared is the state exchanged between the slow task, the fast
// task and the tuning surface. Each field has exactly one writer; the
// writer views below make that explicit. Scalars are atomics and the
// tuning group is published as immutable copy-on-write snapshots.
package shared

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/san-kum/ptcbox/internal/cascade"
	"github.com/san-kum/ptcbox/internal/statemachine"
	"github.com/san-kum/ptcbox/internal/thermo"
)

// Float is an atomically stored float64.
type Float struct{ bits atomic.Uint64 }

func (f *Float) Load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *Float) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

// ModeWord is the published mode. Epoch increases on every transition so
// the fast task can tell a new transition from a repeated read.
type ModeWord struct {
	Mode   thermo.Mode
	Forced bool
	Epoch  uint64
}

const (
	modeBits   = 8
	forcedBit  = 1 << modeBits
	epochShift = 16
)

func (w ModeWord) pack() uint64 {
	v := uint64(w.Mode)&(1<<modeBits-1) | w.Epoch<<epochShift
	if w.Forced {
		v |= forcedBit
	}
	return v
}

func unpack(v uint64) ModeWord {
	return ModeWord{
		Mode:   thermo.Mode(v & (1<<modeBits - 1)),
		Forced: v&forcedBit != 0,
		Epoch:  v >> epochShift,
	}
}

// Readings is the last good value of every sensor.
type Readings struct {
	Box      float64 `json:"box"`
	PTC      float64 `json:"ptc"`
	Ambient  float64 `json:"ambient"`
	Humidity float64 `json:"humidity"`
}

type SlowWriter interface {
	SetBox(v float64)
	SetAmbient(v float64)
	SetHumidity(v float64)
	PublishTransition(tr statemachine.Transition)
}

type FastWriter interface {
	SetPTC(v float64)
	PublishOutput(out cascade.Output, loops cascade.Loops)
}

type TuningWriter interface {
	UpdateParams(fn func(p *thermo.Params) error) (*thermo.Params, error)
}

// State is the container. The zero value is not usable; call New.
type State struct {
	box, ptc, ambient, humidity Float

	mode atomic.Uint64

	output atomic.Pointer[cascade.Output]
	loops  atomic.Pointer[cascade.Loops]
	last   atomic.Pointer[statemachine.Transition]

	paramsMu sync.Mutex
	params   atomic.Pointer[thermo.Params]
}

func New(p *thermo.Params, initial thermo.Mode) *State {
	s := &State{}
	s.params.Store(p.Clone())
	s.mode.Store(ModeWord{Mode: initial}.pack())
	s.output.Store(&cascade.Output{Mode: initial, Direction: initial.Direction()})
	s.loops.Store(&cascade.Loops{})
	return s
}

func (s *State) SetBox(v float64)      { s.box.Store(v) }
func (s *State) SetAmbient(v float64)  { s.ambient.Store(v) }
func (s *State) SetHumidity(v float64) { s.humidity.Store(v) }
func (s *State) SetPTC(v float64)      { s.ptc.Store(v) }

// PublishTransition bumps the epoch. Concurrent publishers are serialized
// by the state machine lock.
func (s *State) PublishTransition(tr statemachine.Transition) {
	cur := unpack(s.mode.Load())
	s.mode.Store(ModeWord{Mode: tr.To, Forced: tr.Forced, Epoch: cur.Epoch + 1}.pack())
	t := tr
	s.last.Store(&t)
}

func (s *State) PublishOutput(out cascade.Output, loops cascade.Loops) {
	s.output.Store(&out)
	s.loops.Store(&loops)
}

// UpdateParams applies fn to a private copy of the current parameters and
// publishes it only if fn and validation both succeed.
func (s *State) UpdateParams(fn func(p *thermo.Params) error) (*thermo.Params, error) {
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	next := s.params.Load().Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	s.params.Store(next)
	return next, nil
}

// Params returns the current snapshot. Callers must not modify it.
func (s *State) Params() *thermo.Params { return s.params.Load() }

func (s *State) Mode() ModeWord { return unpack(s.mode.Load()) }

func (s *State) Readings() Readings {
	return Readings{
		Box:      s.box.Load(),
		PTC:      s.ptc.Load(),
		Ambient:  s.ambient.Load(),
		Humidity: s.humidity.Load(),
	}
}

func (s *State) Output() cascade.Output { return *s.output.Load() }

func (s *State) Loops() cascade.Loops { return *s.loops.Load() }

// LastTransition returns the latest published transition, if any.
func (s *State) LastTransition() (statemachine.Transition, bool) {
	tr := s.last.Load()
	if tr == nil {
		return statemachine.Transition{}, false
	}
	return *tr, true
}

// Snapshot is a consistent-enough view for status reporting; fields may be
// one cycle apart.
type Snapshot struct {
	Readings Readings
	Mode     ModeWord
	Output   cascade.Output
	Loops    cascade.Loops
	Params   *thermo.Params
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Readings: s.Readings(),
		Mode:     s.Mode(),
		Output:   s.Output(),
		Loops:    s.Loops(),
		Params:   s.Params(),
	}
}

var (
	_ SlowWriter   = (*State)(nil)
	_ FastWriter   = (*State)(nil)
	_ TuningWriter = (*State)(nil)
)
