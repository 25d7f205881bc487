package metrics

import "math"

// Stability is the fraction of samples with the box inside the hysteresis
// band around target.
type Stability struct {
	name    string
	band    float64
	inside  int
	samples int
}

func NewStability(band float64) *Stability {
	return &Stability{
		name: "in_band",
		band: band,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(x Sample) {
	s.samples++
	if math.Abs(x.Box-x.Target) <= s.band {
		s.inside++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.inside) / float64(s.samples)
}

func (s *Stability) Reset() {
	s.inside = 0
	s.samples = 0
}
