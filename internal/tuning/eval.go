package tuning

import (
	"context"
	"math"
	"time"

	"github.com/san-kum/ptcbox/internal/thermo"
)

// NoSamples is reported when an evaluation ends before its first sample.
const NoSamples = 999999.0

// EvaluatePTC holds WARMING at target for d and returns the mean absolute
// difference between the PTC reading and the desired PTC temperature, one
// sample per period. The previous target and mode pin are restored
// afterwards.
func (s *Service) EvaluatePTC(ctx context.Context, target float64, d time.Duration) (float64, error) {
	old := s.state.Params().Target
	wasForced := s.machine.Forced()
	prevMode := s.machine.Mode()

	if err := s.SetTarget(target); err != nil {
		return 0, err
	}
	defer func() {
		if err := s.SetTarget(old); err != nil {
			s.lg.Error("restore target after evaluation", "err", err)
		}
		if !wasForced {
			s.ReleaseMode()
			return
		}
		if err := s.ForceMode(prevMode); err != nil {
			s.lg.Error("restore mode after evaluation", "mode", prevMode.String(), "err", err)
		}
	}()
	// Restart resets every loop even when WARMING is already active.
	if _, err := s.machine.Restart(thermo.Warming, s.now()); err != nil {
		return 0, err
	}
	s.lg.Info("ptc evaluation started", "target", target, "duration", d)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	deadline := time.NewTimer(d)
	defer deadline.Stop()

	var total float64
	var n int
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-deadline.C:
			if n == 0 {
				return NoSamples, nil
			}
			score := total / float64(n)
			s.lg.Info("ptc evaluation finished", "score", score, "samples", n)
			return score, nil
		case <-ticker.C:
			ptc := s.state.Readings().PTC
			out := s.state.Output()
			total += math.Abs(ptc - out.DesiredPTC)
			n++
		}
	}
}
