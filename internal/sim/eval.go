package sim

import (
	"context"
	"math"
	"time"

	"github.com/san-kum/ptcbox/internal/metrics"
	"github.com/san-kum/ptcbox/internal/thermo"
	"github.com/san-kum/ptcbox/internal/tuning"
)

// EvaluatePTC is the virtual-time counterpart of the live eval_ptc command:
// WARMING is forced at target for d and the score is the mean absolute
// difference between PTC and desired PTC temperature.
func EvaluatePTC(ctx context.Context, cfg Config, target float64, d time.Duration) (float64, error) {
	cfg.Duration = d
	cfg.Schedule = nil
	s, err := New(cfg, nil)
	if err != nil {
		return 0, err
	}
	if err := s.Tuning().SetTarget(target); err != nil {
		return 0, err
	}
	if err := s.Tuning().ForceMode(thermo.Warming); err != nil {
		return 0, err
	}

	var total float64
	var n int
	s.AddObserver(ObserverFunc(func(smp metrics.Sample) {
		total += math.Abs(smp.PTC - smp.Out.DesiredPTC)
		n++
	}))
	if _, err := s.Run(ctx); err != nil {
		return 0, err
	}
	if n == 0 {
		return tuning.NoSamples, nil
	}
	return total / float64(n), nil
}

// Evaluator binds cfg so the result can be plugged into a tuning service.
func Evaluator(cfg Config) tuning.Evaluator {
	return func(ctx context.Context, target float64, d time.Duration) (float64, error) {
		return EvaluatePTC(ctx, cfg, target, d)
	}
}
