// Package optim searches controller gains against a simulated score.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ptcbox/internal/sim"
	"github.com/san-kum/ptcbox/internal/thermo"
)

var ErrNoTrials = errors.New("optim: no valid parameter combination")

// Axis is one searched parameter, named "<loop>.<gain>" (inner.kp,
// outer.ki) or warming_bias / heating_bias.
type Axis struct {
	Name   string
	Values []float64
}

// Objective scores a parameter set; lower is better.
type Objective func(ctx context.Context, p *thermo.Params) (float64, error)

type Trial struct {
	Values map[string]float64
	Score  float64
	Err    error
}

type GridSearch struct {
	axes    []Axis
	workers int
}

func NewGridSearch(axes ...Axis) *GridSearch {
	return &GridSearch{axes: axes, workers: runtime.GOMAXPROCS(0)}
}

// Search scores every combination of axis values on a copy of base and
// returns the best trial with all trials sorted by score. Combinations that
// fail validation or evaluation are kept with Err set.
func (g *GridSearch) Search(ctx context.Context, base *thermo.Params, obj Objective) (Trial, []Trial, error) {
	combos := g.combinations()
	trials := make([]Trial, len(combos))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, values := range combos {
		eg.Go(func() error {
			t := Trial{Values: values, Score: math.Inf(1)}
			p := base.Clone()
			err := apply(p, values)
			if err == nil {
				err = p.Validate()
			}
			if err == nil {
				t.Score, err = obj(ctx, p)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			t.Err = err
			trials[i] = t
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Trial{}, nil, err
	}

	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Score < trials[j].Score })
	if len(trials) == 0 || trials[0].Err != nil {
		return Trial{}, trials, ErrNoTrials
	}
	return trials[0], trials, nil
}

func (g *GridSearch) combinations() []map[string]float64 {
	out := []map[string]float64{{}}
	for _, axis := range g.axes {
		next := make([]map[string]float64, 0, len(out)*len(axis.Values))
		for _, c := range out {
			for _, v := range axis.Values {
				m := make(map[string]float64, len(c)+1)
				for k, cv := range c {
					m[k] = cv
				}
				m[axis.Name] = v
				next = append(next, m)
			}
		}
		out = next
	}
	return out
}

func apply(p *thermo.Params, values map[string]float64) error {
	for name, v := range values {
		if err := Set(p, name, v); err != nil {
			return err
		}
	}
	return nil
}

// Set writes one searchable parameter.
func Set(p *thermo.Params, name string, v float64) error {
	switch name {
	case "warming_bias":
		p.WarmingBias = v
		return nil
	case "heating_bias":
		p.HeatingBias = v
		return nil
	}
	loop, gain, ok := strings.Cut(name, ".")
	if !ok {
		return fmt.Errorf("optim: %q: want <loop>.<gain>", name)
	}
	lp, err := p.Loop(loop)
	if err != nil {
		return fmt.Errorf("optim: %q: %w", name, err)
	}
	switch gain {
	case "kp":
		lp.Kp = v
	case "ki":
		lp.Ki = v
	case "kd":
		lp.Kd = v
	default:
		return fmt.Errorf("optim: %q: unknown gain %q", name, gain)
	}
	return nil
}

// TrackingObjective scores PTC tracking in forced WARMING at target.
func TrackingObjective(cfg sim.Config, target float64, d time.Duration) Objective {
	return func(ctx context.Context, p *thermo.Params) (float64, error) {
		c := cfg
		c.Params = p
		return sim.EvaluatePTC(ctx, c, target, d)
	}
}

// MetricObjective runs the full closed loop and returns one standard metric.
func MetricObjective(cfg sim.Config, metric string) Objective {
	return func(ctx context.Context, p *thermo.Params) (float64, error) {
		c := cfg
		c.Params = p
		s, err := sim.New(c, nil)
		if err != nil {
			return 0, err
		}
		s.AddStandardMetrics()
		res, err := s.Run(ctx)
		if err != nil {
			return 0, err
		}
		v, ok := res.Metrics[metric]
		if !ok {
			return 0, fmt.Errorf("optim: unknown metric %q", metric)
		}
		return v, nil
	}
}
