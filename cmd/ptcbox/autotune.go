package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/ptcbox/internal/optim"
)

var (
	axes        []string
	tuneMetric  string
	tuneTarget  float64
	tuneWindow  time.Duration
	tuneShowTop int
)

func newAutotuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autotune",
		Short: "grid search gains against simulated runs",
		Example: `  ptcbox autotune --axis inner.kp=0.01,0.03,0.05 --axis inner.ki=0.005,0.01
  ptcbox autotune --axis outer.kp=1,1.5,2 --metric iae --time 2h`,
		Args: cobra.NoArgs,
		RunE: autotune,
	}
	cmd.Flags().StringArrayVar(&axes, "axis", nil, "searched parameter as name=v1,v2,...")
	cmd.Flags().StringVar(&tuneMetric, "metric", "", "score by a standard metric of a full run instead of PTC tracking")
	cmd.Flags().Float64Var(&tuneTarget, "target", 40, "target for PTC tracking scores")
	cmd.Flags().DurationVar(&tuneWindow, "window", 2*time.Minute, "PTC tracking window")
	cmd.Flags().IntVar(&tuneShowTop, "top", 5, "number of trials to print")
	_ = cmd.MarkFlagRequired("axis")
	return cmd
}

func parseAxis(s string) (optim.Axis, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return optim.Axis{}, fmt.Errorf("bad axis %q, want name=v1,v2", s)
	}
	var values []float64
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return optim.Axis{}, fmt.Errorf("bad axis %q: %w", s, err)
		}
		values = append(values, v)
	}
	return optim.Axis{Name: name, Values: values}, nil
}

func autotune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := cfg.SimConfig()
	if err != nil {
		return err
	}

	parsed := make([]optim.Axis, 0, len(axes))
	for _, a := range axes {
		axis, err := parseAxis(a)
		if err != nil {
			return err
		}
		parsed = append(parsed, axis)
	}

	obj := optim.TrackingObjective(sc, tuneTarget, tuneWindow)
	if tuneMetric != "" {
		obj = optim.MetricObjective(sc, tuneMetric)
	}

	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()
	best, trials, err := optim.NewGridSearch(parsed...).Search(ctx, sc.Params, obj)
	if err != nil {
		return err
	}
	fmt.Printf("%d trials in %v\n\n", len(trials), time.Since(start).Round(time.Millisecond))

	names := make([]string, 0, len(best.Values))
	for name := range best.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\t%s\n", strings.ToUpper(strings.Join(names, "\t")))
	for i, t := range trials {
		if i >= tuneShowTop {
			break
		}
		row := make([]string, len(names))
		for j, n := range names {
			row[j] = strconv.FormatFloat(t.Values[n], 'g', -1, 64)
		}
		score := fmt.Sprintf("%.4f", t.Score)
		if t.Err != nil {
			score = "error"
		}
		fmt.Fprintf(w, "%s\t%s\n", score, strings.Join(row, "\t"))
	}
	return w.Flush()
}
