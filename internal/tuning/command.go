package tuning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/ptcbox/internal/thermo"
)

var (
	ErrUnknownCommand = errors.New("tuning: unknown command")
	ErrUsage          = errors.New("tuning: bad arguments")
)

const (
	minEvalDuration = 500 * time.Millisecond
	maxEvalDuration = 300 * time.Second
)

const usage = `commands:
  get_status
  tune target|hys|warmbias|heatbias|warmthr|idle <val>
  tune warmthr table
  tune ff <0|ptc|1|warmt|2|bias> <temp> <val>
  tune ffmove <table> <temp> <new_temp> <val>
  tune heat|outer|cool <kp|ki|kd|imax|out_min|out_max> <val>
  tune fan <min|max|alpha> <val>
  force_state <heating|warming|cooling|idle>
  release_state
  eval_ptc <target> <duration_ms>`

// Exec runs one line of the text command set and returns the reply. Replies
// are "OK", a JSON status line, or an evaluation result.
func (s *Service) Exec(ctx context.Context, line string) (string, error) {
	argv := strings.Fields(line)
	if len(argv) == 0 {
		return "", nil
	}
	switch argv[0] {
	case "get_status":
		b, err := json.Marshal(s.Status())
		if err != nil {
			return "", err
		}
		return string(b), nil
	case "tune":
		if err := s.execTune(argv[1:]); err != nil {
			return "", err
		}
		return "OK", nil
	case "force_state":
		if len(argv) != 2 {
			return "", usageErr("force_state <heating|warming|cooling|idle>")
		}
		mode, err := thermo.ParseMode(argv[1])
		if err != nil {
			return "", err
		}
		if err := s.ForceMode(mode); err != nil {
			return "", err
		}
		return "OK", nil
	case "release_state", "release":
		s.ReleaseMode()
		return "OK", nil
	case "eval_ptc":
		return s.execEval(ctx, argv[1:])
	case "help":
		return usage, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, argv[0])
}

func (s *Service) execTune(args []string) error {
	if len(args) == 0 {
		return usageErr(usage)
	}
	switch cmd := args[0]; cmd {
	case "target", "hys", "warmbias", "heatbias", "idle":
		v, err := floats(args[1:], 1, "tune "+cmd+" <val>")
		if err != nil {
			return err
		}
		return s.SetParam(cmd, v[0])
	case "warmthr":
		if len(args) == 2 && args[1] == "table" {
			return s.UseWarmingTable()
		}
		v, err := floats(args[1:], 1, "tune warmthr <val|table>")
		if err != nil {
			return err
		}
		return s.SetWarmingThreshold(v[0])
	case "ff":
		if len(args) != 4 {
			return usageErr("tune ff <table> <temp> <val>")
		}
		v, err := floats(args[2:], 2, "tune ff <table> <temp> <val>")
		if err != nil {
			return err
		}
		_, err = s.SetTableEntry(args[1], v[0], v[1])
		return err
	case "ffmove":
		if len(args) != 5 {
			return usageErr("tune ffmove <table> <temp> <new_temp> <val>")
		}
		v, err := floats(args[2:], 3, "tune ffmove <table> <temp> <new_temp> <val>")
		if err != nil {
			return err
		}
		_, err = s.MoveTableEntry(args[1], v[0], v[1], v[2])
		return err
	case "heat", "inner", "outer", "cool":
		if len(args) != 3 {
			return usageErr("tune " + cmd + " <param> <val>")
		}
		v, err := floats(args[2:], 1, "tune "+cmd+" <param> <val>")
		if err != nil {
			return err
		}
		return s.SetGain(cmd, args[1], v[0])
	case "fan":
		if len(args) != 3 {
			return usageErr("tune fan <min|max|alpha> <val>")
		}
		v, err := floats(args[2:], 1, "tune fan <min|max|alpha> <val>")
		if err != nil {
			return err
		}
		name := map[string]string{"min": "fan_min", "max": "fan_max", "alpha": "fan_smooth_alpha"}[args[1]]
		if name == "" {
			return usageErr("tune fan <min|max|alpha> <val>")
		}
		return s.SetParam(name, v[0])
	}
	return fmt.Errorf("%w: tune %q", ErrUnknownCommand, args[0])
}

func (s *Service) execEval(ctx context.Context, args []string) (string, error) {
	v, err := floats(args, 2, "eval_ptc <target> <duration_ms>")
	if err != nil {
		return "", err
	}
	d := time.Duration(v[1]) * time.Millisecond
	if err := CheckEvalDuration(d); err != nil {
		return "", err
	}
	score, err := s.Evaluate(ctx, v[0], d)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EVAL_RESULT:%.4f", score), nil
}

// CheckEvalDuration rejects evaluation windows outside [500ms, 300s].
func CheckEvalDuration(d time.Duration) error {
	if d < minEvalDuration || d > maxEvalDuration {
		return fmt.Errorf("%w: duration must be within [%v, %v]", ErrUsage, minEvalDuration, maxEvalDuration)
	}
	return nil
}

func floats(args []string, n int, use string) ([]float64, error) {
	if len(args) != n {
		return nil, usageErr(use)
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number (usage: %s)", ErrUsage, a, use)
		}
		out[i] = v
	}
	return out, nil
}

func usageErr(use string) error {
	return fmt.Errorf("%w: usage: %s", ErrUsage, use)
}
