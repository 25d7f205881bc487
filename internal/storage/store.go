// Package storage persists simulation runs: one directory per run holding
// metadata.json and trace.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/ptcbox/internal/sim"
	"github.com/san-kum/ptcbox/internal/thermo"
)

var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Preset      string             `json:"preset"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	FastPeriod  float64            `json:"fast_period"`
	SlowPeriod  float64            `json:"slow_period"`
	Duration    float64            `json:"duration"`
	Integrator  string             `json:"integrator"`
	Target      float64            `json:"target"`
	Hysteresis  float64            `json:"hysteresis"`
	WarmingBias float64            `json:"warming_bias"`
	HeatingBias float64            `json:"heating_bias"`
	Transitions int                `json:"transitions"`
	Trips       uint64             `json:"trips"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Describe fills the configuration part of the metadata from a run config.
func Describe(preset string, cfg sim.Config) RunMetadata {
	return RunMetadata{
		Preset:      preset,
		Seed:        cfg.Seed,
		FastPeriod:  cfg.Timing.FastPeriod.Seconds(),
		SlowPeriod:  cfg.Timing.SlowPeriod.Seconds(),
		Duration:    cfg.Duration.Seconds(),
		Integrator:  cfg.Model.Integrator,
		Target:      cfg.Params.Target,
		Hysteresis:  cfg.Params.Hysteresis,
		WarmingBias: cfg.Params.WarmingBias,
		HeatingBias: cfg.Params.HeatingBias,
	}
}

var traceHeader = []string{
	"t", "box", "ptc", "target", "desired_ptc", "duty", "heater", "fan",
	"power", "humidity", "mode", "safety",
}

// Save writes a run and returns its generated id.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = s.now()
	meta.Metrics = result.Metrics
	meta.Transitions = len(result.Transitions)
	meta.Trips = result.Trips

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "trace.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, result.Points); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrace reads the trace of a run. Malformed rows are skipped.
func (s *Store) LoadTrace(runID string) ([]sim.Point, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "trace.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file)
}

// WriteCSV writes points with a header row.
func WriteCSV(w io.Writer, points []sim.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(traceHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	for _, p := range points {
		row := []string{
			f(p.T), f(p.Box), f(p.PTC), f(p.Target), f(p.DesiredPTC), f(p.Duty),
			f(p.Heater), f(p.Fan), f(p.Power), f(p.Humidity),
			p.Mode.String(), p.Safety.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadCSV(r io.Reader) ([]sim.Point, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Point{}, nil
	}

	points := make([]sim.Point, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(traceHeader) {
			continue
		}
		vals := make([]float64, 10)
		ok := true
		for i := range vals {
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		mode, err := thermo.ParseMode(rec[10])
		if err != nil {
			continue
		}
		points = append(points, sim.Point{
			T: vals[0], Box: vals[1], PTC: vals[2], Target: vals[3], DesiredPTC: vals[4],
			Duty: vals[5], Heater: vals[6], Fan: vals[7], Power: vals[8], Humidity: vals[9],
			Mode: mode, Safety: parseSafety(rec[11]),
		})
	}
	return points, nil
}
