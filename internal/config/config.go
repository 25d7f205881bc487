package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/ptcbox/internal/engine"
	"github.com/san-kum/ptcbox/internal/feedforward"
	"github.com/san-kum/ptcbox/internal/plant"
	"github.com/san-kum/ptcbox/internal/sensor"
	"github.com/san-kum/ptcbox/internal/sim"
	"github.com/san-kum/ptcbox/internal/telemetry"
	"github.com/san-kum/ptcbox/internal/thermo"
)

const (
	DefaultDuration = 2 * time.Hour
	DefaultRunsDir  = "runs"
	DefaultAddr     = ":8080"
	DefaultTopic    = "ptcbox/status"
)

type Config struct {
	Control   ControlConfig    `yaml:"control"`
	Loops     LoopsConfig      `yaml:"loops"`
	Tables    TablesConfig     `yaml:"tables"`
	NTC       sensor.NTC       `yaml:"ntc"`
	Safety    SafetyConfig     `yaml:"safety"`
	Timing    engine.Timing    `yaml:"timing"`
	Plant     plant.Model      `yaml:"plant"`
	Sim       SimSettings      `yaml:"sim"`
	API       APIConfig        `yaml:"api"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Log       LogConfig        `yaml:"log"`
	Storage   StorageConfig    `yaml:"storage"`
}

type ControlConfig struct {
	Target           float64 `yaml:"target"`
	Hysteresis       float64 `yaml:"hysteresis"`
	WarmingBias      float64 `yaml:"warming_bias"`
	HeatingBias      float64 `yaml:"heating_bias"`
	WarmingThreshold float64 `yaml:"warming_threshold"`
	WarmingFromTable bool    `yaml:"warming_from_table"`
	IdleBand         float64 `yaml:"idle_band"`
	FanMin           float64 `yaml:"fan_min"`
	FanMax           float64 `yaml:"fan_max"`
	FanSmoothAlpha   float64 `yaml:"fan_smooth_alpha"`
	InactiveDecay    float64 `yaml:"inactive_decay"`
}

type LoopsConfig struct {
	Outer thermo.LoopParams `yaml:"outer"`
	Inner thermo.LoopParams `yaml:"inner"`
	Cool  thermo.LoopParams `yaml:"cool"`
}

type TablesConfig struct {
	Duty    []feedforward.Point `yaml:"duty"`
	Bias    []feedforward.Point `yaml:"bias"`
	Warming []feedforward.Point `yaml:"warming"`
}

type SafetyConfig struct {
	MaxTemp float64 `yaml:"max_temp"`
}

type SimSettings struct {
	Duration   time.Duration  `yaml:"duration"`
	Seed       int64          `yaml:"seed"`
	Record     time.Duration  `yaml:"record"`
	InitialBox *float64       `yaml:"initial_box,omitempty"`
	Schedule   []sim.SetPoint `yaml:"schedule,omitempty"`
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StorageConfig struct {
	Dir string `yaml:"dir"`
}

func DefaultConfig() *Config {
	cfg := &Config{
		NTC:    sensor.DefaultNTC(),
		Timing: engine.DefaultTiming(),
		Plant:  plant.DefaultModel(),
		Sim: SimSettings{
			Duration: DefaultDuration,
			Seed:     1,
		},
		API:       APIConfig{Addr: DefaultAddr},
		Telemetry: telemetry.Config{Topic: DefaultTopic, ClientID: "ptcbox"},
		Log:       LogConfig{Level: "info", Format: "text"},
		Storage:   StorageConfig{Dir: DefaultRunsDir},
	}
	cfg.SetParams(thermo.DefaultParams())
	return cfg
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := Overlay(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Overlay applies the YAML file at path on top of cfg. Keys missing from
// the file keep their current values.
func Overlay(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Params builds and validates the tuning group.
func (c *Config) Params() (*thermo.Params, error) {
	ctl := c.Control
	p := &thermo.Params{
		Target:           ctl.Target,
		Hysteresis:       ctl.Hysteresis,
		WarmingBias:      ctl.WarmingBias,
		HeatingBias:      ctl.HeatingBias,
		WarmingThreshold: ctl.WarmingThreshold,
		WarmingFromTable: ctl.WarmingFromTable,
		IdleBand:         ctl.IdleBand,
		FanMin:           ctl.FanMin,
		FanMax:           ctl.FanMax,
		FanSmoothAlpha:   ctl.FanSmoothAlpha,
		InactiveDecay:    ctl.InactiveDecay,
		MaxSafeTemp:      c.Safety.MaxTemp,
		Outer:            c.Loops.Outer,
		Inner:            c.Loops.Inner,
		Cool:             c.Loops.Cool,
		Duty:             feedforward.New(feedforward.DutyTable, c.Tables.Duty),
		Bias:             feedforward.New(feedforward.BiasTable, c.Tables.Bias),
		Warming:          feedforward.New(feedforward.WarmingTable, c.Tables.Warming),
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return p, nil
}

// SetParams copies a tuning group into the config.
func (c *Config) SetParams(p *thermo.Params) {
	c.Control = ControlConfig{
		Target:           p.Target,
		Hysteresis:       p.Hysteresis,
		WarmingBias:      p.WarmingBias,
		HeatingBias:      p.HeatingBias,
		WarmingThreshold: p.WarmingThreshold,
		WarmingFromTable: p.WarmingFromTable,
		IdleBand:         p.IdleBand,
		FanMin:           p.FanMin,
		FanMax:           p.FanMax,
		FanSmoothAlpha:   p.FanSmoothAlpha,
		InactiveDecay:    p.InactiveDecay,
	}
	c.Safety.MaxTemp = p.MaxSafeTemp
	c.Loops = LoopsConfig{Outer: p.Outer, Inner: p.Inner, Cool: p.Cool}
	c.Tables = TablesConfig{
		Duty:    p.Duty.Points(),
		Bias:    p.Bias.Points(),
		Warming: p.Warming.Points(),
	}
}

// SimConfig assembles a closed-loop simulation config.
func (c *Config) SimConfig() (sim.Config, error) {
	p, err := c.Params()
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Params:     p,
		Model:      c.Plant,
		NTC:        c.NTC,
		Timing:     c.Timing,
		Duration:   c.Sim.Duration,
		Seed:       c.Sim.Seed,
		InitialBox: c.Sim.InitialBox,
		Schedule:   c.Sim.Schedule,
		Record:     c.Sim.Record,
	}, nil
}
