package config

import (
	"sort"
	"time"
)

// Presets tweak the default config for common enclosure uses.
var Presets = map[string]func(*Config){
	"enclosure": func(c *Config) {},
	"proofing": func(c *Config) {
		c.Control.Target = 28
		c.Control.Hysteresis = 1
		c.Control.WarmingBias = 5
		c.Control.HeatingBias = 15
		c.Control.IdleBand = 0.3
		c.Control.FanMax = 0.4
		c.Plant.Humidity = 75
		c.Sim.Duration = 4 * time.Hour
	},
	"drying": func(c *Config) {
		c.Control.Target = 55
		c.Control.Hysteresis = 3
		c.Control.WarmingBias = 12
		c.Control.HeatingBias = 30
		c.Control.FanMax = 0.8
		c.Safety.MaxTemp = 115
		c.Plant.Humidity = 35
		c.Sim.Duration = 3 * time.Hour
	},
}

// GetPreset returns a fresh config for the named preset, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
