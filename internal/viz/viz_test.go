package viz

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/ptcbox/internal/engine"
	"github.com/san-kum/ptcbox/internal/plant"
	"github.com/san-kum/ptcbox/internal/sensor"
	"github.com/san-kum/ptcbox/internal/sim"
	"github.com/san-kum/ptcbox/internal/thermo"
)

func newSource(t *testing.T) *sim.Simulator {
	t.Helper()
	s, err := sim.New(sim.Config{
		Params:   thermo.DefaultParams(),
		Model:    plant.DefaultModel(),
		NTC:      sensor.DefaultNTC(),
		Timing:   engine.DefaultTiming(),
		Duration: time.Hour,
		Seed:     3,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func update(t *testing.T, m Monitor, msg tea.Msg) Monitor {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Monitor)
}

func TestMonitorTickAdvances(t *testing.T) {
	src := newSource(t)
	m := NewMonitor(src, "enclosure", 10)

	for i := 0; i < 3; i++ {
		m = update(t, m, TickMsg(time.Now()))
	}
	if got := src.Elapsed(); got != 3*time.Second {
		t.Errorf("elapsed = %v, want 3s", got)
	}
	if len(m.box) != 3 {
		t.Errorf("history has %d samples, want 3", len(m.box))
	}
	if !strings.Contains(m.View(), "ENCLOSURE") {
		t.Error("view should show the run name")
	}
}

func TestMonitorPause(t *testing.T) {
	src := newSource(t)
	m := NewMonitor(src, "enclosure", 10)
	m = update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m = update(t, m, TickMsg(time.Now()))
	if src.Elapsed() != 0 {
		t.Errorf("paused monitor advanced to %v", src.Elapsed())
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("view should show PAUSED")
	}
}

func TestMonitorSpeed(t *testing.T) {
	m := NewMonitor(newSource(t), "enclosure", 10)
	m = update(t, m, runes("+"))
	if m.speed != 20 {
		t.Errorf("speed = %d, want 20", m.speed)
	}
	for i := 0; i < 10; i++ {
		m = update(t, m, runes("-"))
	}
	if m.speed != 1 {
		t.Errorf("speed = %d, want 1", m.speed)
	}
}

func TestMonitorTuningKeys(t *testing.T) {
	src := newSource(t)
	m := NewMonitor(src, "enclosure", 1)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if got := src.Tuning().Params().Target; got != 40.5 {
		t.Errorf("target = %f, want 40.5", got)
	}

	m = update(t, m, runes("c"))
	if w := src.State().Mode(); w.Mode != thermo.Cooling || !w.Forced {
		t.Errorf("mode word = %+v, want forced cooling", w)
	}
	if !m.status.Forced {
		t.Error("status should report forced")
	}

	m = update(t, m, runes("a"))
	if m.status.Forced {
		t.Error("release should clear forced")
	}
}

func TestMonitorShowsTuningErrors(t *testing.T) {
	src := newSource(t)
	m := NewMonitor(src, "enclosure", 1)
	if err := src.Tuning().SetTarget(119.8); err != nil {
		t.Fatal(err)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.note == "" {
		t.Error("expected an error note for a target past the safety limit")
	}
}

func TestAppStartsMonitor(t *testing.T) {
	built := ""
	build := func(name string) (Source, error) {
		built = name
		return newSource(t), nil
	}
	app := NewApp([]string{"drying", "enclosure"}, nil, build, 5)

	next, _ := app.Update(tea.KeyMsg{Type: tea.KeyDown})
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	a := next.(App)
	if built != "enclosure" {
		t.Errorf("built %q, want enclosure", built)
	}
	if a.state != stateLive || cmd == nil {
		t.Error("expected the live monitor to start")
	}
}

func TestAppBuildError(t *testing.T) {
	build := func(string) (Source, error) { return nil, errors.New("bad preset") }
	app := NewApp([]string{"enclosure"}, nil, build, 5)
	next, _ := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(next.View(), "bad preset") {
		t.Error("menu should show the build error")
	}
}

func TestThemes(t *testing.T) {
	defer SetTheme("ember")
	if GetTheme("missing").Name != "ember" {
		t.Error("unknown theme should fall back to ember")
	}
	NextTheme()
	if CurrentTheme.Name != "retro" {
		t.Errorf("next theme = %s, want retro", CurrentTheme.Name)
	}
	if len(ThemeNames()) != len(Themes) {
		t.Error("theme names out of sync")
	}
}

func TestGauge(t *testing.T) {
	if got := Gauge(0.5, 10); got != "█████░░░░░" {
		t.Errorf("gauge = %q", got)
	}
	if got := Gauge(2, 4); got != "████" {
		t.Errorf("gauge overflow = %q", got)
	}
}
