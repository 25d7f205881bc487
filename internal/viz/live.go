package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/ptcbox/internal/metrics"
	"github.com/san-kum/ptcbox/internal/thermo"
	"github.com/san-kum/ptcbox/internal/tuning"
)

const (
	frameRate       = time.Second / 30
	historyCapacity = 600
	maxSpeed        = 1000
	targetStep      = 0.5
)

// Source is a steppable closed loop; sim.Simulator satisfies it.
type Source interface {
	Step() (metrics.Sample, error)
	Elapsed() time.Duration
	Tuning() *tuning.Service
}

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Monitor runs a Source forward a few fast cycles per frame and draws it.
type Monitor struct {
	src      Source
	name     string
	speed    int
	running  bool
	showHelp bool
	width    int

	box, ptc, desired, target []float64
	last                      metrics.Sample
	status                    tuning.Status
	err                       error
	note                      string
}

// NewMonitor builds a monitor that advances speed fast cycles per frame.
func NewMonitor(src Source, name string, speed int) Monitor {
	if speed < 1 {
		speed = 1
	}
	m := Monitor{
		src:     src,
		name:    name,
		speed:   speed,
		running: true,
		width:   100,
	}
	m.status = src.Tuning().Status()
	return m
}

func (m Monitor) Init() tea.Cmd { return tick() }

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case TickMsg:
		if m.running && m.err == nil {
			m.advance(m.speed)
		}
		m.status = m.src.Tuning().Status()
		return m, tick()
	}
	return m, nil
}

func (m Monitor) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	svc := m.src.Tuning()
	var err error
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.running = !m.running
	case "+", "=":
		m.speed = min(m.speed*2, maxSpeed)
	case "-", "_":
		m.speed = max(m.speed/2, 1)
	case "up", "k":
		err = svc.SetTarget(svc.Params().Target + targetStep)
	case "down", "j":
		err = svc.SetTarget(svc.Params().Target - targetStep)
	case "h", "w", "c", "i":
		var mode thermo.Mode
		mode, err = thermo.ParseMode(map[string]string{"h": "heating", "w": "warming", "c": "cooling", "i": "idle"}[key])
		if err == nil {
			err = svc.ForceMode(mode)
		}
	case "a":
		svc.ReleaseMode()
	case "t":
		NextTheme()
	case "?":
		m.showHelp = !m.showHelp
	}
	m.note = ""
	if err != nil {
		m.note = err.Error()
	}
	m.status = svc.Status()
	return m, nil
}

// advance steps the source n fast cycles and records the traces.
func (m *Monitor) advance(n int) {
	for i := 0; i < n; i++ {
		s, err := m.src.Step()
		if err != nil {
			m.err = err
			return
		}
		m.last = s
	}
	m.box = push(m.box, m.last.Box)
	m.ptc = push(m.ptc, m.last.PTC)
	m.desired = push(m.desired, m.last.Out.DesiredPTC)
	m.target = push(m.target, m.last.Target)
}

func push(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[len(h)-historyCapacity:]
	}
	return h
}

func (m Monitor) View() string {
	st := m.status
	var b strings.Builder

	state := "RUNNING"
	if !m.running {
		state = "PAUSED"
	}
	b.WriteString(titleStyle().Render(strings.ToUpper(m.name)) + "  " +
		ModeBadge(modeOf(st.ControlState), st.Forced) + " " +
		SafetyBadge(m.last.Out.Safety) + "\n")
	b.WriteString(mutedStyle().Render(fmt.Sprintf("%s  t=%s  x%d", state, m.src.Elapsed().Truncate(time.Second), m.speed)) + "\n\n")

	b.WriteString(m.chart() + "\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Box", fmt.Sprintf("%.2f °C (target %.1f)", st.CurrentTemperature, st.TargetTemperature))
	row("PTC", fmt.Sprintf("%.2f °C (desired %.1f)", st.PTCTemperature, st.DesiredPTC))
	row("Ambient", fmt.Sprintf("%.1f °C  %.0f%%RH", st.EnvTemperature, st.CurrentHumidity))
	row("Heater", Gauge(m.last.Out.Heater, 20)+fmt.Sprintf(" %5.1f%%", m.last.Out.Heater*100))
	row("Fan", Gauge(st.FanSpeed, 20)+fmt.Sprintf(" %5.1f%%", st.FanSpeedPercent))
	row("Feedfwd", fmt.Sprintf("%.3f  pid %.3f  bias %.1f", st.FeedforwardSpeed, st.PIDOutput, st.DynamicBias))
	row("Trips", fmt.Sprintf("%d (max %.0f °C)", st.OverheatTrips, st.MaxSafeTemp))

	if m.note != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(CurrentTheme.Error).Render(m.note) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(CurrentTheme.Error).Render("stopped: "+m.err.Error()) + "\n")
	}
	b.WriteString("\n" + KeyHints("space", "pause", "+/-", "speed", "↑↓", "target", "h/w/c/i", "force", "a", "auto", "?", "help", "q", "quit"))

	view := panelStyle.Render(b.String())
	if m.showHelp {
		return helpText + "\n" + view
	}
	return view
}

func (m Monitor) chart() string {
	if len(m.box) < 2 {
		return mutedStyle().Render("waiting for samples...")
	}
	w := m.width - 20
	if w < 20 {
		w = 20
	}
	return asciigraph.PlotMany(
		[][]float64{m.box, m.ptc, m.desired, m.target},
		asciigraph.Height(12),
		asciigraph.Width(w),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Yellow, asciigraph.Blue, asciigraph.Green),
		asciigraph.SeriesLegends("box", "ptc", "desired", "target"),
	)
}

func modeOf(name string) thermo.Mode {
	mode, err := thermo.ParseMode(name)
	if err != nil {
		return thermo.Idle
	}
	return mode
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  + / -    - Double/halve speed       ║
║  Up/K     - Target +0.5 °C           ║
║  Down/J   - Target -0.5 °C           ║
║  H W C I  - Force mode               ║
║  A        - Release forced mode      ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

// RunMonitor runs the monitor full screen until the user quits.
func RunMonitor(src Source, name string, speed int) error {
	_, err := tea.NewProgram(NewMonitor(src, name, speed), tea.WithAltScreen()).Run()
	return err
}
