package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/ptcbox/internal/safety"
	"github.com/san-kum/ptcbox/internal/thermo"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888899")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ccff")).Bold(true)
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
)

func titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Primary)
}

func mutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
}

func modeColor(m thermo.Mode) lipgloss.Color {
	switch m {
	case thermo.Heating:
		return CurrentTheme.Heating
	case thermo.Warming:
		return CurrentTheme.Warming
	case thermo.Cooling:
		return CurrentTheme.Cooling
	}
	return CurrentTheme.Idle
}

// ModeBadge renders the mode name as a colored tag, marking forced modes.
func ModeBadge(m thermo.Mode, forced bool) string {
	label := " " + m.String() + " "
	if forced {
		label = " " + m.String() + " (forced) "
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#000000")).
		Background(modeColor(m)).
		Render(label)
}

// SafetyBadge is empty when the monitor reports no fault.
func SafetyBadge(k safety.Kind) string {
	if k == safety.OK {
		return ""
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(CurrentTheme.Error).
		Blink(true).
		Render(" " + k.String() + " ")
}

// Gauge renders a fraction in [0, 1] as a bar.
func Gauge(frac float64, width int) string {
	filled := int(frac*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// KeyHints renders "key desc" pairs separated by two spaces.
func KeyHints(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(keyStyle.Render(pairs[i]) + hintStyle.Render(" "+pairs[i+1]))
	}
	return b.String()
}
