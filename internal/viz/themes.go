package viz

import "github.com/charmbracelet/lipgloss"

// Theme defines the palette, with one color per control mode.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Heating lipgloss.Color
	Warming lipgloss.Color
	Cooling lipgloss.Color
	Idle    lipgloss.Color
	Error   lipgloss.Color
}

var (
	ThemeEmber = Theme{
		Name:    "ember",
		Primary: lipgloss.Color("#00cccc"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#666688"),
		Heating: lipgloss.Color("#ff4444"),
		Warming: lipgloss.Color("#ffaa00"),
		Cooling: lipgloss.Color("#00aaff"),
		Idle:    lipgloss.Color("#888899"),
		Error:   lipgloss.Color("#ff00ff"),
	}

	ThemeRetro = Theme{
		Name:    "retro",
		Primary: lipgloss.Color("#00ff00"),
		Text:    lipgloss.Color("#00ff00"),
		Muted:   lipgloss.Color("#006600"),
		Heating: lipgloss.Color("#88ff88"),
		Warming: lipgloss.Color("#44cc44"),
		Cooling: lipgloss.Color("#00aa00"),
		Idle:    lipgloss.Color("#005500"),
		Error:   lipgloss.Color("#ffff00"),
	}

	ThemeMono = Theme{
		Name:    "mono",
		Primary: lipgloss.Color("#ffffff"),
		Text:    lipgloss.Color("#dddddd"),
		Muted:   lipgloss.Color("#777777"),
		Heating: lipgloss.Color("#ffffff"),
		Warming: lipgloss.Color("#cccccc"),
		Cooling: lipgloss.Color("#999999"),
		Idle:    lipgloss.Color("#666666"),
		Error:   lipgloss.Color("#ffffff"),
	}

	Themes = []Theme{ThemeEmber, ThemeRetro, ThemeMono}

	CurrentTheme = ThemeEmber
)

// GetTheme returns a theme by name, falling back to ember.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeEmber
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			CurrentTheme = Themes[(i+1)%len(Themes)]
			return
		}
	}
	CurrentTheme = ThemeEmber
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
