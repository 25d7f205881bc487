package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	stateMenu = iota
	stateLive
)

// Builder creates a fresh source for the named preset.
type Builder func(preset string) (Source, error)

// App lets the user pick a preset, then hands over to a Monitor.
type App struct {
	state   int
	cursor  int
	presets []string
	info    map[string]string
	build   Builder
	speed   int
	err     error
	live    Monitor
}

// NewApp lists presets in the given order. info holds optional one-line
// descriptions.
func NewApp(presets []string, info map[string]string, build Builder, speed int) App {
	return App{presets: presets, info: info, build: build, speed: speed}
}

func (a App) Init() tea.Cmd { return nil }

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.state == stateLive {
		next, cmd := a.live.Update(msg)
		a.live = next.(Monitor)
		return a, cmd
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.presets)-1 {
			a.cursor++
		}
	case "enter", " ":
		if len(a.presets) == 0 {
			return a, nil
		}
		name := a.presets[a.cursor]
		src, err := a.build(name)
		if err != nil {
			a.err = err
			return a, nil
		}
		a.err = nil
		a.live = NewMonitor(src, name, a.speed)
		a.state = stateLive
		return a, a.live.Init()
	}
	return a, nil
}

func (a App) View() string {
	if a.state == stateLive {
		return a.live.View()
	}
	var b strings.Builder
	b.WriteString("\n\n    " + titleStyle().Render("PTCBOX") + "\n    " + mutedStyle().Render("enclosure thermal controller") + "\n    " + mutedStyle().Render("────────────────────────────") + "\n\n")
	for i, name := range a.presets {
		desc := a.info[name]
		if i == a.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", keyStyle.Render("▸"), valueStyle.Render(fmt.Sprintf("%-12s", name)), desc))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", hintStyle.Render(fmt.Sprintf("%-12s", name)), hintStyle.Render(desc)))
		}
	}
	if a.err != nil {
		b.WriteString("\n    " + mutedStyle().Render("error: "+a.err.Error()) + "\n")
	}
	b.WriteString("\n    " + KeyHints("j/k", "navigate", "enter", "start", "q", "quit") + "\n")
	return b.String()
}

func RunInteractive(presets []string, info map[string]string, build Builder, speed int) error {
	_, err := tea.NewProgram(NewApp(presets, info, build, speed), tea.WithAltScreen()).Run()
	return err
}
