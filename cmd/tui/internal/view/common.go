package view

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

type CommonModel struct {
	Width  int
	Height int
}

type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}

// Theme holds the colours shared by every screen.
type Theme struct {
	Accent lipgloss.Color
	Muted  lipgloss.Color
	Good   lipgloss.Color
	Bad    lipgloss.Color
}

// DetectTheme picks a palette that reads on the terminal background.
func DetectTheme() Theme {
	if termenv.HasDarkBackground() {
		return Theme{Accent: "205", Muted: "240", Good: "42", Bad: "196"}
	}

	return Theme{Accent: "125", Muted: "245", Good: "28", Bad: "160"}
}

func (t Theme) accent(s string) string {
	return lipgloss.NewStyle().Foreground(t.Accent).Render(s)
}

func (t Theme) good(s string) string {
	return lipgloss.NewStyle().Foreground(t.Good).Render(s)
}

func (t Theme) bad(s string) string {
	return lipgloss.NewStyle().Foreground(t.Bad).Render(s)
}

func faint(s string) string {
	return lipgloss.NewStyle().Faint(true).Render(s)
}
