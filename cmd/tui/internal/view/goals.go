package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/goal"
)

// GoalsModel lists savings goals and records contributions.
type GoalsModel struct {
	CommonModel
	store *goal.Store
	theme Theme

	table  table.Model
	goals  []goal.Goal
	form   *huh.Form
	amount *string
	status string
}

func NewGoalsModel(store *goal.Store, theme Theme) GoalsModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "", Width: 2},
			{Title: "Goal", Width: 24},
			{Title: "Saved", Width: 12},
			{Title: "Target", Width: 12},
			{Title: "Progress", Width: 9},
			{Title: "Deadline", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	t.SetStyles(tableStyles(theme))

	m := GoalsModel{store: store, theme: theme, table: t}
	m.reload()

	return m
}

func (m GoalsModel) Title() string { return "Goals" }

func (m GoalsModel) ShortHelp() string {
	if m.form != nil {
		return "Esc: cancel | Enter: contribute"
	}

	return "Esc: back | c: contribute | r: refresh"
}

func (m GoalsModel) Init() tea.Cmd {
	return nil
}

func (m GoalsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case contributedMsg:
		m.form = nil
		m.table.Focus()

		switch {
		case msg.err != nil:
			m.status = m.theme.bad(fmt.Sprintf("Error: %v", msg.err))
		case msg.goal.IsCompleted:
			m.status = m.theme.good(fmt.Sprintf("%s reached its target!", msg.goal.Name))
		default:
			m.status = fmt.Sprintf("%s is at %s.", msg.goal.Name, percent(msg.goal.Progress()))
		}

		m.reload()

		return m, nil

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.table.SetHeight(msg.Height - 10)

		return m, nil
	}

	if m.form != nil {
		return m.updateForm(msg)
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.status = ""
			m.reload()

			return m, nil
		case "c":
			return m.startContribution()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m GoalsModel) startContribution() (tea.Model, tea.Cmd) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.goals) {
		return m, nil
	}

	m.amount = new(string)
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title("Contribute to " + m.goals[idx].Name).
				Placeholder("50").
				Value(m.amount).
				Validate(validateAmount),
		),
	).WithWidth(45).WithShowHelp(false)

	m.table.Blur()

	return m, m.form.Init()
}

func (m GoalsModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	if m.form.State == huh.StateCompleted {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.contributeCmd()
}

func (m GoalsModel) View() string {
	content := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(m.theme.Muted).
		Render(m.table.View())

	if len(m.goals) == 0 {
		content = faint("No goals yet. Create them through the API or on another device.")
	}

	if m.form != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(m.theme.Accent).
			Render(m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = m.status + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *GoalsModel) reload() {
	m.goals = m.store.Goals()

	rows := make([]table.Row, 0, len(m.goals))
	for _, g := range m.goals {
		deadline := ""
		if g.TargetDate != nil {
			deadline = FormatDate(*g.TargetDate)
		}

		done := ""
		if g.IsCompleted {
			done = "✓"
		}

		rows = append(rows, table.Row{
			done,
			g.Name,
			FormatAmount(g.CurrentAmount),
			FormatAmount(g.TargetAmount),
			percent(g.Progress()),
			deadline,
		})
	}

	m.table.SetRows(rows)
}

type contributedMsg struct {
	goal goal.Goal
	err  error
}

func (m GoalsModel) contributeCmd() tea.Cmd {
	id := m.goals[m.table.Cursor()].ID
	amount, _ := decimal.NewFromString(strings.TrimSpace(*m.amount))
	store := m.store

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		g, err := store.Contribute(ctx, id, amount)

		return contributedMsg{goal: g, err: err}
	}
}

func percent(p decimal.Decimal) string {
	return p.Shift(2).StringFixed(0) + "%"
}

func tableStyles(theme Theme) table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.Muted).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(theme.Accent).
		Bold(false)

	return s
}
