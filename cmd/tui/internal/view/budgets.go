package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/finsync/internal/insight"
)

const maxAnomalies = 5

// BudgetsModel shows spending against each budget for the current period,
// plus the most recent unusual expenses. Left and right step through periods.
type BudgetsModel struct {
	CommonModel
	insights *insight.Service
	theme    Theme

	at        time.Time
	table     table.Model
	usage     []insight.Usage
	anomalies []insight.Anomaly
}

func NewBudgetsModel(insights *insight.Service, theme Theme) BudgetsModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Category", Width: 18},
			{Title: "Period", Width: 8},
			{Title: "Spent", Width: 12},
			{Title: "Limit", Width: 12},
			{Title: "Left", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles(theme))

	m := BudgetsModel{insights: insights, theme: theme, at: time.Now(), table: t}
	m.reload()

	return m
}

func (m BudgetsModel) Title() string     { return "Budgets" }
func (m BudgetsModel) ShortHelp() string { return "Esc: back | ←/→: month | r: refresh" }

func (m BudgetsModel) Init() tea.Cmd {
	return nil
}

func (m BudgetsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "left", "h":
			m.at = m.at.AddDate(0, -1, 0)
			m.reload()

			return m, nil
		case "right", "l":
			m.at = m.at.AddDate(0, 1, 0)
			m.reload()

			return m, nil
		case "r":
			m.reload()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m *BudgetsModel) reload() {
	m.usage = m.insights.BudgetUsage(m.at)
	m.anomalies = m.insights.Anomalies()

	rows := make([]table.Row, 0, len(m.usage))
	for _, u := range m.usage {
		left := FormatAmount(u.Remaining)
		if u.Over {
			left = "over " + FormatAmount(u.Remaining.Neg())
		}

		rows = append(rows, table.Row{
			u.Category,
			string(u.Period),
			FormatAmount(u.Spent),
			FormatAmount(u.Limit),
			left,
		})
	}

	m.table.SetRows(rows)
}

func (m BudgetsModel) View() string {
	header := fmt.Sprintf("Budgets for %s", m.theme.accent(m.at.Format("January 2006")))

	body := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(m.theme.Muted).
		Render(m.table.View())

	if len(m.usage) == 0 {
		body = faint("No budgets yet.")
	}

	var over []string
	for _, u := range m.usage {
		if u.Over {
			over = append(over, u.Category)
		}
	}

	if len(over) > 0 {
		body += "\n" + m.theme.bad("Over budget: "+strings.Join(over, ", "))
	}

	return lipgloss.NewStyle().Padding(1).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().PaddingBottom(1).Render(header),
			body,
			"",
			m.anomaliesView(),
		),
	)
}

func (m BudgetsModel) anomaliesView() string {
	if len(m.anomalies) == 0 {
		return faint("No unusual expenses.")
	}

	var b strings.Builder

	b.WriteString("Unusual expenses:\n")

	for _, a := range m.anomalies[:min(len(m.anomalies), maxAnomalies)] {
		fmt.Fprintf(&b, "  %s  %s  %s  %s\n",
			FormatDate(a.Transaction.Date),
			m.theme.bad(FormatAmount(a.Transaction.Amount)),
			a.Transaction.Category,
			faint("usually under "+FormatAmount(a.Threshold)),
		)
	}

	return b.String()
}
