package view

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/dateparse"
	"github.com/MrJamesThe3rd/finsync/internal/finance"
)

// AddModel records a new transaction through a form.
type AddModel struct {
	CommonModel
	store *finance.Store
	theme Theme
	now   func() time.Time

	form   *huh.Form
	fields *addFields
	status string
}

// addFields is shared by value copies of AddModel so the form bindings
// survive Update.
type addFields struct {
	typ      finance.Type
	amount   string
	category string
	desc     string
	date     string
}

func NewAddModel(store *finance.Store, theme Theme) AddModel {
	m := AddModel{store: store, theme: theme, now: time.Now}
	m.resetForm()

	return m
}

func (m AddModel) Title() string     { return "Add Transaction" }
func (m AddModel) ShortHelp() string { return "Esc: back | Enter/Tab: navigate form" }

func (m AddModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m *AddModel) resetForm() {
	f := &addFields{typ: finance.TypeExpense}
	m.fields = f
	now := m.now

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[finance.Type]().
				Key("type").
				Title("Type").
				Options(
					huh.NewOption("Expense", finance.TypeExpense),
					huh.NewOption("Income", finance.TypeIncome),
				).
				Value(&f.typ),

			huh.NewInput().
				Key("amount").
				Title("Amount").
				Placeholder("12.50").
				Value(&f.amount).
				Validate(validateAmount),

			huh.NewInput().
				Key("category").
				Title("Category").
				Value(&f.category).
				Validate(notEmpty("category")),

			huh.NewInput().
				Key("description").
				Title("Description (optional)").
				Value(&f.desc),

			huh.NewInput().
				Key("date").
				Title("Date").
				Placeholder("today, yesterday, 2024-06-01").
				Value(&f.date).
				Validate(func(s string) error {
					_, err := dateparse.Parse(s, now())
					return err
				}),
		),
	).WithWidth(50).WithShowHelp(false)
}

func (m AddModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case addedMsg:
		if msg.err != nil {
			m.status = m.theme.bad(fmt.Sprintf("Error: %v", msg.err))
		} else {
			m.status = m.theme.good(fmt.Sprintf("Added %s %s in %s on %s.",
				msg.tx.Type, FormatAmount(msg.tx.Amount), msg.tx.Category, FormatDate(msg.tx.Date)))
		}

		m.resetForm()

		return m, m.form.Init()

	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}
	}

	// Completed forms wait for addedMsg.
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

	return m, m.saveCmd()
}

func (m AddModel) View() string {
	content := m.form.View()
	if m.status != "" {
		content = m.status + "\n\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

type addedMsg struct {
	tx  finance.Transaction
	err error
}

func (m AddModel) saveCmd() tea.Cmd {
	f := m.fields

	date, err := dateparse.Parse(f.date, m.now())
	if err != nil {
		return func() tea.Msg { return addedMsg{err: err} }
	}

	amount, _ := decimal.NewFromString(strings.TrimSpace(f.amount))
	params := finance.CreateParams{
		Amount:      amount,
		Type:        f.typ,
		Category:    strings.TrimSpace(f.category),
		Description: strings.TrimSpace(f.desc),
		Date:        date,
	}
	store := m.store

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		tx, err := store.AddTransaction(ctx, params)

		return addedMsg{tx: tx, err: err}
	}
}
