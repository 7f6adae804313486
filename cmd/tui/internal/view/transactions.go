package view

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/finance"
)

type txState int

const (
	txStateTimeframe txState = iota
	txStateList
	txStateEditing
)

// txItem wraps a transaction to implement list.Item.
type txItem struct {
	tx    finance.Transaction
	theme Theme
}

func (i txItem) Title() string {
	amount := FormatAmount(i.tx.Amount)
	if i.tx.Type == finance.TypeExpense {
		amount = i.theme.bad("-" + amount)
	} else {
		amount = i.theme.good("+" + amount)
	}

	return fmt.Sprintf("%s  %12s  %s", FormatDate(i.tx.Date), amount, i.tx.Category)
}

func (i txItem) Description() string {
	return i.tx.Description
}

func (i txItem) FilterValue() string {
	return i.tx.Category + " " + i.tx.Description
}

type TransactionsModel struct {
	CommonModel
	store *finance.Store
	theme Theme

	state           txState
	timeframePicker TimeframePicker
	list            list.Model
	form            *huh.Form
	selected        finance.Transaction

	filter finance.ListFilter
	status string
	fields *editFields
}

type editFields struct {
	category string
	desc     string
	amount   string
}

func NewTransactionsModel(store *finance.Store, theme Theme) TransactionsModel {
	l := list.New([]list.Item{}, txItemDelegate{theme: theme}, 0, 0)
	l.Title = "Transactions"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(true)

	return TransactionsModel{
		store:           store,
		theme:           theme,
		timeframePicker: NewTimeframePicker(TimeframeThisMonth),
		list:            l,
	}
}

func (m TransactionsModel) Title() string { return "Transactions" }

func (m TransactionsModel) ShortHelp() string {
	switch m.state {
	case txStateTimeframe:
		return "Esc: back | Enter: select"
	case txStateList:
		return "Esc: back | Enter: edit | x: delete | t: timeframe | /: filter"
	case txStateEditing:
		return "Esc: cancel | Enter/Tab: navigate form"
	}

	return ""
}

func (m TransactionsModel) Init() tea.Cmd {
	return nil
}

func (m TransactionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TimeframeSelectedMsg:
		m.filter = finance.ListFilter{}
		if !msg.All {
			m.filter.StartDate = &msg.Start
			m.filter.EndDate = &msg.End
		}

		m.state = txStateList
		m.status = ""
		m.reload()

		return m, nil

	case txSavedMsg:
		m.state = txStateList
		m.form = nil
		m.status = msg.status

		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		m.reload()

		return m, nil

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)

		return m, nil
	}

	switch m.state {
	case txStateTimeframe:
		return m.updateTimeframe(msg)
	case txStateList:
		return m.updateList(msg)
	case txStateEditing:
		return m.updateEditing(msg)
	}

	return m, nil
}

func (m TransactionsModel) updateTimeframe(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc && m.timeframePicker.IsSelecting() {
			return m, Back
		}
	}

	var cmd tea.Cmd
	m.timeframePicker, cmd = m.timeframePicker.Update(msg)

	return m, cmd
}

func (m TransactionsModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "enter":
			return m.startEditing()
		case "t":
			m.state = txStateTimeframe
			return m, nil
		case "x":
			if item, ok := m.list.SelectedItem().(txItem); ok {
				return m, m.deleteCmd(item.tx)
			}

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	return m, cmd
}

func (m TransactionsModel) startEditing() (tea.Model, tea.Cmd) {
	item, ok := m.list.SelectedItem().(txItem)
	if !ok {
		return m, nil
	}

	m.selected = item.tx
	f := &editFields{
		category: item.tx.Category,
		desc:     item.tx.Description,
		amount:   item.tx.Amount.String(),
	}
	m.fields = f

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title("Amount").
				Value(&f.amount).
				Validate(validateAmount),

			huh.NewInput().
				Key("category").
				Title("Category").
				Value(&f.category).
				Validate(notEmpty("category")),

			huh.NewInput().
				Key("description").
				Title("Description").
				Value(&f.desc),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = txStateEditing

	return m, m.form.Init()
}

func (m TransactionsModel) updateEditing(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = txStateList
		m.form = nil

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

	return m, m.saveCmd()
}

func (m TransactionsModel) View() string {
	switch m.state {
	case txStateTimeframe:
		return lipgloss.NewStyle().Padding(1).Render(m.timeframePicker.View(m.theme))

	case txStateList:
		statusLine := ""
		if m.status != "" {
			statusLine = faint(m.status) + "\n"
		}

		return lipgloss.NewStyle().Padding(1).Render(statusLine + m.list.View())

	case txStateEditing:
		if m.form == nil {
			return ""
		}

		info := lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(m.theme.Muted).
			Padding(0, 1).
			Render(fmt.Sprintf("Date: %s  |  Type: %s  |  ID: %s",
				FormatDate(m.selected.Date), m.selected.Type, m.selected.ID))

		return lipgloss.NewStyle().Padding(1).Render(info + "\n" + m.form.View())
	}

	return ""
}

func (m *TransactionsModel) reload() {
	txs := m.store.ListTransactions(m.filter)

	items := make([]list.Item, len(txs))
	for i, tx := range txs {
		items[i] = txItem{tx: tx, theme: m.theme}
	}

	m.list.SetItems(items)

	if len(txs) == 0 && m.status == "" {
		m.status = "No transactions found."
	}
}

type txSavedMsg struct {
	status string
	err    error
}

func (m TransactionsModel) saveCmd() tea.Cmd {
	f := m.fields
	tx := m.selected
	tx.Category = strings.TrimSpace(f.category)
	tx.Description = strings.TrimSpace(f.desc)
	amount, _ := decimal.NewFromString(strings.TrimSpace(f.amount))
	tx.Amount = amount
	store := m.store

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		if err := store.UpdateTransaction(ctx, tx); err != nil {
			return txSavedMsg{err: err}
		}

		return txSavedMsg{status: "Saved."}
	}
}

func (m TransactionsModel) deleteCmd(tx finance.Transaction) tea.Cmd {
	store := m.store

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		if err := store.DeleteTransaction(ctx, tx.ID); err != nil {
			return txSavedMsg{err: err}
		}

		return txSavedMsg{status: fmt.Sprintf("Deleted %s %s.", tx.Category, FormatAmount(tx.Amount))}
	}
}

func validateAmount(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return errors.New("not a number")
	}

	if !d.IsPositive() {
		return errors.New("must be positive")
	}

	return nil
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}

		return nil
	}
}

// txItemDelegate renders items in the list.
type txItemDelegate struct {
	theme Theme
}

func (d txItemDelegate) Height() int                             { return 2 }
func (d txItemDelegate) Spacing() int                            { return 0 }
func (d txItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d txItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(txItem)
	if !ok {
		return
	}

	title := "  " + i.Title()
	if index == m.Index() {
		title = d.theme.accent("> ") + i.Title()
	}

	fmt.Fprintf(w, "  %s\n", title)

	if i.Description() == "" {
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "      %s\n", faint(i.Description()))
}

