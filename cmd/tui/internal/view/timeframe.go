package view

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrJamesThe3rd/finsync/internal/dateparse"
	"github.com/MrJamesThe3rd/finsync/internal/finance"
	"github.com/MrJamesThe3rd/finsync/internal/insight"
)

// Timeframe is a predefined or custom date range over the transaction list.
type Timeframe int

const (
	TimeframeThisWeek Timeframe = iota
	TimeframeLastWeek
	TimeframeThisMonth
	TimeframeLastMonth
	TimeframeAll
	TimeframeCustom
)

func (t Timeframe) String() string {
	switch t {
	case TimeframeThisWeek:
		return "This Week"
	case TimeframeLastWeek:
		return "Last Week"
	case TimeframeThisMonth:
		return "This Month"
	case TimeframeLastMonth:
		return "Last Month"
	case TimeframeAll:
		return "All Time"
	case TimeframeCustom:
		return "Custom Range"
	}

	return "Unknown"
}

// DateRange returns the inclusive calendar days covered by tf. Weeks start
// on Monday, matching budget periods. It reports false for TimeframeAll and
// TimeframeCustom.
func DateRange(tf Timeframe, now time.Time) (time.Time, time.Time, bool) {
	var (
		period = finance.PeriodMonthly
		at     = now
	)

	switch tf {
	case TimeframeThisWeek:
		period = finance.PeriodWeekly
	case TimeframeLastWeek:
		period = finance.PeriodWeekly
		at = now.AddDate(0, 0, -7)
	case TimeframeThisMonth:
	case TimeframeLastMonth:
		start, _ := insight.PeriodBounds(finance.PeriodMonthly, now)
		at = start.AddDate(0, 0, -1)
	default:
		return time.Time{}, time.Time{}, false
	}

	start, end := insight.PeriodBounds(period, at)

	return start, end.AddDate(0, 0, -1), true
}

// TimeframeSelectedMsg is emitted when the user has selected a valid date range.
// Start and End are zero values when All is true.
type TimeframeSelectedMsg struct {
	Start time.Time
	End   time.Time
	All   bool
}

type timeframeState int

const (
	timeframeStateSelect timeframeState = iota
	timeframeStateCustom
)

// TimeframePicker selects the range shown by the transaction list.
type TimeframePicker struct {
	state    timeframeState
	selected Timeframe
	now      func() time.Time

	inputs     [2]textinput.Model
	focusIndex int

	err error
}

func NewTimeframePicker(initial Timeframe) TimeframePicker {
	var inputs [2]textinput.Model

	for i, prompt := range []string{"From: ", "To:   "} {
		in := textinput.New()
		in.Placeholder = "2024-06-01 or last monday"
		in.CharLimit = 32
		in.Width = 28
		in.Prompt = prompt
		inputs[i] = in
	}

	return TimeframePicker{
		selected: initial,
		now:      time.Now,
		inputs:   inputs,
	}
}

func (m TimeframePicker) Update(msg tea.Msg) (TimeframePicker, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)

	switch {
	case ok && m.state == timeframeStateSelect:
		return m.updateSelect(keyMsg)
	case ok && m.state == timeframeStateCustom:
		return m.updateCustom(keyMsg)
	}

	return m, nil
}

func (m TimeframePicker) updateSelect(msg tea.KeyMsg) (TimeframePicker, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selected > TimeframeThisWeek {
			m.selected--
		}
	case "down", "j":
		if m.selected < TimeframeCustom {
			m.selected++
		}
	case "enter":
		switch m.selected {
		case TimeframeCustom:
			m.state = timeframeStateCustom
			m.focusIndex = 0
			m.inputs[0].Focus()

			return m, textinput.Blink
		case TimeframeAll:
			return m, selected(TimeframeSelectedMsg{All: true})
		}

		start, end, _ := DateRange(m.selected, m.now())

		return m, selected(TimeframeSelectedMsg{Start: start, End: end})
	}

	return m, nil
}

func (m TimeframePicker) updateCustom(msg tea.KeyMsg) (TimeframePicker, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		m.inputs[m.focusIndex].Blur()
		m.focusIndex = 1 - m.focusIndex
		m.inputs[m.focusIndex].Focus()

		return m, textinput.Blink

	case "enter":
		now := m.now()

		start, err := dateparse.Parse(m.inputs[0].Value(), now)
		if err != nil {
			m.err = fmt.Errorf("start: %w", err)
			return m, nil
		}

		end, err := dateparse.Parse(m.inputs[1].Value(), now)
		if err != nil {
			m.err = fmt.Errorf("end: %w", err)
			return m, nil
		}

		if end.Before(start) {
			start, end = end, start
		}

		m.err = nil

		return m, selected(TimeframeSelectedMsg{Start: start, End: end})

	case "esc":
		m.state = timeframeStateSelect
		m.err = nil

		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)

	return m, cmd
}

func selected(msg TimeframeSelectedMsg) tea.Cmd {
	return func() tea.Msg { return msg }
}

func (m TimeframePicker) View(theme Theme) string {
	errStr := ""
	if m.err != nil {
		errStr = "\n\n" + theme.bad(fmt.Sprintf("Error: %v", m.err))
	}

	if m.state == timeframeStateCustom {
		return fmt.Sprintf(
			"Enter Custom Range:\n\n%s\n%s\n\n%s%s",
			m.inputs[0].View(),
			m.inputs[1].View(),
			faint("Enter: confirm | Tab: switch | Esc: back | empty means today"),
			errStr,
		)
	}

	s := "Select Timeframe:\n\n"
	for i := TimeframeThisWeek; i <= TimeframeCustom; i++ {
		line := "  " + i.String()
		if m.selected == i {
			line = theme.accent("> " + i.String())
		}

		s += line + "\n"
	}

	return s + "\n" + faint("Enter: select | Esc: back") + errStr
}

// IsSelecting reports whether the picker is on the preset list rather than
// the custom inputs.
func (m TimeframePicker) IsSelecting() bool {
	return m.state == timeframeStateSelect
}
