package view

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/finsync/internal/cloudsync"
)

type Syncer interface {
	Status() cloudsync.Status
	SyncNow(ctx context.Context) error
	LoadFromCloud(ctx context.Context) error
	Subscribe(fn func(cloudsync.Status)) (cancel func())
	UserID() string
}

// SyncModel shows the live sync status and runs manual pushes and pulls.
type SyncModel struct {
	CommonModel
	syncer Syncer
	theme  Theme

	updates     chan cloudsync.Status
	done        chan struct{}
	unsubscribe func()

	status  cloudsync.Status
	spinner spinner.Model
	message string
}

func NewSyncModel(syncer Syncer, theme Theme) SyncModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Accent)

	return SyncModel{
		syncer:  syncer,
		theme:   theme,
		status:  syncer.Status(),
		spinner: sp,
	}
}

func (m SyncModel) Title() string     { return "Cloud Sync" }
func (m SyncModel) ShortHelp() string { return "Esc: back | s: push now | l: load from cloud" }

func (m SyncModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Start subscribes to status changes. Updates are dropped while the screen is
// busy rendering the previous one; the next one carries the full state.
func (m *SyncModel) Start() tea.Cmd {
	m.updates = make(chan cloudsync.Status, 1)
	m.done = make(chan struct{})
	updates := m.updates

	m.unsubscribe = m.syncer.Subscribe(func(s cloudsync.Status) {
		select {
		case updates <- s:
		default:
		}
	})

	return tea.Batch(m.spinner.Tick, waitForStatus(updates, m.done))
}

// Stop ends the status subscription. It must be called once per Start.
func (m SyncModel) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		close(m.done)
	}
}

type statusMsg cloudsync.Status

func waitForStatus(updates <-chan cloudsync.Status, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-updates:
			return statusMsg(s)
		case <-done:
			return nil
		}
	}
}

type syncDoneMsg struct {
	action string
	err    error
}

func (m SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = cloudsync.Status(msg)
		return m, waitForStatus(m.updates, m.done)

	case syncDoneMsg:
		m.status = m.syncer.Status()

		switch {
		case msg.err == nil:
			m.message = m.theme.good(msg.action + " finished.")
		case errors.Is(msg.err, cloudsync.ErrSyncInProgress):
			m.message = faint("A sync is already running.")
		case errors.Is(msg.err, cloudsync.ErrForeignData):
			m.message = m.theme.bad("Local data belongs to another account. Press l to load from cloud.")
		case errors.Is(msg.err, cloudsync.ErrNoSession):
			m.message = m.theme.bad("Not signed in. Run `finsync login` first.")
		default:
			m.message = m.theme.bad(fmt.Sprintf("%s failed: %v", msg.action, msg.err))
		}

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "s":
			m.message = ""
			return m, m.runCmd("Push", m.syncer.SyncNow)
		case "l":
			m.message = ""
			return m, m.runCmd("Load from cloud", m.syncer.LoadFromCloud)
		}
	}

	return m, nil
}

func (m SyncModel) runCmd(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		return syncDoneMsg{action: action, err: fn(ctx)}
	}
}

func (m SyncModel) View() string {
	user := m.syncer.UserID()
	if user == "" {
		user = m.theme.bad("not signed in")
	}

	state := m.theme.good("idle")
	if m.status.IsSyncing {
		state = m.spinner.View() + " syncing"
	}

	last := faint("never")
	if m.status.LastSync != nil {
		last = m.status.LastSync.Local().Format(time.DateTime)
	}

	lines := []string{
		"User:      " + user,
		"State:     " + state,
		"Last sync: " + last,
	}

	if m.status.Error != "" {
		lines = append(lines, "Error:     "+m.theme.bad(m.status.Error))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	if m.message != "" {
		content += "\n\n" + m.message
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}
