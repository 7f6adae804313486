package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrJamesThe3rd/finsync/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/finsync/internal/app"
	"github.com/MrJamesThe3rd/finsync/internal/auth"
	"github.com/MrJamesThe3rd/finsync/internal/config"
)

type model struct {
	app   *app.App
	theme view.Theme

	currentView View
	notice      string

	txView      view.TransactionsModel
	addView     view.AddModel
	budgetsView view.BudgetsModel
	goalsView   view.GoalsModel
	syncView    view.SyncModel
	syncActive  bool
}

type View int

const (
	ViewMenu         View = 0
	ViewTransactions View = 1
	ViewAdd          View = 2
	ViewBudgets      View = 3
	ViewGoals        View = 4
	ViewSync         View = 5
)

func newModel(a *app.App, notice string) model {
	theme := view.DetectTheme()

	return model{
		app:         a,
		theme:       theme,
		currentView: ViewMenu,
		notice:      notice,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.stopSync()
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewTransactions
				m.txView = view.NewTransactionsModel(m.app.Finance, m.theme)

				return m, m.txView.Init()
			case "2":
				m.currentView = ViewAdd
				m.addView = view.NewAddModel(m.app.Finance, m.theme)

				return m, m.addView.Init()
			case "3":
				m.currentView = ViewBudgets
				m.budgetsView = view.NewBudgetsModel(m.app.Insights, m.theme)

				return m, m.budgetsView.Init()
			case "4":
				m.currentView = ViewGoals
				m.goalsView = view.NewGoalsModel(m.app.Goals, m.theme)

				return m, m.goalsView.Init()
			case "5":
				m.currentView = ViewSync
				m.syncView = view.NewSyncModel(m.app.Sync, m.theme)
				m.syncActive = true

				return m, m.syncView.Start()
			}
		}
	case view.BackMsg:
		m.stopSync()
		m.currentView = ViewMenu

		return m, nil
	}

	switch m.currentView {
	case ViewTransactions:
		var newModel tea.Model
		newModel, cmd = m.txView.Update(msg)
		m.txView = newModel.(view.TransactionsModel)
	case ViewAdd:
		var newModel tea.Model
		newModel, cmd = m.addView.Update(msg)
		m.addView = newModel.(view.AddModel)
	case ViewBudgets:
		var newModel tea.Model
		newModel, cmd = m.budgetsView.Update(msg)
		m.budgetsView = newModel.(view.BudgetsModel)
	case ViewGoals:
		var newModel tea.Model
		newModel, cmd = m.goalsView.Update(msg)
		m.goalsView = newModel.(view.GoalsModel)
	case ViewSync:
		var newModel tea.Model
		newModel, cmd = m.syncView.Update(msg)
		m.syncView = newModel.(view.SyncModel)
	}

	return m, cmd
}

func (m *model) stopSync() {
	if m.syncActive {
		m.syncView.Stop()
		m.syncActive = false
	}
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return m.menuView()
	case ViewTransactions:
		return m.withHelp(m.txView.View(), m.txView.ShortHelp())
	case ViewAdd:
		return m.withHelp(m.addView.View(), m.addView.ShortHelp())
	case ViewBudgets:
		return m.withHelp(m.budgetsView.View(), m.budgetsView.ShortHelp())
	case ViewGoals:
		return m.withHelp(m.goalsView.View(), m.goalsView.ShortHelp())
	case ViewSync:
		return m.withHelp(m.syncView.View(), m.syncView.ShortHelp())
	}

	return "Unknown View"
}

func (m model) menuView() string {
	status := m.app.Sync.Status()

	syncLine := "offline"
	switch {
	case m.app.Sync.UserID() == "":
	case status.IsSyncing:
		syncLine = "syncing…"
	case status.Error != "":
		syncLine = "sync error: " + status.Error
	case status.LastSync != nil:
		syncLine = "synced " + status.LastSync.Local().Format("15:04")
	default:
		syncLine = "signed in"
	}

	menu := fmt.Sprintf("%s  %s\n\n", lipgloss.NewStyle().Bold(true).Render(m.app.Config.App.Name),
		lipgloss.NewStyle().Faint(true).Render(syncLine)) +
		"1. Transactions\n" +
		"2. Add Transaction\n" +
		"3. Budgets & Insights\n" +
		"4. Goals\n" +
		"5. Cloud Sync\n\n" +
		"q. Quit"

	if m.notice != "" {
		menu += "\n\n" + lipgloss.NewStyle().Foreground(m.theme.Bad).Render(m.notice)
	}

	return lipgloss.NewStyle().Padding(2).Render(menu)
}

func (m model) withHelp(body, help string) string {
	return body + "\n" + lipgloss.NewStyle().Faint(true).PaddingLeft(1).Render(help)
}

// newLogger writes JSON logs to a rotated file so they stay out of the UI.
func newLogger(cfg *config.Config) (*slog.Logger, func() error) {
	w := &lumberjack.Logger{
		Filename:   cfg.LogFilePath(),
		MaxSize:    5,
		MaxBackups: 3,
		MaxAge:     28,
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel()})), w.Close
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.Local.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	logger, closeLog := newLogger(cfg)
	defer closeLog()

	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	notice := ""

	switch err := a.StartSync(ctx); {
	case err == nil:
	case errors.Is(err, auth.ErrNoSession):
		notice = "Not signed in; working offline. Run `finsync login` to sync."
	default:
		logger.Warn("initial sync failed", "error", err)
		notice = "Initial sync failed: " + err.Error()
	}

	_, err = tea.NewProgram(newModel(a, notice), tea.WithAltScreen()).Run()

	return err
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "finsync-tui:", err)
		os.Exit(1)
	}
}
