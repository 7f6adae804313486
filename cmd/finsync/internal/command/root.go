// Package command implements the finsync command line.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/finsync/internal/app"
	"github.com/MrJamesThe3rd/finsync/internal/config"
)

var (
	okMark   = color.New(color.FgGreen, color.Bold).Sprint("✓")
	warnMark = color.New(color.FgYellow, color.Bold).Sprint("!")
	errLabel = color.New(color.FgRed, color.Bold).Sprint("error:")
)

// env carries what the subcommands share. The app is opened on first use so
// that commands like migrate never take the data lock.
type env struct {
	cfg *config.Config
	app *app.App
}

func (e *env) open(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}

	a, err := app.Open(ctx, e.cfg, slog.Default())
	if err != nil {
		return nil, err
	}

	e.app = a

	return a, nil
}

// session opens the app and starts a sync session for the signed-in user.
func (e *env) session(ctx context.Context) (*app.App, error) {
	if !e.cfg.Sync.Enabled {
		return nil, errors.New("cloud sync is disabled (SYNC_ENABLED=false)")
	}

	a, err := e.open(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.StartSync(ctx); err != nil {
		return nil, err
	}

	return a, nil
}

func (e *env) close() {
	if e.app == nil {
		return
	}

	if err := e.app.Close(); err != nil {
		slog.Warn("failed to close local data", "error", err)
	}
}

func Execute() error {
	e := &env{}
	defer e.close()

	root := newRootCmd(e)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, errLabel, err)
		return err
	}

	return nil
}

func newRootCmd(e *env) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "finsync",
		Short: "Local-first finance tracker with cloud sync",
		Long: `finsync keeps transactions, budgets, goals and settings on this device
and mirrors them to the remote table store of the signed-in user.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			level := cfg.LogLevel()
			if verbose {
				level = slog.LevelDebug
			}

			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			e.cfg = cfg

			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		newPushCmd(e),
		newPullCmd(e),
		newStatusCmd(e),
		newMigrateCmd(e),
		newLoginCmd(e),
		newLogoutCmd(e),
		newAddCmd(e),
	)

	return root
}
