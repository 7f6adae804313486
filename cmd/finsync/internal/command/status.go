package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MrJamesThe3rd/finsync/internal/auth"
)

type statusView struct {
	Remote          string `json:"remote" yaml:"remote"`
	SyncEnabled     bool   `json:"sync_enabled" yaml:"sync_enabled"`
	UserID          string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	InitialLoadDone bool   `json:"initial_load_done" yaml:"initial_load_done"`
	Transactions    int    `json:"transactions" yaml:"transactions"`
	Budgets         int    `json:"budgets" yaml:"budgets"`
	Goals           int    `json:"goals" yaml:"goals"`
	SessionError    string `json:"session_error,omitempty" yaml:"session_error,omitempty"`
}

func newStatusCmd(e *env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in user and local data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := e.open(ctx)
			if err != nil {
				return err
			}

			view := statusView{
				Remote:       e.cfg.Remote.Driver,
				SyncEnabled:  e.cfg.Sync.Enabled,
				Transactions: len(a.Finance.Transactions()),
				Budgets:      len(a.Finance.Budgets()),
				Goals:        len(a.Goals.Goals()),
			}

			s, err := a.Session(ctx)
			switch {
			case err == nil:
				view.UserID = s.UserID

				if view.InitialLoadDone, err = a.Sync.InitialLoadDone(ctx, s.UserID); err != nil {
					return err
				}
			case errors.Is(err, auth.ErrNoSession):
			default:
				view.SessionError = err.Error()
			}

			return writeStatus(cmd.OutOrStdout(), output, view)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")

	return cmd
}

func writeStatus(w io.Writer, format string, v statusView) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(v); err != nil {
			return err
		}

		return enc.Close()
	case "text":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	bold := color.New(color.Bold).SprintFunc()

	user := color.YellowString("not signed in")
	if v.UserID != "" {
		user = v.UserID
	}

	if v.SessionError != "" {
		user = color.RedString(v.SessionError)
	}

	gate := warnMark + " waiting for first pull"
	if v.InitialLoadDone {
		gate = okMark + " initial load done"
	}

	fmt.Fprintf(w, "%s %s\n", bold("user:"), user)
	fmt.Fprintf(w, "%s %s (sync enabled: %t)\n", bold("remote:"), v.Remote, v.SyncEnabled)

	if v.UserID != "" {
		fmt.Fprintf(w, "%s %s\n", bold("gate:"), gate)
	}

	fmt.Fprintf(w, "%s %d transactions, %d budgets, %d goals\n", bold("local:"), v.Transactions, v.Budgets, v.Goals)

	return nil
}
