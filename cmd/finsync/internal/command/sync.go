package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPushCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload local transactions, budgets, goals and settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := e.session(ctx)
			if err != nil {
				return fmt.Errorf("starting sync: %w", err)
			}

			if err := a.Sync.SyncNow(ctx); err != nil {
				return fmt.Errorf("push failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s pushed %d transactions, %d budgets, %d goals\n",
				okMark, len(a.Finance.Transactions()), len(a.Finance.Budgets()), len(a.Goals.Goals()))

			return nil
		},
	}
}

func newPullCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Replace local data with the remote copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := e.session(ctx)
			if err != nil {
				return fmt.Errorf("starting sync: %w", err)
			}

			if err := a.Sync.LoadFromCloud(ctx); err != nil {
				return fmt.Errorf("pull failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s loaded %d transactions, %d budgets, %d goals\n",
				okMark, len(a.Finance.Transactions()), len(a.Finance.Budgets()), len(a.Goals.Goals()))

			return nil
		},
	}
}
