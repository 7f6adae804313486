package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/finsync/internal/dateparse"
	"github.com/MrJamesThe3rd/finsync/internal/finance"
)

func newAddCmd(e *env) *cobra.Command {
	var (
		date string
		push bool
	)

	cmd := &cobra.Command{
		Use:   "add <income|expense> <amount> <category> [description...]",
		Short: "Record a transaction locally",
		Example: `  finsync add expense 12.50 food lunch with ana
  finsync add income 2100 salary --date "last friday" --push`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			typ := finance.Type(strings.ToLower(args[0]))
			if !typ.Valid() {
				return fmt.Errorf("type must be income or expense, got %q", args[0])
			}

			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}

			when, err := dateparse.Parse(date, time.Now())
			if err != nil {
				return err
			}

			open := e.open
			if push {
				// The first session on a device pulls, which would replace the new row.
				open = e.session
			}

			a, err := open(ctx)
			if err != nil {
				return err
			}

			tx, err := a.Finance.AddTransaction(ctx, finance.CreateParams{
				Amount:      amount,
				Type:        typ,
				Category:    args[2],
				Description: strings.Join(args[3:], " "),
				Date:        when,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s on %s (%s)\n",
				okMark, tx.Type, tx.Amount.StringFixed(2), tx.Category, tx.Date.Format(time.DateOnly), tx.ID)

			if !push {
				return nil
			}

			if err := a.Sync.SyncNow(ctx); err != nil {
				return fmt.Errorf("push failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s pushed\n", okMark)

			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", `date as YYYY-MM-DD or a phrase like "yesterday" (default today)`)
	cmd.Flags().BoolVar(&push, "push", false, "push to the remote right away")

	return cmd
}
