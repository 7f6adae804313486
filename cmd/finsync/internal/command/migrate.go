package command

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/finsync/internal/config"
	"github.com/MrJamesThe3rd/finsync/internal/remote/postgres"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the remote tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg.Remote.Driver != config.RemotePostgres {
				return errors.New("migrations run against Postgres; set REMOTE_DRIVER=postgres and the DB_* variables")
			}

			if err := postgres.Migrate(postgres.DefaultEngine, e.cfg.ConnectionString()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s remote schema is up to date\n", okMark)

			return nil
		},
	}
}
