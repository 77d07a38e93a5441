package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/koustreak/quizmeet/internal/bootstrap"
	"github.com/koustreak/quizmeet/internal/config"
	"github.com/koustreak/quizmeet/internal/database"
	"github.com/koustreak/quizmeet/internal/errs"
	"github.com/koustreak/quizmeet/internal/migrate"
	"github.com/koustreak/quizmeet/internal/schema"
	"github.com/spf13/cobra"
)

// requiredTables must exist once every migration has run.
var requiredTables = []string{"schema_migrations", "tournaments"}

func MigrateCmd(load func() (*config.Config, error)) *cobra.Command {
	var status, verify bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: "Apply the bundled schema migrations over a single serialized connection.\n" +
			"Run this as a deployment step before serve.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := cfg.Logger(os.Stderr)

			pool, err := bootstrap.Open(cfg.Database.URLVar, database.ModeSerialized, bootstrap.WithLogger(log))
			if err != nil {
				return err
			}
			defer pool.Close()

			set, err := migrate.Embedded(bootstrap.DialectFor(pool.Config()))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if status {
				return pool.WithConn(ctx, func(ctx context.Context, conn database.Conn) error {
					st, err := migrate.NewRunner(log).Status(ctx, conn, set)
					if err != nil {
						return err
					}
					for _, m := range st.Applied {
						fmt.Fprintf(out, "applied  %s\n", m.ID())
					}
					for _, m := range st.Pending {
						fmt.Fprintf(out, "pending  %s\n", m.ID())
					}
					for _, v := range st.Unknown {
						fmt.Fprintf(out, "unknown  %04d\n", v)
					}
					return nil
				})
			}

			done, err := migrate.Apply(ctx, pool, set, log)
			for _, id := range done {
				fmt.Fprintf(out, "applied  %s\n", id)
			}
			if err != nil {
				return err
			}
			if len(done) == 0 {
				fmt.Fprintln(out, "nothing to apply")
			}

			if !verify {
				return nil
			}
			return pool.WithConn(ctx, func(ctx context.Context, conn database.Conn) error {
				missing, err := schema.Missing(ctx, conn, requiredTables...)
				if err != nil {
					return err
				}
				if len(missing) > 0 {
					return errs.New(errs.ErrKindMigrationFailed, "tables missing after migration: "+strings.Join(missing, ", "))
				}
				fmt.Fprintln(out, "schema verified")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "list applied and pending migrations without applying")
	cmd.Flags().BoolVar(&verify, "verify", false, "check the expected tables exist after applying")
	return cmd
}
