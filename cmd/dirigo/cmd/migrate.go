package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dirigovotes/dirigo/internal/config"
	"github.com/dirigovotes/dirigo/internal/db"
	"github.com/dirigovotes/dirigo/internal/logger"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *db.Migrator) error {
			n, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s)\n", n)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: withMigrator(func(cmd *cobra.Command, m *db.Migrator) error {
			version, err := m.Down(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("rolled back version %d\n", version)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *db.Migrator) error {
			states, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "VERSION\tSTATE\tFILE")
			for _, s := range states {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, state, s.File)
			}
			return w.Flush()
		}),
	})

	return cmd
}

func withMigrator(run func(*cobra.Command, *db.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		opts := cfg.Logging()
		opts.SentryDSN = ""
		logger.Init(opts)

		database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer func() { _ = db.Close(database) }()

		m, err := db.NewMigrator(database.DB, cfg.DBDriver)
		if err != nil {
			return err
		}
		return run(cmd, m)
	}
}
