package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/lib/pq" // registers the postgres driver
	"github.com/spf13/cobra"

	"github.com/txn2/configs-api/pkg/database/migrate"
	"github.com/txn2/configs-api/pkg/platform"
)

var errNoDSN = errors.New("database.dsn is required for migrations")

// openDB is replaced in tests.
var openDB = func(dsn string) (*sql.DB, error) { return sql.Open("postgres", dsn) }

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *sql.DB, _ []string) error {
				if err := migrate.Run(db); err != nil {
					return err
				}
				return printVersion(cmd, db)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *sql.DB, _ []string) error {
				if err := migrate.Down(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all migrations rolled back")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations, or roll back when N is negative",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(cmd *cobra.Command, db *sql.DB, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q: %w", args[0], err)
				}
				if err := migrate.Steps(db, n); err != nil {
					return err
				}
				return printVersion(cmd, db)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *sql.DB, _ []string) error {
				return printVersion(cmd, db)
			}),
		},
	)
	return cmd
}

// withDB opens the configured database for the duration of fn.
func withDB(fn func(*cobra.Command, *sql.DB, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		platform.SetupLogging(cfg.Logging, cmd.ErrOrStderr())
		if cfg.Database.DSN == "" {
			return errNoDSN
		}

		db, err := openDB(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() { _ = db.Close() }()

		return fn(cmd, db, args)
	}
}

func printVersion(cmd *cobra.Command, db *sql.DB) error {
	version, dirty, err := migrate.Version(db)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
