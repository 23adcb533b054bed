package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect PostgreSQL schema migrations",
	}
	cmd.PersistentFlags().String("path", "migrations", "Path to migration files")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate, _ []string) error {
				if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("up failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrated up successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate, _ []string) error {
				if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("down failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrated down successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate, _ []string) error {
				version, dirty, err := m.Version()
				if err != nil {
					return fmt.Errorf("version failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Version: %d, Dirty: %t\n", version, dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version: %w", err)
				}
				if err := m.Force(v); err != nil {
					return fmt.Errorf("force failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forced version to %d\n", v)
				return nil
			}),
		},
	)
	return cmd
}

func withMigrator(run func(cmd *cobra.Command, m *migrate.Migrate, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		v := viperForCmd(cmd)
		cfg, _ := loadConfig(v)
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}

		m, err := migrate.New("file://"+v.GetString("path"), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration failed to initialize: %w", err)
		}
		defer m.Close()
		return run(cmd, m, args)
	}
}
