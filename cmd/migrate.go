package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	schema "github.com/company-explorer/explorer/pkg/db"
	"github.com/company-explorer/explorer/pkg/storage"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations to the SQLite store",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show migration status without applying migrations",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if !c.Bool("status") {
				n, err := applyMigrations(ctx, c.String("config"))
				if err != nil {
					return err
				}
				fmt.Printf("Applied %d migrations\n", n)
			}
			status, err := migrationStatus(ctx, c.String("config"))
			if err != nil {
				return err
			}
			printMigrationStatus(os.Stdout, status)
			return nil
		},
	}
}

func migrationStatus(ctx context.Context, configPath string) (*schema.MigrationStatus, error) {
	var status *schema.MigrationStatus
	err := withMigrations(configPath, func(m *schema.MigrationManager) error {
		var err error
		status, err = m.GetMigrationStatus(ctx)
		return err
	})
	return status, err
}

func applyMigrations(ctx context.Context, configPath string) (int, error) {
	var n int
	err := withMigrations(configPath, func(m *schema.MigrationManager) error {
		var err error
		n, err = m.ApplyPendingMigrations(ctx)
		return err
	})
	return n, err
}

// withMigrations runs fn against the configured store. The database must
// already exist: an empty one would answer searches with no rows instead of
// letting the fallback serve them.
func withMigrations(configPath string, fn func(*schema.MigrationManager) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path is not set in %s", configPath)
	}
	if _, err := os.Stat(cfg.Store.Path); err != nil {
		return fmt.Errorf("database %s: %w (run import to create it)", cfg.Store.Path, err)
	}

	store := storage.OpenWritable(cfg.Store.Path)
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()
	conn, err := store.DB()
	if err != nil {
		return err
	}
	return fn(schema.NewMigrationManager(conn))
}

func printMigrationStatus(w io.Writer, status *schema.MigrationStatus) {
	fmt.Fprintf(w, "Applied migrations: %d\n", len(status.Applied))
	for _, m := range status.Applied {
		appliedTime := "unknown"
		if m.AppliedAt != nil {
			appliedTime = m.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "  %03d: %s (applied: %s)\n", m.Version, m.Name, appliedTime)
	}

	fmt.Fprintf(w, "Pending migrations: %d\n", len(status.Pending))
	for _, m := range status.Pending {
		fmt.Fprintf(w, "  %03d: %s\n", m.Version, m.Name)
	}
	if len(status.Pending) == 0 {
		fmt.Fprintln(w, "  (none - database is up to date)")
	}
}
