package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/company-explorer/explorer/pkg/flatstore"
	"github.com/company-explorer/explorer/pkg/storage"
)

// ImportCommand creates the import command
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Load the data files into the SQLite store",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "replace",
				Usage: "Delete rows previously imported from the same file first",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Rows per transaction",
				Value: storage.DefaultBatchSize,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return importData(ctx, c.String("config"), c.Bool("replace"), c.Int("batch-size"))
		},
	}
}

func importData(ctx context.Context, configPath string, replace bool, batchSize int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path is not set in %s", configPath)
	}

	store := storage.OpenWritable(cfg.Store.Path)
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()
	im := storage.NewImporter(store)
	im.Replace = replace
	if batchSize > 0 {
		im.BatchSize = batchSize
	}

	start := time.Now()
	stats, err := im.Import(ctx, flatstore.New(cfg.DataDir))
	if err != nil {
		return fmt.Errorf("importing %s: %w", cfg.DataDir, err)
	}

	fmt.Printf("Imported %d rows from %d files in %s (%d skipped, %d replaced)\n",
		stats.Rows, stats.Files, time.Since(start).Round(time.Millisecond), stats.Skipped, stats.Replaced)
	return nil
}
