package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/company-explorer/explorer/pkg/fallback"
	"github.com/company-explorer/explorer/pkg/flatstore"
	"github.com/company-explorer/explorer/pkg/index"
)

// IndexCommand creates the index command and its subcommands
func IndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Manage the compressed search index",
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Build the index from the data files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "compression",
						Usage: "gzip or zstd",
						Value: string(index.Gzip),
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Write the index here instead of index_path",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return buildIndex(c.String("config"), c.String("compression"), c.String("output"))
				},
			},
			{
				Name:  "verify",
				Usage: "Check that every index entry still matches its data row",
				Action: func(ctx context.Context, c *cli.Command) error {
					return verifyIndex(ctx, c.String("config"))
				},
			},
		},
	}
}

func buildIndex(configPath, compression, output string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	codec, err := index.ParseCompression(compression)
	if err != nil {
		return err
	}
	if output == "" {
		output = cfg.IndexPath
	}

	start := time.Now()
	entries, stats, err := index.Build(flatstore.New(cfg.DataDir))
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	if err := index.Write(output, entries, codec); err != nil {
		return err
	}

	fmt.Printf("Indexed %d rows from %d files into %s in %s (%d skipped)\n",
		stats.Rows, stats.Files, output, time.Since(start).Round(time.Millisecond), stats.Skipped)
	return nil
}

func verifyIndex(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	engine := fallback.New(fallback.Config{
		IndexPath:     cfg.IndexPath,
		DataDir:       cfg.DataDir,
		MaxIndexBytes: cfg.MaxIndexBytes,
	})

	tally, err := engine.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", cfg.IndexPath, err)
	}

	fmt.Printf("%d entries ok, %d skipped\n", tally.OK, tally.TotalSkipped())
	for reason, n := range tally.Skipped {
		fmt.Printf("  %s: %d\n", reason, n)
	}
	if tally.TotalSkipped() > 0 {
		return fmt.Errorf("index %s does not match the data files, rebuild it with 'explorer index build'", cfg.IndexPath)
	}
	return nil
}
