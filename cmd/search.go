package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/company-explorer/explorer/pkg/fallback"
	"github.com/company-explorer/explorer/pkg/record"
	"github.com/company-explorer/explorer/pkg/search"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	recordStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 0, 2)

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("160"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

var titleCase = cases.Title(language.English)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search companies by name or CIN",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Backend to use: auto, sqlite or files",
				Value: "auto",
			},
			&cli.BoolFlag{
				Name:  "attributes",
				Usage: "Show every column of each record",
			},
			&cli.BoolFlag{
				Name:  "skipped",
				Usage: "List index entries that could not be read (files backend only)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			return searchCompanies(ctx, c.String("config"), query, c.String("backend"), c.Bool("attributes"), c.Bool("skipped"))
		},
	}
}

func searchCompanies(ctx context.Context, configPath, query, backend string, attributes, showSkipped bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	b := openBackends(cfg)
	defer b.Close()

	var (
		results []record.Record
		via     string
	)
	switch backend {
	case "auto":
		svc, _ := b.service(cfg)
		resp := svc.Search(ctx, search.Request{Query: query, Authenticated: true})
		if resp.TooShort {
			return fmt.Errorf("query must be at least %d characters", search.MinQueryLength)
		}
		results, via = resp.Results, resp.Backend
	case "sqlite":
		if b.store == nil {
			return fmt.Errorf("no store configured")
		}
		results, err = b.store.Search(ctx, query)
		if err != nil {
			return fmt.Errorf("searching store: %w", err)
		}
		via = b.store.Name()
	case "files":
		outcomes := b.engine.Lookup(ctx, query)
		for _, o := range outcomes {
			if o.OK() {
				results = append(results, o.Record)
			} else if showSkipped {
				fmt.Println(renderSkipped(o))
			}
		}
		via = b.engine.Name()
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}

	fmt.Print(renderResults(query, via, results, attributes))
	return nil
}

func renderResults(query, via string, results []record.Record, attributes bool) string {
	var out strings.Builder
	if len(results) == 0 {
		out.WriteString(noDataStyle.Render(fmt.Sprintf("No companies match %q", query)))
		out.WriteString("\n")
		return out.String()
	}

	header := fmt.Sprintf("%d companies matching %q", len(results), query)
	if via != "" {
		header += " via " + via
	}
	out.WriteString(titleStyle.Render(header))
	out.WriteString("\n")
	for _, r := range results {
		out.WriteString(renderRecord(r, attributes))
		out.WriteString("\n")
	}
	return out.String()
}

func renderRecord(r record.Record, attributes bool) string {
	var lines []string
	lines = append(lines, nameStyle.Render(r.Name))

	var meta []string
	if r.CIN != "" {
		meta = append(meta, r.CIN)
	}
	if r.State != "" {
		meta = append(meta, titleCase.String(r.State))
	}
	if r.Status != "" {
		meta = append(meta, titleCase.String(r.Status))
	}
	if len(meta) > 0 {
		lines = append(lines, metaStyle.Render(strings.Join(meta, " · ")))
	}

	if attributes && len(r.Attributes) > 0 {
		keys := make([]string, 0, len(r.Attributes))
		for k := range r.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := r.Attributes[k]; v != "" {
				lines = append(lines, fmt.Sprintf("%s: %s", k, v))
			}
		}
	}
	return recordStyle.Render(strings.Join(lines, "\n"))
}

func renderSkipped(o fallback.Outcome) string {
	return skipStyle.Render(fmt.Sprintf("skipped %s:%d (%s): %v", o.Entry.File, o.Entry.Offset, o.Reason, o.Err))
}
