package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/company-explorer/explorer/pkg/flatstore"
	"github.com/company-explorer/explorer/pkg/log"
	"github.com/company-explorer/explorer/pkg/record"
)

// BuildStats summarises an index build.
type BuildStats struct {
	Files   int
	Rows    int
	Skipped int
}

// Build scans every data file in the store and returns one entry per row
// with a usable name, in file name order then line order. Rows without a
// name are skipped, the same rule the importer applies.
func Build(store *flatstore.Store) ([]Entry, BuildStats, error) {
	logger := log.ForService("index")
	var stats BuildStats

	files, err := store.Files()
	if err != nil {
		return nil, stats, err
	}

	var entries []Entry
	for _, name := range files {
		var mapping record.Mapping
		err := store.Scan(name, func(l flatstore.Line) error {
			if l.Number == 0 {
				mapping = record.NewMapping(record.ParseLine(l.Text))
				return nil
			}
			if strings.TrimSpace(l.Text) == "" {
				return nil
			}
			r, err := record.FromRow(mapping, record.ParseLine(l.Text))
			if err != nil {
				stats.Skipped++
				return nil
			}
			entries = append(entries, Entry{
				Name:   strings.ToLower(r.Name),
				CIN:    r.CIN,
				File:   name,
				Offset: l.Offset,
				Length: l.Length,
			})
			stats.Rows++
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("indexing %s: %w", name, err)
		}
		stats.Files++
		logger.Debugf("indexed %s", name)
	}
	return entries, stats, nil
}

// Write stores entries as an artifact at path. The file is written to a
// temporary name and renamed into place so readers never see a partial
// artifact.
func Write(path string, entries []Entry, c Compression) (err error) {
	if entries == nil {
		entries = []Entry{}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".search-index-*")
	if err != nil {
		return fmt.Errorf("creating temporary index: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw, err := deflate(tmp, c)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(zw).Encode(entries); err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("installing index: %w", err)
	}
	return nil
}
