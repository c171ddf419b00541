package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/company-explorer/explorer/pkg/flatstore"
	"github.com/company-explorer/explorer/pkg/record"
)

// DefaultBatchSize is the number of rows inserted per transaction.
const DefaultBatchSize = 1000

// ImportStats summarises an import run.
type ImportStats struct {
	Files    int
	Rows     int
	Skipped  int
	Replaced int64
}

// Importer loads the flat data files into the store.
type Importer struct {
	store     *Store
	BatchSize int
	// Replace deletes rows previously imported from a file before
	// importing it again.
	Replace bool
}

func NewImporter(store *Store) *Importer {
	return &Importer{store: store, BatchSize: DefaultBatchSize}
}

// Import walks every data file in files and inserts each row that has a
// company name. Rows are parsed with the same line parser and header mapping
// the file-based search uses.
func (im *Importer) Import(ctx context.Context, files *flatstore.Store) (ImportStats, error) {
	var stats ImportStats
	if err := im.store.EnsureSchema(ctx); err != nil {
		return stats, err
	}
	db, err := im.store.DB()
	if err != nil {
		return stats, err
	}

	names, err := files.Files()
	if err != nil {
		return stats, err
	}
	im.store.logger.Infof("found %d files to import", len(names))

	for _, name := range names {
		if im.Replace {
			res, err := db.ExecContext(ctx, "DELETE FROM companies WHERE source_file = ?", name)
			if err != nil {
				return stats, fmt.Errorf("clearing rows from %s: %w", name, err)
			}
			n, _ := res.RowsAffected()
			stats.Replaced += n
		}

		rows, skipped, err := im.importFile(ctx, db, files, name)
		stats.Rows += rows
		stats.Skipped += skipped
		if err != nil {
			return stats, fmt.Errorf("importing %s: %w", name, err)
		}
		stats.Files++
		im.store.logger.Infof("imported %s: %d rows, %d skipped", name, rows, skipped)
	}
	return stats, nil
}

type pendingRow struct {
	r   record.Record
	raw string
}

func (im *Importer) importFile(ctx context.Context, db *sql.DB, files *flatstore.Store, name string) (int, int, error) {
	batchSize := im.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var (
		mapping  record.Mapping
		batch    []pendingRow
		imported int
		skipped  int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := insertBatch(ctx, db, name, batch); err != nil {
			return err
		}
		imported += len(batch)
		batch = batch[:0]
		return nil
	}

	err := files.Scan(name, func(l flatstore.Line) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.Number == 0 {
			mapping = record.NewMapping(record.ParseLine(l.Text))
			return nil
		}
		if strings.TrimSpace(l.Text) == "" {
			return nil
		}

		r, err := record.FromRow(mapping, record.ParseLine(l.Text))
		if err != nil {
			skipped++
			return nil
		}
		raw, err := json.Marshal(r.Attributes)
		if err != nil {
			return fmt.Errorf("encoding row %d: %w", l.Number, err)
		}
		r.ID = uuid.NewString()
		batch = append(batch, pendingRow{r: r, raw: string(raw)})
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return imported, skipped, err
	}
	return imported, skipped, flush()
}

func insertBatch(ctx context.Context, db *sql.DB, source string, batch []pendingRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO companies (id, name, cin, state, status, raw_data, source_file)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range batch {
		if _, err := stmt.ExecContext(ctx, p.r.ID, p.r.Name, p.r.CIN, p.r.State, p.r.Status, p.raw, source); err != nil {
			return fmt.Errorf("inserting %q: %w", p.r.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	committed = true
	return nil
}
