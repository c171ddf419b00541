// Package storage is the structured company store: a SQLite database filled
// by the importer and queried by substring at search time.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/ext/unicode"

	schema "github.com/company-explorer/explorer/pkg/db"
	"github.com/company-explorer/explorer/pkg/log"
	"github.com/company-explorer/explorer/pkg/record"
)

// SearchLimit is the most rows a search returns.
const SearchLimit = 50

// ErrNotConfigured is returned when the store has no database path.
var ErrNotConfigured = errors.New("structured store not configured")

// Store owns a lazily opened database handle. The handle is opened once, on
// first use, and released by Close; callers never open their own.
type Store struct {
	path     string
	writable bool
	logger   *log.Logger

	once    sync.Once
	db      *sql.DB
	openErr error
}

// Open returns a read-only store for the database at path. Nothing is opened
// until the store is first used. An empty path yields a store that is never
// available.
func Open(path string) *Store {
	return &Store{path: path, logger: log.ForService("storage")}
}

// OpenWritable returns a store that creates the database if needed, for the
// importer.
func OpenWritable(path string) *Store {
	return &Store{path: path, writable: true, logger: log.ForService("storage")}
}

func (s *Store) dsn() string {
	q := url.Values{}
	if !s.writable {
		q.Set("mode", "ro")
	}
	q.Add("_pragma", "busy_timeout(30000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	u := url.URL{Scheme: "file", Path: s.path, RawQuery: q.Encode()}
	return u.String()
}

// DB returns the shared handle, opening it on first call.
func (s *Store) DB() (*sql.DB, error) {
	s.once.Do(func() {
		if s.path == "" {
			s.openErr = ErrNotConfigured
			return
		}
		if !s.writable {
			if _, err := os.Stat(s.path); err != nil {
				s.openErr = fmt.Errorf("opening database: %w", err)
				return
			}
		}
		db, err := driver.Open(s.dsn(), unicode.Register)
		if err != nil {
			s.openErr = fmt.Errorf("opening database: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.openErr
}

// Close releases the handle if it was opened.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema applies any pending schema migrations.
func (s *Store) EnsureSchema(ctx context.Context) error {
	db, err := s.DB()
	if err != nil {
		return err
	}
	return schema.InitializeDatabase(ctx, db)
}

// Name identifies the store as a search strategy.
func (s *Store) Name() string {
	return "sqlite"
}

// Available reports whether the store is configured and answers queries.
func (s *Store) Available(ctx context.Context) bool {
	db, err := s.DB()
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			s.logger.Debugf("store unavailable: %v", err)
		}
		return false
	}
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1 FROM companies LIMIT 1").Scan(&one); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Debugf("store unavailable: %v", err)
		return false
	}
	return true
}

// Search returns up to SearchLimit companies whose name or CIN contains query,
// in import order. Matching is literal and case-insensitive over all of
// Unicode: lower() comes from the unicode extension registered on open.
func (s *Store) Search(ctx context.Context, query string) ([]record.Record, error) {
	db, err := s.DB()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, COALESCE(state, ''), COALESCE(cin, ''), COALESCE(status, ''), raw_data
		FROM companies
		WHERE instr(lower(name), ?) > 0 OR instr(lower(COALESCE(cin, '')), ?) > 0
		ORDER BY rowid
		LIMIT ?`, needle, needle, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching companies: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warnf("closing rows: %v", err)
		}
	}()

	var records []record.Record
	for rows.Next() {
		var r record.Record
		var raw string
		if err := rows.Scan(&r.ID, &r.Name, &r.State, &r.CIN, &r.Status, &raw); err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &r.Attributes); err != nil {
			s.logger.Debugf("company %s has unreadable raw data: %v", r.ID, err)
		}
		if r.Attributes == nil {
			r.Attributes = map[string]string{}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating companies: %w", err)
	}
	return records, nil
}

// Count returns the number of stored companies.
func (s *Store) Count(ctx context.Context) (int, error) {
	db, err := s.DB()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM companies").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting companies: %w", err)
	}
	return n, nil
}
