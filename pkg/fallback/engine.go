// Package fallback implements the file-based company search used when no
// structured store is available. It filters the compressed term index in
// memory and materialises each hit with a direct offset read into the flat
// data files.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/company-explorer/explorer/pkg/flatstore"
	"github.com/company-explorer/explorer/pkg/index"
	"github.com/company-explorer/explorer/pkg/log"
	"github.com/company-explorer/explorer/pkg/record"
)

// MaxResults is the most records a single search returns.
const MaxResults = 50

// recordNamespace seeds the name-based identity of file-backed records, so
// the same row always gets the same ID.
var recordNamespace = uuid.MustParse("4d0c6d2e-8f6b-5a53-9a1e-6c1f0b7d2e41")

type Config struct {
	IndexPath string
	DataDir   string
	// MaxIndexBytes caps the inflated artifact; zero means
	// index.DefaultMaxBytes.
	MaxIndexBytes int64
	// Workers bounds concurrent row retrievals per search.
	Workers int
}

type Engine struct {
	cfg    Config
	store  *flatstore.Store
	logger *log.Logger

	snapshot atomic.Pointer[index.Index]
	loadOnce sync.Once
	reloadMu sync.Mutex
}

func New(cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Engine{
		cfg:    cfg,
		store:  flatstore.New(cfg.DataDir),
		logger: log.ForService("fallback"),
	}
}

// Name identifies the engine as a search strategy.
func (e *Engine) Name() string {
	return "files"
}

// Available reports whether an index snapshot is loaded.
func (e *Engine) Available(ctx context.Context) bool {
	_, err := e.Index()
	return err == nil
}

// Index returns the current snapshot, loading it on first use. A failed
// first load is not retried here; Reload (or Watch) picks up an artifact
// that appears later.
func (e *Engine) Index() (*index.Index, error) {
	e.loadOnce.Do(func() {
		if err := e.Reload(); err != nil {
			if errors.Is(err, index.ErrNotFound) {
				e.logger.Debugf("no index artifact at %s", e.cfg.IndexPath)
			} else {
				e.logger.Warnf("index unavailable: %v", err)
			}
		}
	})
	ix := e.snapshot.Load()
	if ix == nil {
		return nil, index.ErrNotFound
	}
	return ix, nil
}

// Reload loads the artifact again and swaps it in. On failure the previous
// snapshot stays in place.
func (e *Engine) Reload() error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	ix, err := index.Load(e.cfg.IndexPath, e.cfg.MaxIndexBytes)
	if err != nil {
		return err
	}
	e.store.Reset()
	e.snapshot.Store(ix)
	e.logger.Infof("loaded %d index entries from %s", ix.Len(), e.cfg.IndexPath)
	return nil
}

// Search returns up to MaxResults records whose name or CIN contains query,
// in index order. It never fails: a missing or corrupt index yields no
// records and unreadable rows are left out.
func (e *Engine) Search(ctx context.Context, query string) ([]record.Record, error) {
	outcomes := e.Lookup(ctx, query)
	records := make([]record.Record, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			records = append(records, o.Record)
		}
	}
	if t := tally(outcomes); t.TotalSkipped() > 0 {
		e.logger.Debugf("query %q: %d rows, %d skipped %v", query, t.OK, t.TotalSkipped(), t.Skipped)
	}
	return records, nil
}

// Lookup filters the index and resolves every retained entry, returning one
// outcome per entry in index order.
func (e *Engine) Lookup(ctx context.Context, query string) []Outcome {
	ix, err := e.Index()
	if err != nil {
		return nil
	}

	matches := ix.Filter(strings.ToLower(query), MaxResults)
	outcomes := make([]Outcome, len(matches))

	sem := make(chan struct{}, e.cfg.Workers)
	var wg sync.WaitGroup
	for i := range matches {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				outcomes[i] = skipped(matches[i], ReasonCanceled, err)
				return
			}
			outcomes[i] = e.Resolve(matches[i])
		}(i)
	}
	wg.Wait()
	return outcomes
}

// Resolve reads the row an entry points at and rebuilds its record. The row
// must still carry the entry's name and CIN; otherwise the data file changed
// after the index was built and the entry is reported stale.
func (e *Engine) Resolve(entry index.Entry) Outcome {
	if err := entry.Validate(); err != nil {
		return skipped(entry, ReasonInvalidEntry, err)
	}

	line, err := e.store.ReadLine(entry.File, entry.Offset, entry.Length)
	if err != nil {
		return skipped(entry, reasonFor(err), err)
	}
	mapping, err := e.store.Header(entry.File)
	if err != nil {
		return skipped(entry, reasonFor(err), err)
	}

	r, err := record.FromRow(mapping, record.ParseLine(line))
	if err != nil {
		return skipped(entry, reasonFor(err), err)
	}
	if strings.ToLower(r.Name) != entry.Name || (entry.CIN != "" && !strings.EqualFold(r.CIN, entry.CIN)) {
		return skipped(entry, ReasonStale, fmt.Errorf("row at %s:%d is %q, index says %q", entry.File, entry.Offset, r.Name, entry.Name))
	}

	r.ID = uuid.NewSHA1(recordNamespace, []byte(entry.File+":"+strconv.FormatInt(entry.Offset, 10))).String()
	return ok(entry, r)
}

// Verify resolves every entry in the index and tallies the outcomes. It is
// the offline check that the index still matches the data files.
func (e *Engine) Verify(ctx context.Context) (Tally, error) {
	ix, err := e.Index()
	if err != nil {
		return Tally{}, err
	}

	t := Tally{Skipped: make(map[SkipReason]int)}
	for _, entry := range ix.Entries() {
		if err := ctx.Err(); err != nil {
			return t, err
		}
		o := e.Resolve(entry)
		if o.OK() {
			t.OK++
			continue
		}
		t.Skipped[o.Reason]++
		e.logger.Debugf("%s:%d %s: %v", entry.File, entry.Offset, o.Reason, o.Err)
	}
	return t, nil
}
