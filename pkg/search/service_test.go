package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/company-explorer/explorer/pkg/fallback"
	"github.com/company-explorer/explorer/pkg/flatstore"
	"github.com/company-explorer/explorer/pkg/index"
	"github.com/company-explorer/explorer/pkg/ratelimit"
	"github.com/company-explorer/explorer/pkg/record"
	"github.com/company-explorer/explorer/pkg/storage"
)

type stubStrategy struct {
	name      string
	available bool
	results   []record.Record
	err       error

	availableCalls atomic.Int32
	searchCalls    atomic.Int32
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Available(ctx context.Context) bool {
	s.availableCalls.Add(1)
	return s.available
}

func (s *stubStrategy) Search(ctx context.Context, query string) ([]record.Record, error) {
	s.searchCalls.Add(1)
	return s.results, s.err
}

type countingGate struct {
	inner ratelimit.Checker
	calls atomic.Int32
}

func (g *countingGate) Check(address string) ratelimit.Decision {
	g.calls.Add(1)
	return g.inner.Check(address)
}

func newGate() *countingGate {
	return &countingGate{inner: ratelimit.New(10, time.Hour, nil)}
}

func TestAnonymousQuota(t *testing.T) {
	store := &stubStrategy{
		name:      "store",
		available: true,
		results:   []record.Record{{ID: "1", Name: "Acme Corp"}},
	}
	svc := NewService(newGate(), store)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		resp := svc.Search(ctx, Request{Query: "acme", Address: "203.0.113.7"})
		if resp.Err != nil {
			t.Fatalf("query %d: unexpected error %v", i, resp.Err)
		}
		if resp.Remaining != 10-i {
			t.Errorf("query %d: remaining = %d, want %d", i, resp.Remaining, 10-i)
		}
		if resp.Premium {
			t.Errorf("query %d: anonymous caller reported as premium", i)
		}
		if len(resp.Results) != 1 {
			t.Errorf("query %d: got %d results, want 1", i, len(resp.Results))
		}
	}

	resp := svc.Search(ctx, Request{Query: "acme", Address: "203.0.113.7"})
	if !errors.Is(resp.Err, ErrQuotaExceeded) {
		t.Fatalf("11th query: err = %v, want ErrQuotaExceeded", resp.Err)
	}
	var qe *QuotaError
	if !errors.As(resp.Err, &qe) || qe.Limit != 10 {
		t.Errorf("11th query: want *QuotaError with limit 10, got %#v", resp.Err)
	}
	if resp.Remaining != 0 {
		t.Errorf("11th query: remaining = %d, want 0", resp.Remaining)
	}
	if len(resp.Results) != 0 {
		t.Errorf("11th query: got %d results, want none", len(resp.Results))
	}
	if got := store.searchCalls.Load(); got != 10 {
		t.Errorf("store searched %d times, want 10", got)
	}

	// Another address has its own quota.
	resp = svc.Search(ctx, Request{Query: "acme", Address: "198.51.100.1"})
	if resp.Err != nil || resp.Remaining != 9 {
		t.Errorf("second address: err=%v remaining=%d", resp.Err, resp.Remaining)
	}
}

func TestAuthenticatedBypassesGate(t *testing.T) {
	gate := newGate()
	store := &stubStrategy{name: "store", available: true}
	svc := NewService(gate, store)

	for i := 0; i < 25; i++ {
		resp := svc.Search(context.Background(), Request{
			Query:         "acme",
			Address:       "203.0.113.7",
			Authenticated: true,
		})
		if resp.Err != nil {
			t.Fatalf("query %d: %v", i, resp.Err)
		}
		if !resp.Premium || resp.Remaining != Unlimited {
			t.Fatalf("query %d: premium=%v remaining=%d", i, resp.Premium, resp.Remaining)
		}
	}
	if got := gate.calls.Load(); got != 0 {
		t.Errorf("gate consulted %d times for an authenticated caller", got)
	}
	if got := store.searchCalls.Load(); got != 25 {
		t.Errorf("store searched %d times, want 25", got)
	}
}

func TestShortQueryShortCircuits(t *testing.T) {
	queries := []string{"", " ", "a", "  b  ", "\t\n", "é"}
	for _, q := range queries {
		gate := newGate()
		store := &stubStrategy{name: "store", available: true}
		files := &stubStrategy{name: "files", available: true}
		svc := NewService(gate, store, files)

		resp := svc.Search(context.Background(), Request{Query: q, Address: "203.0.113.7"})
		if !resp.TooShort {
			t.Errorf("%q: TooShort not set", q)
		}
		if resp.Results == nil || len(resp.Results) != 0 {
			t.Errorf("%q: want empty non-nil results, got %v", q, resp.Results)
		}
		if resp.Err != nil {
			t.Errorf("%q: unexpected error %v", q, resp.Err)
		}
		if n := gate.calls.Load(); n != 0 {
			t.Errorf("%q: gate called %d times", q, n)
		}
		for _, st := range []*stubStrategy{store, files} {
			if n := st.availableCalls.Load() + st.searchCalls.Load(); n != 0 {
				t.Errorf("%q: %s touched %d times", q, st.name, n)
			}
		}
	}
}

func TestTrimmedQueryOfTwoCharsIsSearched(t *testing.T) {
	store := &stubStrategy{name: "store", available: true}
	svc := NewService(newGate(), store)

	resp := svc.Search(context.Background(), Request{Query: "  ab ", Address: "x"})
	if resp.TooShort {
		t.Fatal("two character query rejected")
	}
	if store.searchCalls.Load() != 1 {
		t.Errorf("store not searched")
	}
}

func TestFirstAvailableStrategyOnly(t *testing.T) {
	tests := []struct {
		name        string
		store       *stubStrategy
		files       *stubStrategy
		wantBackend string
		wantResults int
	}{
		{
			name:        "store available",
			store:       &stubStrategy{name: "store", available: true, results: []record.Record{{Name: "A"}}},
			files:       &stubStrategy{name: "files", available: true, results: []record.Record{{Name: "B"}, {Name: "C"}}},
			wantBackend: "store",
			wantResults: 1,
		},
		{
			name:        "store unavailable",
			store:       &stubStrategy{name: "store"},
			files:       &stubStrategy{name: "files", available: true, results: []record.Record{{Name: "B"}, {Name: "C"}}},
			wantBackend: "files",
			wantResults: 2,
		},
		{
			name:        "store fails",
			store:       &stubStrategy{name: "store", available: true, err: errors.New("disk I/O error")},
			files:       &stubStrategy{name: "files", available: true, results: []record.Record{{Name: "B"}}},
			wantBackend: "store",
			wantResults: 0,
		},
		{
			name:        "nothing available",
			store:       &stubStrategy{name: "store"},
			files:       &stubStrategy{name: "files"},
			wantBackend: "",
			wantResults: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newGate(), tt.store, tt.files)
			resp := svc.Search(context.Background(), Request{Query: "acme", Authenticated: true})
			if resp.Err != nil {
				t.Fatalf("unexpected error: %v", resp.Err)
			}
			if resp.Backend != tt.wantBackend {
				t.Errorf("backend = %q, want %q", resp.Backend, tt.wantBackend)
			}
			if len(resp.Results) != tt.wantResults {
				t.Errorf("got %d results, want %d", len(resp.Results), tt.wantResults)
			}
			if resp.Results == nil {
				t.Error("results should never be nil")
			}
			if tt.wantBackend == "store" && tt.files.searchCalls.Load() != 0 {
				t.Error("fallback searched although the store served the query")
			}
		})
	}
}

func TestMissingIndexDoesNotAffectStore(t *testing.T) {
	dir := t.TempDir()
	files := fallback.New(fallback.Config{
		IndexPath: filepath.Join(dir, "search-index.json.gz"),
		DataDir:   dir,
	})
	store := &stubStrategy{
		name:      "store",
		available: true,
		results:   []record.Record{{ID: "1", Name: "Acme Corp"}},
	}

	svc := NewService(newGate(), store, files)
	resp := svc.Search(context.Background(), Request{Query: "acme", Address: "a"})
	if resp.Err != nil {
		t.Fatal(resp.Err)
	}
	if resp.Backend != "store" || len(resp.Results) != 1 {
		t.Fatalf("backend=%q results=%d, want store with 1 result", resp.Backend, len(resp.Results))
	}

	// With the store gone as well, the query yields nothing and no error.
	store.available = false
	resp = svc.Search(context.Background(), Request{Query: "acme", Address: "a"})
	if resp.Err != nil || len(resp.Results) != 0 || resp.Backend != "" {
		t.Fatalf("err=%v results=%d backend=%q", resp.Err, len(resp.Results), resp.Backend)
	}
}

func TestFallsBackToFileEngine(t *testing.T) {
	dir := t.TempDir()
	data := "Company Name,CIN,State,Status\n" +
		"Acme Corp,U12345,Karnataka,Active\n" +
		"Globex Ltd,L99999,Delhi,Struck Off\n"
	if err := os.WriteFile(filepath.Join(dir, "companies.csv"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := flatstore.New(dir)
	entries, _, err := index.Build(fs)
	if err != nil {
		t.Fatal(err)
	}
	indexPath := filepath.Join(dir, "search-index.json.gz")
	if err := index.Write(indexPath, entries, index.Gzip); err != nil {
		t.Fatal(err)
	}

	store := storage.Open(filepath.Join(dir, "missing.db"))
	defer store.Close()
	files := fallback.New(fallback.Config{IndexPath: indexPath, DataDir: dir})

	svc := NewService(newGate(), store, files)
	resp := svc.Search(context.Background(), Request{Query: "l999", Address: "a"})
	if resp.Backend != "files" {
		t.Fatalf("backend = %q, want files", resp.Backend)
	}
	if len(resp.Results) != 1 || resp.Results[0].Name != "Globex Ltd" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	if resp.Remaining != 9 {
		t.Errorf("remaining = %d, want 9", resp.Remaining)
	}
}

func TestBackends(t *testing.T) {
	svc := NewService(newGate(), &stubStrategy{name: "sqlite"}, &stubStrategy{name: "files"})
	got := svc.Backends()
	if len(got) != 2 || got[0] != "sqlite" || got[1] != "files" {
		t.Errorf("Backends() = %v", got)
	}
}
