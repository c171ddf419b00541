package integration_tests

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/company-explorer/explorer/pkg/api"
	"github.com/company-explorer/explorer/pkg/config"
	"github.com/company-explorer/explorer/pkg/fallback"
	"github.com/company-explorer/explorer/pkg/flatstore"
	"github.com/company-explorer/explorer/pkg/index"
	"github.com/company-explorer/explorer/pkg/ratelimit"
	"github.com/company-explorer/explorer/pkg/search"
	"github.com/company-explorer/explorer/pkg/storage"
)

const testToken = "integration-token"

// CreateTestConfig returns a configuration rooted at tempDir with a store
// path and one session token.
func CreateTestConfig(tempDir string) *config.Config {
	return &config.Config{
		DataDir:       tempDir,
		IndexPath:     filepath.Join(tempDir, config.DefaultIndexFile),
		MaxIndexBytes: index.DefaultMaxBytes,
		Store:         config.StoreConfig{Path: filepath.Join(tempDir, config.DefaultDBFile)},
		RateLimit:     config.RateLimitConfig{Limit: 10, Window: config.Duration{Duration: 24 * time.Hour}},
		Auth:          config.AuthConfig{SessionCookie: "session", SessionTokens: []string{testToken}},
	}
}

// WriteFixtures writes two registry extracts into dir. They share a header
// shape but not column order, and include rows the pipeline must drop.
func WriteFixtures(t *testing.T, dir string) {
	t.Helper()

	var karnataka strings.Builder
	karnataka.WriteString("CIN,CompanyName,CompanyStatus,CompanyStateCode,AuthorizedCapital\n")
	karnataka.WriteString("U72200KA2001PTC028938,\"Acme Software, Private Limited\",Active,Karnataka,1000000\n")
	karnataka.WriteString("U00000KA1999PTC000000,,Active,Karnataka,0\n")
	karnataka.WriteString("L85110KA1981PLC013115,Infosys Limited,Active,Karnataka,24000000000\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&karnataka, "U%05dKA2010PTC%06d,Bulk Trading %02d Private Limited,Strike Off,Karnataka,%d\n", i, i, i, 100000+i)
	}

	delhi := "\ufeffCompanyName,CIN,CompanyStateCode,CompanyStatus\r\n" +
		"Globex India Limited,U74999DL2005PLC139283,Delhi,Active\r\n" +
		"'; DROP TABLE companies; --,U11111DL2020PTC111111,Delhi,Active\r\n" +
		"100% Organic Foods Private Limited,U01111DL2015PTC222222,Delhi,Active\r\n" +
		"ÉCOLE ŞIRKET Traders,U22222DL2018PTC333333,Delhi,Active\r\n"

	files := map[string]string{
		"karnataka.csv":         karnataka.String(),
		"delhi.csv":             delhi,
		"karnataka.csv.bak":     "CompanyName\nShould Not Appear\n",
		"search-index-old.json": "[]",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

// Stack is a fully wired search service over real backends.
type Stack struct {
	Config  *config.Config
	Store   *storage.Store
	Engine  *fallback.Engine
	Service *search.Service
	Server  *httptest.Server
}

// NewStack imports the fixtures, builds the index and starts an HTTP server.
// withStore controls whether the structured store takes part in searches.
func NewStack(t *testing.T, withStore bool) *Stack {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	WriteFixtures(t, dir)
	cfg := CreateTestConfig(dir)

	writable := storage.OpenWritable(cfg.Store.Path)
	if _, err := storage.NewImporter(writable).Import(ctx, flatstore.New(dir)); err != nil {
		t.Fatalf("importing fixtures: %v", err)
	}
	if err := writable.Close(); err != nil {
		t.Fatal(err)
	}

	entries, _, err := index.Build(flatstore.New(dir))
	if err != nil {
		t.Fatalf("building index: %v", err)
	}
	if err := index.Write(cfg.IndexPath, entries, index.Gzip); err != nil {
		t.Fatalf("writing index: %v", err)
	}

	s := &Stack{
		Config: cfg,
		Engine: fallback.New(fallback.Config{IndexPath: cfg.IndexPath, DataDir: dir}),
	}
	var strategies []search.Strategy
	if withStore {
		s.Store = storage.Open(cfg.Store.Path)
		t.Cleanup(func() { s.Store.Close() })
		strategies = append(strategies, s.Store)
	}
	strategies = append(strategies, s.Engine)

	gate := ratelimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window.Duration, nil)
	s.Service = search.NewService(gate, strategies...)

	auth := api.NewSessionAuth(cfg.Auth.SessionCookie, cfg.Auth.SessionTokens)
	s.Server = httptest.NewServer(api.NewServer(s.Service, auth).Handler())
	t.Cleanup(s.Server.Close)
	return s
}
