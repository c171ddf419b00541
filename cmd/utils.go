package cmd

import (
	"fmt"

	"github.com/company-explorer/explorer/pkg/config"
	"github.com/company-explorer/explorer/pkg/fallback"
	"github.com/company-explorer/explorer/pkg/ratelimit"
	"github.com/company-explorer/explorer/pkg/search"
	"github.com/company-explorer/explorer/pkg/storage"
)

// backends holds the search backends built from a configuration.
type backends struct {
	store  *storage.Store
	engine *fallback.Engine
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openBackends prepares the structured store (when configured) and the
// file engine. Neither touches the disk until first used.
func openBackends(cfg *config.Config) *backends {
	b := &backends{
		engine: fallback.New(fallback.Config{
			IndexPath:     cfg.IndexPath,
			DataDir:       cfg.DataDir,
			MaxIndexBytes: cfg.MaxIndexBytes,
		}),
	}
	if cfg.Store.Path != "" {
		b.store = storage.Open(cfg.Store.Path)
	}
	return b
}

// strategies returns the backends in priority order.
func (b *backends) strategies() []search.Strategy {
	var list []search.Strategy
	if b.store != nil {
		list = append(list, b.store)
	}
	return append(list, b.engine)
}

func (b *backends) service(cfg *config.Config) (*search.Service, *ratelimit.Gate) {
	gate := ratelimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window.Duration, nil)
	return search.NewService(gate, b.strategies()...), gate
}

func (b *backends) Close() {
	if b.store == nil {
		return
	}
	if err := b.store.Close(); err != nil {
		fmt.Printf("Warning: failed to close store: %v\n", err)
	}
}
