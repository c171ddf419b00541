package search

import (
	"context"
	"strings"
	"time"

	"github.com/company-explorer/explorer/pkg/log"
	"github.com/company-explorer/explorer/pkg/ratelimit"
	"github.com/company-explorer/explorer/pkg/record"
)

const (
	// MinQueryLength is the shortest trimmed query that is searched at all.
	MinQueryLength = 2

	// Unlimited is the Remaining value reported to authenticated callers.
	Unlimited = -1
)

// Strategy is one search backend. The service uses the first available
// strategy in its list for each query.
type Strategy interface {
	Name() string
	Available(ctx context.Context) bool
	Search(ctx context.Context, query string) ([]record.Record, error)
}

// Request is one search call.
type Request struct {
	Query         string
	Address       string
	Authenticated bool
}

// Response is the outcome of a search call.
type Response struct {
	Results []record.Record

	// TooShort is set when the query was rejected before any work was done.
	// None of the other fields are meaningful then.
	TooShort bool

	// Remaining is the number of free queries left, or Unlimited.
	Remaining int
	Premium   bool

	// Backend names the strategy that served the query; empty if none was
	// available.
	Backend string

	// Err is a *QuotaError when the caller was rate limited. Backend
	// failures are never reported here.
	Err error
}

// Service applies the quota and picks a backend for each query.
type Service struct {
	gate       ratelimit.Checker
	strategies []Strategy
	logger     *log.Logger
}

// NewService returns a service that checks gate for anonymous callers and
// tries strategies in order.
func NewService(gate ratelimit.Checker, strategies ...Strategy) *Service {
	return &Service{
		gate:       gate,
		strategies: strategies,
		logger:     log.ForService("search"),
	}
}

// Search runs one query. Queries shorter than MinQueryLength after trimming
// return immediately without touching the gate or any backend. Anonymous
// callers are counted by address; authenticated callers are not counted.
// Exactly one backend serves a query and a backend failure yields no results
// rather than an error.
func (s *Service) Search(ctx context.Context, req Request) Response {
	query := strings.TrimSpace(req.Query)
	if len([]rune(query)) < MinQueryLength {
		return Response{Results: []record.Record{}, TooShort: true}
	}

	resp := Response{
		Results:   []record.Record{},
		Remaining: Unlimited,
		Premium:   req.Authenticated,
	}

	if !req.Authenticated {
		d := s.gate.Check(req.Address)
		if !d.Allowed {
			s.logger.Debugf("quota exceeded for %s", req.Address)
			resp.Remaining = 0
			resp.Err = &QuotaError{Limit: d.Limit}
			return resp
		}
		resp.Remaining = d.Remaining
	}

	strategy := s.pick(ctx)
	if strategy == nil {
		s.logger.Debugf("no search backend available for %q", query)
		return resp
	}
	resp.Backend = strategy.Name()

	start := time.Now()
	results, err := strategy.Search(ctx, query)
	if err != nil {
		s.logger.Errorf("%s search failed: %v", strategy.Name(), err)
		return resp
	}
	if len(results) > 0 {
		resp.Results = results
	}
	s.logger.Debugf("%s: %q -> %d results in %s", strategy.Name(), query, len(results), time.Since(start))
	return resp
}

func (s *Service) pick(ctx context.Context) Strategy {
	for _, st := range s.strategies {
		if st.Available(ctx) {
			return st
		}
	}
	return nil
}

// Backends lists the configured strategy names in priority order.
func (s *Service) Backends() []string {
	names := make([]string, len(s.strategies))
	for i, st := range s.strategies {
		names[i] = st.Name()
	}
	return names
}
