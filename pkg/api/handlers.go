package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/company-explorer/explorer/pkg/search"
	"github.com/company-explorer/explorer/pkg/version"
)

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	resp := s.searcher.Search(r.Context(), search.Request{
		Query:         r.URL.Query().Get("q"),
		Address:       clientAddress(r),
		Authenticated: s.auth.Authenticated(r),
	})

	body := SearchResponse{Results: resp.Results}
	if resp.TooShort {
		s.writeJSON(w, http.StatusOK, body)
		return
	}

	remaining, premium := resp.Remaining, resp.Premium
	body.Remaining = &remaining
	body.IsPremiumTier = &premium

	if resp.Err != nil {
		body.Error = resp.Err.Error()
		status := http.StatusInternalServerError
		if errors.Is(resp.Err, search.ErrQuotaExceeded) {
			status = http.StatusTooManyRequests
		}
		s.writeJSON(w, status, body)
		return
	}

	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		Backends:  s.searcher.Backends(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
