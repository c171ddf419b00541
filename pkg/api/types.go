package api

import (
	"time"

	"github.com/company-explorer/explorer/pkg/record"
)

// SearchResponse is the body of GET /api/search. Only Results is present
// when the query was too short to run.
type SearchResponse struct {
	Results       []record.Record `json:"results"`
	Error         string          `json:"error,omitempty"`
	Remaining     *int            `json:"remaining,omitempty"`
	IsPremiumTier *bool           `json:"isPremiumTier,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Backends  []string  `json:"backends"`
}
