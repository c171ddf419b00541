package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/company-explorer/explorer/pkg/log"
	"github.com/company-explorer/explorer/pkg/search"
)

// Searcher runs one search request. *search.Service implements it.
type Searcher interface {
	Search(ctx context.Context, req search.Request) search.Response
	Backends() []string
}

// Authenticator reports whether a request belongs to a logged-in caller.
type Authenticator interface {
	Authenticated(r *http.Request) bool
}

type Server struct {
	searcher Searcher
	auth     Authenticator
	logger   *log.Logger
}

// NewServer returns an API server. A nil auth treats every caller as
// anonymous.
func NewServer(searcher Searcher, auth Authenticator) *Server {
	if auth == nil {
		auth = anonymous{}
	}
	return &Server{
		searcher: searcher,
		auth:     auth,
		logger:   log.ForService("api"),
	}
}

// Handler returns the routed API wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return CorsMiddleware(mux)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
