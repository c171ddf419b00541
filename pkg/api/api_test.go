package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/company-explorer/explorer/pkg/ratelimit"
	"github.com/company-explorer/explorer/pkg/record"
	"github.com/company-explorer/explorer/pkg/search"
)

type stubStore struct {
	records []record.Record
	calls   int
}

func (s *stubStore) Name() string                       { return "stub" }
func (s *stubStore) Available(ctx context.Context) bool { return true }
func (s *stubStore) Search(ctx context.Context, q string) ([]record.Record, error) {
	s.calls++
	return s.records, nil
}

func setupTestAPIServer(t *testing.T, limit int) (http.Handler, *stubStore) {
	t.Helper()
	store := &stubStore{records: []record.Record{
		{
			ID:         "a1",
			Name:       "Acme Corp",
			CIN:        "U12345",
			State:      "Karnataka",
			Status:     "Active",
			Attributes: map[string]string{"Paid Up Capital": "100000"},
		},
	}}
	svc := search.NewService(ratelimit.New(limit, time.Hour, nil), store)
	auth := NewSessionAuth("session", []string{"secret-token"})
	return NewServer(svc, auth).Handler(), store
}

func doGet(t *testing.T, h http.Handler, target string, mutate func(*http.Request)) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding %s response %q: %v", target, w.Body.String(), err)
	}
	return w, body
}

func TestHandleSearch(t *testing.T) {
	h, store := setupTestAPIServer(t, 10)

	w, body := doGet(t, h, "/api/search?q=acme", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	results, ok := body["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("results = %v", body["results"])
	}
	first := results[0].(map[string]any)
	for key, want := range map[string]string{
		"id":              "a1",
		"name":            "Acme Corp",
		"cin":             "U12345",
		"state":           "Karnataka",
		"status":          "Active",
		"Paid Up Capital": "100000",
	} {
		if first[key] != want {
			t.Errorf("result[%q] = %v, want %q", key, first[key], want)
		}
	}
	if body["remaining"] != float64(9) {
		t.Errorf("remaining = %v, want 9", body["remaining"])
	}
	if body["isPremiumTier"] != false {
		t.Errorf("isPremiumTier = %v, want false", body["isPremiumTier"])
	}
	if _, has := body["error"]; has {
		t.Errorf("unexpected error field: %v", body["error"])
	}
	if store.calls != 1 {
		t.Errorf("store called %d times", store.calls)
	}
}

func TestHandleSearchShortQuery(t *testing.T) {
	h, store := setupTestAPIServer(t, 10)

	for _, target := range []string{"/api/search", "/api/search?q=", "/api/search?q=a", "/api/search?q=%20x%20"} {
		w, body := doGet(t, h, target, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d", target, w.Code)
		}
		if len(body) != 1 {
			t.Errorf("%s: want only results, got %v", target, body)
		}
		if results, ok := body["results"].([]any); !ok || len(results) != 0 {
			t.Errorf("%s: results = %v", target, body["results"])
		}
	}
	if store.calls != 0 {
		t.Errorf("store called %d times for short queries", store.calls)
	}
}

func TestHandleSearchQuota(t *testing.T) {
	h, _ := setupTestAPIServer(t, 2)
	fromClient := func(r *http.Request) { r.RemoteAddr = "192.0.2.10:5555" }

	for i := 0; i < 2; i++ {
		if w, _ := doGet(t, h, "/api/search?q=acme", fromClient); w.Code != http.StatusOK {
			t.Fatalf("query %d: status %d", i, w.Code)
		}
	}

	w, body := doGet(t, h, "/api/search?q=acme", fromClient)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "Free search limit exceeded (2 per day)") {
		t.Errorf("error = %q", msg)
	}
	if body["remaining"] != float64(0) {
		t.Errorf("remaining = %v, want 0", body["remaining"])
	}
	if results, ok := body["results"].([]any); !ok || len(results) != 0 {
		t.Errorf("results = %v", body["results"])
	}

	// Another client is unaffected; so is the same client once logged in.
	other := func(r *http.Request) { r.RemoteAddr = "192.0.2.11:5555" }
	if w, _ := doGet(t, h, "/api/search?q=acme", other); w.Code != http.StatusOK {
		t.Errorf("other client: status %d", w.Code)
	}
	loggedIn := func(r *http.Request) {
		fromClient(r)
		r.AddCookie(&http.Cookie{Name: "session", Value: "secret-token"})
	}
	w, body = doGet(t, h, "/api/search?q=acme", loggedIn)
	if w.Code != http.StatusOK {
		t.Fatalf("logged in: status %d", w.Code)
	}
	if body["isPremiumTier"] != true || body["remaining"] != float64(search.Unlimited) {
		t.Errorf("logged in: body = %v", body)
	}
}

func TestForwardedForIsTheCallerAddress(t *testing.T) {
	h, _ := setupTestAPIServer(t, 1)
	viaProxy := func(addr string) func(*http.Request) {
		return func(r *http.Request) {
			r.RemoteAddr = "10.0.0.1:80"
			r.Header.Set("X-Forwarded-For", addr+", 10.0.0.1")
		}
	}

	if w, _ := doGet(t, h, "/api/search?q=acme", viaProxy("198.51.100.1")); w.Code != http.StatusOK {
		t.Fatalf("first client: %d", w.Code)
	}
	if w, _ := doGet(t, h, "/api/search?q=acme", viaProxy("198.51.100.2")); w.Code != http.StatusOK {
		t.Fatalf("second client behind the same proxy was limited: %d", w.Code)
	}
	if w, _ := doGet(t, h, "/api/search?q=acme", viaProxy("198.51.100.1")); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first client again: %d, want 429", w.Code)
	}
}

func TestClientAddress(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr", "192.0.2.1:1234", "", "192.0.2.1"},
		{"ipv6 remote addr", "[2001:db8::1]:443", "", "2001:db8::1"},
		{"no port", "192.0.2.1", "", "192.0.2.1"},
		{"forwarded single", "10.0.0.1:80", "203.0.113.9", "203.0.113.9"},
		{"forwarded chain", "10.0.0.1:80", " 203.0.113.9 , 10.0.0.2", "203.0.113.9"},
		{"forwarded blank", "10.0.0.1:80", " , 10.0.0.2", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientAddress(r); got != tt.want {
				t.Errorf("clientAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionAuth(t *testing.T) {
	auth := NewSessionAuth("sid", []string{"tok-1", "", "tok-2"})

	tests := []struct {
		name   string
		cookie *http.Cookie
		want   bool
	}{
		{"no cookie", nil, false},
		{"wrong cookie name", &http.Cookie{Name: "other", Value: "tok-1"}, false},
		{"empty value", &http.Cookie{Name: "sid", Value: ""}, false},
		{"unknown token", &http.Cookie{Name: "sid", Value: "tok-3"}, false},
		{"prefix of token", &http.Cookie{Name: "sid", Value: "tok-"}, false},
		{"first token", &http.Cookie{Name: "sid", Value: "tok-1"}, true},
		{"second token", &http.Cookie{Name: "sid", Value: "tok-2"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.cookie != nil {
				r.AddCookie(tt.cookie)
			}
			if got := auth.Authenticated(r); got != tt.want {
				t.Errorf("Authenticated() = %v, want %v", got, tt.want)
			}
		})
	}

	if NewSessionAuth("sid", nil).Authenticated(httptest.NewRequest("GET", "/", nil)) {
		t.Error("auth without tokens accepted a request")
	}
}

func TestHandleHealth(t *testing.T) {
	h, _ := setupTestAPIServer(t, 10)

	w, body := doGet(t, h, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	backends, _ := body["backends"].([]any)
	if len(backends) != 1 || backends[0] != "stub" {
		t.Errorf("backends = %v", body["backends"])
	}
}

func TestCorsMiddleware(t *testing.T) {
	h, store := setupTestAPIServer(t, 10)

	req := httptest.NewRequest("OPTIONS", "/api/search?q=acme", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("preflight status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
	if store.calls != 0 {
		t.Error("preflight reached the search service")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := setupTestAPIServer(t, 10)

	req := httptest.NewRequest("POST", "/api/search?q=acme", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
