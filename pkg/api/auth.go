package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
)

type anonymous struct{}

func (anonymous) Authenticated(*http.Request) bool { return false }

// SessionAuth accepts requests whose session cookie carries one of a fixed
// set of tokens. Issuing and rotating the tokens happens elsewhere.
type SessionAuth struct {
	cookie string
	tokens [][]byte
}

func NewSessionAuth(cookie string, tokens []string) *SessionAuth {
	a := &SessionAuth{cookie: cookie}
	for _, t := range tokens {
		if t != "" {
			a.tokens = append(a.tokens, []byte(t))
		}
	}
	return a
}

func (a *SessionAuth) Authenticated(r *http.Request) bool {
	if a == nil || len(a.tokens) == 0 {
		return false
	}
	c, err := r.Cookie(a.cookie)
	if err != nil || c.Value == "" {
		return false
	}
	got := []byte(c.Value)
	ok := 0
	for _, tok := range a.tokens {
		ok |= subtle.ConstantTimeCompare(got, tok)
	}
	return ok == 1
}

// clientAddress is the first X-Forwarded-For hop, or the connection's host.
func clientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
