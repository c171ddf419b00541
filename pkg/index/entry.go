// Package index reads and writes the compressed term index: an ordered list
// of entries, each mapping a lower-cased company name and an optional CIN to
// the exact byte location of the full row in a flat data file.
//
// The artifact is a gzip (or zstd) compressed JSON array:
//
//	[{"n":"acme, inc","c":"U1","f":"companies.csv","b":47,"l":24}, ...]
//
// An index is only valid against the snapshot of data files it was built
// from. Rewriting a data file in place invalidates every entry pointing into
// it; the index must be rebuilt whenever the data files change.
package index

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when the index artifact does not exist.
	ErrNotFound = errors.New("index artifact not found")
	// ErrCorrupt is returned when the artifact cannot be inflated or decoded.
	ErrCorrupt = errors.New("index artifact is corrupt")
)

// Entry is one indexed row.
type Entry struct {
	Name   string `json:"n"`
	CIN    string `json:"c,omitempty"`
	File   string `json:"f"`
	Offset int64  `json:"b"`
	Length int64  `json:"l"`

	cinLower string
}

// Validate reports why an entry cannot address a row, or nil.
func (e *Entry) Validate() error {
	switch {
	case e.Name == "":
		return errors.New("entry has no name")
	case e.File == "":
		return errors.New("entry has no file")
	case e.Offset < 0 || e.Length < 0:
		return errors.New("entry has a negative location")
	}
	return nil
}

// Matches reports whether the lower-cased query is an infix of the entry's
// name or, case-insensitively, of its CIN.
func (e *Entry) Matches(lowerQuery string) bool {
	return strings.Contains(e.Name, lowerQuery) ||
		(e.cinLower != "" && strings.Contains(e.cinLower, lowerQuery))
}

func (e *Entry) normalize() {
	e.Name = strings.ToLower(e.Name)
	e.cinLower = strings.ToLower(e.CIN)
}
