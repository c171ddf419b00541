package index

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// DefaultMaxBytes caps the inflated size of an artifact.
const DefaultMaxBytes = 512 << 20

// Index is a loaded, immutable snapshot of the artifact. It is safe for
// concurrent use.
type Index struct {
	entries []Entry
	path    string
	modTime time.Time
}

// Load reads, inflates and decodes the artifact at path. maxBytes bounds the
// inflated size; zero means DefaultMaxBytes.
func Load(path string, maxBytes int64) (*Index, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat index: %w", err)
	}

	entries, err := Decode(f, maxBytes)
	if err != nil {
		return nil, err
	}
	return &Index{
		entries: entries,
		path:    path,
		modTime: info.ModTime(),
	}, nil
}

// Decode inflates r and decodes the entry array, preserving order. The stream
// is read to its end so checksum failures and trailing data are reported.
func Decode(r io.Reader, maxBytes int64) ([]Entry, error) {
	zr, err := inflate(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	lr := &io.LimitedReader{R: zr, N: maxBytes + 1}
	dec := json.NewDecoder(lr)
	var entries []Entry
	if err := dec.Decode(&entries); err != nil {
		if lr.N <= 0 {
			return nil, fmt.Errorf("%w: inflated size exceeds %d bytes", ErrCorrupt, maxBytes)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	trailer, err := io.ReadAll(io.MultiReader(dec.Buffered(), lr))
	if lr.N <= 0 {
		return nil, fmt.Errorf("%w: inflated size exceeds %d bytes", ErrCorrupt, maxBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(bytes.TrimSpace(trailer)) > 0 {
		return nil, fmt.Errorf("%w: trailing data after entry array", ErrCorrupt)
	}
	for i := range entries {
		entries[i].normalize()
	}
	return entries, nil
}

// New builds an in-memory index from entries, mostly for tests and tools.
func New(entries []Entry) *Index {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	for i := range cp {
		cp[i].normalize()
	}
	return &Index{entries: cp}
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Entries returns the entries in index order. The slice must not be
// modified.
func (ix *Index) Entries() []Entry {
	return ix.entries
}

// Path is the artifact the index was loaded from, if any.
func (ix *Index) Path() string {
	return ix.path
}

// ModTime is the modification time of the artifact at load.
func (ix *Index) ModTime() time.Time {
	return ix.modTime
}

// Filter returns up to limit entries matching the lower-cased query, in
// index order. There is no ranking: build order is the only ordering.
func (ix *Index) Filter(lowerQuery string, limit int) []Entry {
	var out []Entry
	if limit <= 0 {
		return out
	}
	for i := range ix.entries {
		if ix.entries[i].Matches(lowerQuery) {
			out = append(out, ix.entries[i])
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
