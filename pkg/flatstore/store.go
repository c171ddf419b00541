// Package flatstore gives read access to the flat data files: the
// line-oriented text files holding full company rows, one per line, with a
// header row first.
//
// Files are treated as an immutable snapshot. Every retrieval opens its own
// read-only handle and reads with an explicit offset, so concurrent lookups
// into the same file never share a cursor.
package flatstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/company-explorer/explorer/pkg/record"
)

// MaxLineBytes bounds a single row. Locations asking for more are rejected.
const MaxLineBytes = 1 << 20

var (
	// ErrInvalidLocation is returned for a file name, offset or length that
	// cannot address a line in the store.
	ErrInvalidLocation = errors.New("invalid data location")

	// ErrMisaligned is returned when the bytes at a location are not exactly
	// one complete line, which means the index is stale for that file.
	ErrMisaligned = errors.New("location does not address a whole line")

	// ErrLineTooLong is returned for a row or header over MaxLineBytes.
	ErrLineTooLong = errors.New("line too long")
)

const utf8BOM = "\ufeff"

type Store struct {
	dir     string
	headers sync.Map // map[string]record.Mapping
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// Path resolves a data file name inside the store directory. Names with
// path components are rejected.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: file %q", ErrInvalidLocation, name)
	}
	return filepath.Join(s.dir, name), nil
}

// ReadLine returns the length bytes at offset in file name. The bytes must
// form one complete line: preceded by a line break (or the start of the file)
// and followed by a line terminator (or the end of the file).
func (s *Store) ReadLine(name string, offset, length int64) (string, error) {
	if offset < 0 || length < 0 || length > MaxLineBytes {
		return "", fmt.Errorf("%w: offset %d length %d", ErrInvalidLocation, offset, length)
	}
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening data file: %w", err)
	}
	defer f.Close()

	// Read one byte either side of the line to check its boundaries.
	start, lead := offset, int64(0)
	if offset > 0 {
		start, lead = offset-1, 1
	}
	buf := make([]byte, lead+length+1)
	n, err := f.ReadAt(buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading %s at %d: %w", name, offset, err)
	}
	if int64(n) < lead+length {
		return "", fmt.Errorf("reading %s at %d: %w", name, offset, io.ErrUnexpectedEOF)
	}

	if lead == 1 && buf[0] != '\n' {
		return "", fmt.Errorf("%w: %s at %d does not start a line", ErrMisaligned, name, offset)
	}
	line := buf[lead : lead+length]
	if int64(n) > lead+length {
		if next := buf[lead+length]; next != '\n' && next != '\r' {
			return "", fmt.Errorf("%w: %s at %d is cut short", ErrMisaligned, name, offset)
		}
	}
	if bytes.IndexByte(line, '\n') >= 0 {
		return "", fmt.Errorf("%w: %s at %d spans lines", ErrMisaligned, name, offset)
	}

	return strings.TrimSuffix(string(line), "\r"), nil
}

// Header returns the column mapping of a file's header row. Mappings are
// cached per file until Reset.
func (s *Store) Header(name string) (record.Mapping, error) {
	if m, ok := s.headers.Load(name); ok {
		return m.(record.Mapping), nil
	}

	path, err := s.Path(name)
	if err != nil {
		return record.Mapping{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return record.Mapping{}, fmt.Errorf("opening data file: %w", err)
	}
	defer f.Close()

	line, err := readFirstLine(f)
	if err != nil {
		return record.Mapping{}, fmt.Errorf("reading header of %s: %w", name, err)
	}

	m := record.NewMapping(record.ParseLine(line))
	actual, _ := s.headers.LoadOrStore(name, m)
	return actual.(record.Mapping), nil
}

// Reset drops cached headers, for use after the data files were replaced.
func (s *Store) Reset() {
	s.headers.Range(func(k, _ any) bool {
		s.headers.Delete(k)
		return true
	})
}

// readFirstLine returns the header without BOM or line ending. The read is
// bounded one byte past the longest acceptable header so overflow is seen.
func readFirstLine(r io.Reader) (string, error) {
	bound := int64(len(utf8BOM) + MaxLineBytes + len("\r\n") + 1)
	br := bufio.NewReaderSize(io.LimitReader(r, bound), 64*1024)
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if line == "" {
		return "", io.ErrUnexpectedEOF
	}
	line = strings.TrimPrefix(line, utf8BOM)
	line = strings.TrimRight(line, "\r\n")
	if len(line) > MaxLineBytes {
		return "", fmt.Errorf("%w: header exceeds %d bytes", ErrLineTooLong, MaxLineBytes)
	}
	return line, nil
}

// IsDataFile reports whether a directory entry holds importable rows.
// Backups, compressed files and index artifacts are ignored, as is anything
// that is not delimited text.
func IsDataFile(name string) bool {
	switch {
	case strings.HasPrefix(name, "."),
		strings.HasPrefix(name, "search-index"),
		strings.HasSuffix(name, ".bak"),
		strings.HasSuffix(name, ".gz"),
		strings.HasSuffix(name, ".zst"):
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// Files lists the data files in the store directory in name order.
func (s *Store) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsDataFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
