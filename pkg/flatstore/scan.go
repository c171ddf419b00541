package flatstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Line is one line of a data file with its exact location.
type Line struct {
	Number int // 0 is the header row
	Offset int64
	Length int64 // bytes, terminator excluded
	Text   string
}

// ErrStop can be returned from a Scan callback to end the scan early without
// an error.
var ErrStop = errors.New("stop scan")

// Scan calls fn for every line of file name, in order. Offsets and lengths
// are byte exact so they can be stored in an index and later handed back to
// ReadLine. Both "\n" and "\r\n" terminators are excluded from Length. Lines
// longer than MaxLineBytes abort the scan.
func (s *Store) Scan(name string, fn func(Line) error) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening data file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 256*1024)
	var offset int64
	for n := 0; ; n++ {
		raw, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			raw, err = readLong(br, raw)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("scanning %s: %w", name, err)
		}
		if len(raw) == 0 && errors.Is(err, io.EOF) {
			return nil
		}

		size := int64(len(raw))
		text := strings.TrimSuffix(string(raw), "\n")
		text = strings.TrimSuffix(text, "\r")
		if n == 0 && strings.HasPrefix(text, utf8BOM) {
			// The BOM belongs to the file, not to the header row.
			offset += int64(len(utf8BOM))
			size -= int64(len(utf8BOM))
			text = strings.TrimPrefix(text, utf8BOM)
		}

		line := Line{Number: n, Offset: offset, Length: int64(len(text)), Text: text}
		if cbErr := fn(line); cbErr != nil {
			if errors.Is(cbErr, ErrStop) {
				return nil
			}
			return cbErr
		}
		offset += size

		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// readLong finishes a line that did not fit in the reader buffer.
func readLong(br *bufio.Reader, head []byte) ([]byte, error) {
	buf := append([]byte(nil), head...)
	for {
		more, err := br.ReadSlice('\n')
		buf = append(buf, more...)
		if len(buf) > MaxLineBytes+2 {
			return nil, fmt.Errorf("%w: exceeds %d bytes", ErrLineTooLong, MaxLineBytes)
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return buf, err
		}
	}
}
