package fallback

import (
	"errors"
	"io"
	"io/fs"

	"github.com/company-explorer/explorer/pkg/flatstore"
	"github.com/company-explorer/explorer/pkg/index"
	"github.com/company-explorer/explorer/pkg/record"
)

// SkipReason says why a matched entry produced no record.
type SkipReason string

const (
	ReasonInvalidEntry SkipReason = "invalid entry"
	ReasonMissingFile  SkipReason = "missing file"
	ReasonBadLocation  SkipReason = "bad location"
	ReasonReadFailed   SkipReason = "read failed"
	ReasonNoName       SkipReason = "no name"
	ReasonStale        SkipReason = "stale entry"
	ReasonCanceled     SkipReason = "canceled"
)

// Outcome is the result of resolving one index entry: either a Record or a
// skip with its reason.
type Outcome struct {
	Entry   index.Entry
	Record  record.Record
	Skipped bool
	Reason  SkipReason
	Err     error
}

// OK reports whether the outcome carries a record.
func (o Outcome) OK() bool {
	return !o.Skipped
}

func ok(e index.Entry, r record.Record) Outcome {
	return Outcome{Entry: e, Record: r}
}

func skipped(e index.Entry, reason SkipReason, err error) Outcome {
	return Outcome{Entry: e, Skipped: true, Reason: reason, Err: err}
}

// reasonFor maps a retrieval error onto a skip reason.
func reasonFor(err error) SkipReason {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ReasonMissingFile
	case errors.Is(err, flatstore.ErrInvalidLocation):
		return ReasonInvalidEntry
	case errors.Is(err, flatstore.ErrMisaligned), errors.Is(err, io.ErrUnexpectedEOF):
		return ReasonBadLocation
	case errors.Is(err, record.ErrNoName):
		return ReasonNoName
	}
	return ReasonReadFailed
}

// Tally counts outcomes by skip reason.
type Tally struct {
	OK      int
	Skipped map[SkipReason]int
}

func tally(outcomes []Outcome) Tally {
	t := Tally{Skipped: make(map[SkipReason]int)}
	for _, o := range outcomes {
		if o.OK() {
			t.OK++
			continue
		}
		t.Skipped[o.Reason]++
	}
	return t
}

// TotalSkipped is the number of outcomes without a record.
func (t Tally) TotalSkipped() int {
	n := 0
	for _, c := range t.Skipped {
		n += c
	}
	return n
}
