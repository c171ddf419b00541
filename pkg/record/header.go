package record

import "strings"

// ColumnKind is the role a header column plays in a Record.
type ColumnKind int

const (
	Unclassified ColumnKind = iota
	NameColumn
	IdentifierColumn
	StateColumn
	StatusColumn
)

func (k ColumnKind) String() string {
	switch k {
	case NameColumn:
		return "name"
	case IdentifierColumn:
		return "cin"
	case StateColumn:
		return "state"
	case StatusColumn:
		return "status"
	default:
		return "unclassified"
	}
}

// classifiedKinds is the precedence order used when one header matches
// several kinds.
var classifiedKinds = []ColumnKind{NameColumn, IdentifierColumn, StateColumn, StatusColumn}

// Matches reports whether header looks like a column of kind k. Matching is
// case-insensitive: "CompanyName" and "Company Name" are names, anything
// containing "CIN" is an identifier, "CompanyStateCode" is a state and
// "CompanyStatus" a status.
func (k ColumnKind) Matches(header string) bool {
	h := strings.ToLower(header)
	switch k {
	case NameColumn:
		return strings.Contains(h, "name")
	case IdentifierColumn:
		return strings.Contains(h, "cin")
	case StateColumn:
		return strings.Contains(h, "state")
	case StatusColumn:
		return strings.Contains(h, "status")
	}
	return false
}

// ClassifyHeader returns the first kind, in precedence order, that header
// matches.
func ClassifyHeader(header string) ColumnKind {
	for _, k := range classifiedKinds {
		if k.Matches(header) {
			return k
		}
	}
	return Unclassified
}

// Mapping resolves a header row to column positions. For each kind the first
// matching header wins, independently of the other kinds.
type Mapping struct {
	Headers []string
	Name    int
	CIN     int
	State   int
	Status  int
}

// NewMapping builds the column mapping for a header row. Missing columns are
// reported as -1.
func NewMapping(headers []string) Mapping {
	m := Mapping{Headers: headers, Name: -1, CIN: -1, State: -1, Status: -1}
	for _, k := range classifiedKinds {
		for i, h := range headers {
			if !k.Matches(h) {
				continue
			}
			switch k {
			case NameColumn:
				m.Name = i
			case IdentifierColumn:
				m.CIN = i
			case StateColumn:
				m.State = i
			case StatusColumn:
				m.Status = i
			}
			break
		}
	}
	return m
}

// Kind returns the kind assigned to column i by this mapping.
func (m Mapping) Kind(i int) ColumnKind {
	switch i {
	case m.Name:
		return NameColumn
	case m.CIN:
		return IdentifierColumn
	case m.State:
		return StateColumn
	case m.Status:
		return StatusColumn
	}
	return Unclassified
}
