// Package record holds the canonical company record together with the line
// parser and header classification used to build one from a raw data row.
package record

import (
	"errors"

	"github.com/goccy/go-json"
)

// Placeholder is the name given to rows whose name column is empty. Such rows
// are never turned into a Record.
const Placeholder = "Unknown"

// ErrNoName is returned by FromRow when the row has no usable name.
var ErrNoName = errors.New("row has no company name")

// Record is the canonical company representation returned to callers.
type Record struct {
	ID     string
	Name   string
	State  string
	CIN    string
	Status string
	// Attributes holds the unclassified columns of the source row, keyed by
	// the original header.
	Attributes map[string]string
}

// FromRow builds a Record from a parsed row using the header mapping. Values
// past the end of the row are treated as empty.
func FromRow(m Mapping, fields []string) (Record, error) {
	at := func(i int) string {
		if i < 0 || i >= len(fields) {
			return ""
		}
		return fields[i]
	}

	name := at(m.Name)
	if name == "" || name == Placeholder {
		return Record{}, ErrNoName
	}

	r := Record{
		Name:       name,
		CIN:        at(m.CIN),
		State:      at(m.State),
		Status:     at(m.Status),
		Attributes: make(map[string]string),
	}
	for i, h := range m.Headers {
		if m.Kind(i) != Unclassified || h == "" {
			continue
		}
		r.Attributes[h] = at(i)
	}
	return r, nil
}

// MarshalJSON renders attributes next to the canonical keys. Canonical keys
// take precedence over an attribute with the same header.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(r.Attributes)+5)
	for k, v := range r.Attributes {
		out[k] = v
	}
	out["id"] = r.ID
	out["name"] = r.Name
	out["state"] = r.State
	out["cin"] = r.CIN
	out["status"] = r.Status
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in map[string]string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.ID, r.Name, r.State, r.CIN, r.Status = in["id"], in["name"], in["state"], in["cin"], in["status"]
	for _, k := range []string{"id", "name", "state", "cin", "status"} {
		delete(in, k)
	}
	r.Attributes = in
	return nil
}
