package record

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

var testHeaders = []string{"CIN", "CompanyName", "CompanyStateCode", "CompanyStatus", "PaidupCapital"}

func TestFromRow(t *testing.T) {
	m := NewMapping(testHeaders)
	r, err := FromRow(m, ParseLine(`U1,"Acme, Inc",MH,Active,100000`))
	if err != nil {
		t.Fatalf("FromRow: %v", err)
	}

	if r.Name != "Acme, Inc" || r.CIN != "U1" || r.State != "MH" || r.Status != "Active" {
		t.Errorf("unexpected record: %+v", r)
	}
	if len(r.Attributes) != 1 || r.Attributes["PaidupCapital"] != "100000" {
		t.Errorf("unexpected attributes: %v", r.Attributes)
	}
}

func TestFromRowShortRow(t *testing.T) {
	m := NewMapping(testHeaders)
	r, err := FromRow(m, []string{"U1", "Acme"})
	if err != nil {
		t.Fatalf("FromRow: %v", err)
	}
	if r.State != "" || r.Status != "" || r.Attributes["PaidupCapital"] != "" {
		t.Errorf("expected missing columns to be empty: %+v", r)
	}
}

func TestFromRowRejectsPlaceholder(t *testing.T) {
	m := NewMapping(testHeaders)
	for _, row := range [][]string{
		{"U1", "", "MH"},
		{"U1", Placeholder, "MH"},
		{"U1"},
	} {
		if _, err := FromRow(m, row); !errors.Is(err, ErrNoName) {
			t.Errorf("FromRow(%q) error = %v, want ErrNoName", row, err)
		}
	}

	noName := NewMapping([]string{"CIN"})
	if _, err := FromRow(noName, []string{"U1"}); !errors.Is(err, ErrNoName) {
		t.Errorf("expected ErrNoName without a name column, got %v", err)
	}
}

func TestRecordJSON(t *testing.T) {
	r := Record{
		ID:         "abc",
		Name:       "Acme",
		CIN:        "U1",
		Attributes: map[string]string{"PaidupCapital": "10", "name": "shadowed"},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if flat["name"] != "Acme" {
		t.Errorf("canonical name should win, got %q", flat["name"])
	}
	if flat["PaidupCapital"] != "10" || flat["id"] != "abc" {
		t.Errorf("unexpected flattened record: %v", flat)
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal record: %v", err)
	}
	if back.Name != "Acme" || back.Attributes["PaidupCapital"] != "10" {
		t.Errorf("unexpected decoded record: %+v", back)
	}
	if _, ok := back.Attributes["name"]; ok {
		t.Error("canonical keys should not appear in attributes")
	}
}
