package record

import "testing"

func TestClassifyHeader(t *testing.T) {
	tests := []struct {
		header string
		want   ColumnKind
	}{
		{"CompanyName", NameColumn},
		{"Company Name", NameColumn},
		{"name", NameColumn},
		{"CIN", IdentifierColumn},
		{"company_cin", IdentifierColumn},
		{"CompanyStateCode", StateColumn},
		{"State", StateColumn},
		{"CompanyStatus", StatusColumn},
		{"Status", StatusColumn},
		{"AuthorizedCapital", Unclassified},
		{"", Unclassified},
		// Name wins over state when a header matches both.
		{"State Name", NameColumn},
	}
	for _, tt := range tests {
		if got := ClassifyHeader(tt.header); got != tt.want {
			t.Errorf("ClassifyHeader(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestNewMapping(t *testing.T) {
	m := NewMapping([]string{"CIN", "CompanyName", "CompanyStateCode", "CompanyStatus", "PaidupCapital"})

	if m.CIN != 0 || m.Name != 1 || m.State != 2 || m.Status != 3 {
		t.Fatalf("unexpected mapping: %+v", m)
	}
	if m.Kind(4) != Unclassified {
		t.Errorf("expected column 4 to be unclassified, got %v", m.Kind(4))
	}
}

func TestNewMappingFirstMatchWins(t *testing.T) {
	m := NewMapping([]string{"Registrar", "CompanyName", "Former Name"})
	if m.Name != 1 {
		t.Fatalf("expected first name column, got %d", m.Name)
	}
	if m.Kind(2) != Unclassified {
		t.Errorf("second name-like column should fold into attributes, got %v", m.Kind(2))
	}
}

func TestNewMappingMissingColumns(t *testing.T) {
	m := NewMapping([]string{"foo", "bar"})
	if m.Name != -1 || m.CIN != -1 || m.State != -1 || m.Status != -1 {
		t.Fatalf("expected all columns missing, got %+v", m)
	}
}
