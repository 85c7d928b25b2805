package query

import (
	"strings"
	"testing"
)

func TestParsePrefixMatch(t *testing.T) {
	tests := []struct {
		in      string
		want    PrefixMatch
		wantErr bool
	}{
		{"", PrefixInclusive, false},
		{"inclusive", PrefixInclusive, false},
		{"STRICT", PrefixStrict, false},
		{" strict ", PrefixStrict, false},
		{"fuzzy", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePrefixMatch(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePrefixMatch(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePrefixMatch(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildFilter_Operators(t *testing.T) {
	qc := QueryContext{Space: "digitised", ExternalIdentifierPrefix: "b1234", Page: 1, PageSize: 10}

	inclusive := buildFilter(qc, PrefixInclusive)
	if !strings.Contains(inclusive.where, "external_identifier >= ?") {
		t.Errorf("inclusive filter: %s", inclusive.where)
	}
	strict := buildFilter(qc, PrefixStrict)
	if !strings.Contains(strict.where, "external_identifier > ?") {
		t.Errorf("strict filter: %s", strict.where)
	}
}

func TestBuildFilter_DateSentinels(t *testing.T) {
	f := buildFilter(QueryContext{Space: "digitised"}, PrefixInclusive)
	if len(f.args) != 5 {
		t.Fatalf("len(args) = %d, want 5", len(f.args))
	}
	if f.args[3] != lowDateSentinel || f.args[4] != highDateSentinel {
		t.Errorf("date args = %v, %v", f.args[3], f.args[4])
	}

	f = buildFilter(QueryContext{Space: "digitised", CreatedAfter: "2019-01-01", CreatedBefore: "2019-12-31"}, PrefixInclusive)
	if f.args[3] != "2019-01-01" || f.args[4] != "2019-12-31" {
		t.Errorf("date args = %v, %v", f.args[3], f.args[4])
	}
}
