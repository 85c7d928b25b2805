package query

import (
	"fmt"
	"strings"
)

// PrefixMatch selects how the lower bound of the identifier prefix filter is
// compared.
type PrefixMatch string

const (
	// PrefixInclusive uses external_identifier >= prefix, so a bag whose
	// identifier equals the prefix is matched.
	PrefixInclusive PrefixMatch = "inclusive"

	// PrefixStrict uses external_identifier > prefix, which excludes a bag
	// whose identifier equals the prefix.
	PrefixStrict PrefixMatch = "strict"

	// DefaultPrefixMatch is used when no mode is configured.
	DefaultPrefixMatch = PrefixInclusive
)

// ParsePrefixMatch parses a configured mode. The empty string selects
// DefaultPrefixMatch.
func ParsePrefixMatch(s string) (PrefixMatch, error) {
	switch PrefixMatch(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultPrefixMatch, nil
	case PrefixInclusive:
		return PrefixInclusive, nil
	case PrefixStrict:
		return PrefixStrict, nil
	default:
		return "", fmt.Errorf("query: unknown prefix match mode %q (want %q or %q)", s, PrefixInclusive, PrefixStrict)
	}
}

func (m PrefixMatch) lowerBoundOp() string {
	if m == PrefixStrict {
		return ">"
	}
	return ">="
}

// Bounds used when a date filter is absent.
const (
	lowDateSentinel  = "2000-01-01"
	highDateSentinel = "3000-01-01"
)

// filter is the WHERE clause shared by every read of one query, with its
// positional arguments.
type filter struct {
	where string
	args  []interface{}
}

// buildFilter renders the predicate for qc. Upper bounds get a trailing 'z'
// appended in SQL, which turns "<= prefix" into "starts with prefix" and a
// date-only bound into an inclusive bound on full timestamps.
func buildFilter(qc QueryContext, mode PrefixMatch) filter {
	after := qc.CreatedAfter
	if after == "" {
		after = lowDateSentinel
	}
	before := qc.CreatedBefore
	if before == "" {
		before = highDateSentinel
	}

	where := fmt.Sprintf(`space = ?
		AND external_identifier %s ? AND external_identifier <= ? || 'z'
		AND created_date >= ? AND created_date <= ? || 'z'`, mode.lowerBoundOp())

	return filter{
		where: where,
		args: []interface{}{
			qc.Space,
			qc.ExternalIdentifierPrefix,
			qc.ExternalIdentifierPrefix,
			after,
			before,
		},
	}
}
