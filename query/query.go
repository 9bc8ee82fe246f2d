// Package query builds the textual search clauses sent to the catalog.
//
// Queries are treated as opaque strings: clauses are rendered and joined,
// never parsed.
package query

import "strings"

const (
	// DefaultMaxGroupSize bounds the number of values in one disjunctive
	// clause. Larger clauses are rejected by the remote query parser.
	DefaultMaxGroupSize = 800

	// FieldExtractorRunID is the field matched by run tokens.
	FieldExtractorRunID = "extractorRunId"

	// MatchAll selects every document.
	MatchAll = "*:*"
)

// Partition splits tokens into groups of at most maxGroupSize, keeping the
// input order. Repeated tokens are kept at their first occurrence only.
// A non-positive maxGroupSize selects DefaultMaxGroupSize.
func Partition(tokens []string, maxGroupSize int) [][]string {
	if maxGroupSize <= 0 {
		maxGroupSize = DefaultMaxGroupSize
	}

	seen := make(map[string]struct{}, len(tokens))
	var (
		groups  [][]string
		current []string
	)
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}

		current = append(current, tok)
		if len(current) == maxGroupSize {
			groups = append(groups, current)
			current = nil
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// BuildClause renders field:(v1 OR v2 ...). Empty values are skipped; with no
// values left the clause is field:(), which matches nothing.
func BuildClause(field string, values []string) string {
	var b strings.Builder
	b.WriteString(field)
	b.WriteString(":(")
	first := true
	for _, v := range values {
		if v == "" {
			continue
		}
		if !first {
			b.WriteString(" OR ")
		}
		b.WriteString(v)
		first = false
	}
	b.WriteByte(')')
	return b.String()
}

// Conjoin returns "q1 AND q2", or whichever side is non-empty.
func Conjoin(q1, q2 string) string {
	switch {
	case q1 == "":
		return q2
	case q2 == "":
		return q1
	default:
		return q1 + " AND " + q2
	}
}
