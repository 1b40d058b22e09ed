package transformer

import (
	"sort"

	"genrechart/internal/table"
)

// ClassFilter maps a column name to its ordered allow-list. The same value
// drives both row filtering (membership) in Clean and ranked ordering
// (position) in Sort.
//
// Membership compares table.Key(value) with the allow-list entries, so the
// entry "2010" admits an integer 2010. When an entry is listed twice it ranks
// at its first position.
type ClassFilter map[string][]string

// Columns returns the filtered column names in sorted order.
func (cf ClassFilter) Columns() []string {
	out := make([]string, 0, len(cf))
	for c := range cf {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Allows reports whether v is in column's allow-list. Columns without an
// entry allow everything.
func (cf ClassFilter) Allows(column string, v any) bool {
	allowed, ok := cf[column]
	if !ok {
		return true
	}
	k := table.Key(v)
	if table.IsNull(v) {
		return false
	}
	for _, a := range allowed {
		if a == k {
			return true
		}
	}
	return false
}

// Rank returns v's position in column's allow-list.
func (cf ClassFilter) Rank(column string, v any) (int, bool) {
	return cf.ranker(column).rank(v)
}

// ranker precomputes allow-list positions for one column.
type ranker map[string]int

func (cf ClassFilter) ranker(column string) ranker {
	r := make(ranker, len(cf[column]))
	for i, a := range cf[column] {
		if _, seen := r[a]; !seen {
			r[a] = i
		}
	}
	return r
}

func (r ranker) rank(v any) (int, bool) {
	if table.IsNull(v) {
		return 0, false
	}
	i, ok := r[table.Key(v)]
	return i, ok
}
