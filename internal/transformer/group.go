package transformer

import (
	"slices"
	"strings"

	"github.com/zeebo/xxh3"

	"genrechart/internal/table"
)

// CountColumn is the synthetic column appended by GroupAndCount.
const CountColumn = "count"

// Aggregator collapses duplicate rows and counts them.
type Aggregator struct{}

func (Aggregator) Name() string { return "group" }

func (Aggregator) Apply(t *table.Table) (*table.Table, error) {
	return GroupAndCount(t)
}

type group struct {
	first int   // representative row in the input
	count int64 // rows sharing the combination
}

// GroupAndCount treats every column of t as a grouping key and returns one
// row per distinct combination, followed by a CountColumn holding how many
// input rows share it. Groups come out in ascending natural order of their key
// tuple. Row hashes use xxh3 over the canonical value keys; hash collisions
// are resolved by comparing the rows themselves.
func GroupAndCount(t *table.Table) (*table.Table, error) {
	if err := t.Validate(); err != nil {
		return nil, &TypeMismatchError{Op: "group", Reason: err.Error()}
	}
	if t.Width() == 0 {
		return nil, &TypeMismatchError{Op: "group", Reason: "table has no columns"}
	}
	if t.HasColumn(CountColumn) {
		return nil, &SchemaError{Op: "group", Columns: []string{CountColumn}, Reason: "column already exists"}
	}

	buckets := make(map[uint64][]int) // hash -> indexes into groups
	groups := make([]group, 0)
	var kb strings.Builder

	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		h := xxh3.HashString(rowKey(&kb, row))

		found := false
		for _, gi := range buckets[h] {
			if table.CompareRows(t.Row(groups[gi].first), row) == 0 {
				groups[gi].count++
				found = true
				break
			}
		}
		if !found {
			buckets[h] = append(buckets[h], len(groups))
			groups = append(groups, group{first: i, count: 1})
		}
	}

	slices.SortStableFunc(groups, func(a, b group) int {
		return table.CompareRows(t.Row(a.first), t.Row(b.first))
	})

	firsts := make([]int, len(groups))
	counts := make([]any, len(groups))
	for i, g := range groups {
		firsts[i] = g.first
		counts[i] = g.count
	}
	out := t.Select(firsts)
	if err := out.AddColumn(CountColumn, counts); err != nil {
		return nil, &SchemaError{Op: "group", Columns: []string{CountColumn}, Reason: err.Error()}
	}
	return out, nil
}

// rowKey encodes a row so that rows comparing equal encode identically.
// Each value is prefixed by a kind tag so "1" (string) and 1 (number) differ.
func rowKey(b *strings.Builder, row []any) string {
	b.Reset()
	for _, v := range row {
		switch {
		case table.IsNull(v):
			b.WriteByte('0')
		case table.IsNumeric(v):
			b.WriteByte('n')
		default:
			if _, ok := v.(bool); ok {
				b.WriteByte('b')
			} else {
				b.WriteByte('s')
			}
		}
		b.WriteString(table.Key(v))
		b.WriteByte('\x1f')
	}
	return b.String()
}
