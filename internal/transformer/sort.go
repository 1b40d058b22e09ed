package transformer

import (
	"cmp"
	"slices"

	"genrechart/internal/table"
)

// Sorter orders rows by Features, ranking every column in Classes by its
// allow-list position.
type Sorter struct {
	Features []string
	Classes  ClassFilter
}

func (Sorter) Name() string { return "sort" }

func (s Sorter) Apply(t *table.Table) (*table.Table, error) {
	return Sort(t, s.Features, s.Classes)
}

// sortKey is how one feature column participates in the ordering.
type sortKey struct {
	col   int
	ranks []int // per-row allow-list position; nil for natural order
}

// Sort returns a new table with the rows of t in ascending order of the
// features tuple. Columns named in classes compare by allow-list position
// rather than by value; every other feature compares naturally (see
// table.Compare). The sort is stable, so rows with equal keys keep their
// relative order. t itself is not modified.
//
// A feature or class-filter column missing from t yields a *SchemaError. A
// value of a class-filter column that is not on its allow-list yields a
// *RankError, since its position would be undefined.
func Sort(t *table.Table, features []string, classes ClassFilter) (*table.Table, error) {
	if err := t.Validate(); err != nil {
		return nil, &TypeMismatchError{Op: "sort", Reason: err.Error()}
	}
	if miss := t.Missing(features...); len(miss) > 0 {
		return nil, &SchemaError{Op: "sort", Columns: miss}
	}
	if miss := t.Missing(classes.Columns()...); len(miss) > 0 {
		return nil, &SchemaError{Op: "sort", Columns: miss}
	}

	// Every ranked column is checked, including ones not used as sort keys.
	ranked := make(map[string][]int, len(classes))
	for _, c := range classes.Columns() {
		ranks, err := rankColumn(t, c, classes.ranker(c))
		if err != nil {
			return nil, err
		}
		ranked[c] = ranks
	}

	keys := make([]sortKey, len(features))
	for i, f := range features {
		j, _ := t.Index(f)
		keys[i] = sortKey{col: j, ranks: ranked[f]}
	}

	perm := make([]int, t.Len())
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) int {
		for _, k := range keys {
			var c int
			if k.ranks != nil {
				c = cmp.Compare(k.ranks[a], k.ranks[b])
			} else {
				c = table.Compare(t.Cell(a, k.col), t.Cell(b, k.col))
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return t.Select(perm), nil
}

func rankColumn(t *table.Table, column string, r ranker) ([]int, error) {
	j, _ := t.Index(column)
	ranks := make([]int, t.Len())
	for i := range ranks {
		v := t.Cell(i, j)
		pos, ok := r.rank(v)
		if !ok {
			return nil, &RankError{Op: "sort", Column: column, Value: v, Row: i}
		}
		ranks[i] = pos
	}
	return ranks, nil
}
