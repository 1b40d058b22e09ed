package transformer

import (
	"genrechart/internal/table"
)

// Cleaner drops incomplete rows, projects onto Features and keeps only rows
// admitted by Classes.
type Cleaner struct {
	Features []string
	Classes  ClassFilter
}

func (Cleaner) Name() string { return "clean" }

func (c Cleaner) Apply(t *table.Table) (*table.Table, error) {
	return Clean(t, c.Features, c.Classes)
}

// Clean returns a new table built from t in four steps:
//
//  1. rows holding a missing value in any column are dropped;
//  2. the result is projected onto features, in order;
//  3. for every column in classes, rows whose value is outside the
//     allow-list are dropped (a row must pass every filter);
//  4. rows are densely re-indexed.
//
// A feature or filtered column absent from the table, or a feature listed
// twice, yields a *SchemaError.
func Clean(t *table.Table, features []string, classes ClassFilter) (*table.Table, error) {
	if err := t.Validate(); err != nil {
		return nil, &TypeMismatchError{Op: "clean", Reason: err.Error()}
	}
	if miss := t.Missing(features...); len(miss) > 0 {
		return nil, &SchemaError{Op: "clean", Columns: miss}
	}
	if dup := duplicates(features); len(dup) > 0 {
		return nil, &SchemaError{Op: "clean", Columns: dup, Reason: "duplicate column"}
	}

	complete := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if !hasNull(t, i) {
			complete = append(complete, i)
		}
	}

	projected, err := t.Select(complete).Project(features)
	if err != nil {
		return nil, &SchemaError{Op: "clean", Columns: features, Reason: err.Error()}
	}

	filterCols := classes.Columns()
	if miss := projected.Missing(filterCols...); len(miss) > 0 {
		return nil, &SchemaError{Op: "clean", Columns: miss}
	}

	keep := make([]int, 0, projected.Len())
	for i := 0; i < projected.Len(); i++ {
		if admitted(projected, i, filterCols, classes) {
			keep = append(keep, i)
		}
	}
	return projected.Select(keep), nil
}

func hasNull(t *table.Table, row int) bool {
	for j := 0; j < t.Width(); j++ {
		if table.IsNull(t.Cell(row, j)) {
			return true
		}
	}
	return false
}

func admitted(t *table.Table, row int, cols []string, classes ClassFilter) bool {
	for _, c := range cols {
		j, _ := t.Index(c)
		if !classes.Allows(c, t.Cell(row, j)) {
			return false
		}
	}
	return true
}

// duplicates returns the names listed more than once, in first-repeat order.
func duplicates(names []string) []string {
	var dup []string
	seen := make(map[string]int, len(names))
	for _, n := range names {
		seen[n]++
		if seen[n] == 2 {
			dup = append(dup, n)
		}
	}
	return dup
}
