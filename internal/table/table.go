// Package table implements the in-memory tabular model shared by every stage
// of the pipeline: an ordered set of named, equal-length columns.
//
// Rows are addressed by position only. Operations that drop or reorder rows
// (Select, Project) always return a new Table whose rows are densely indexed
// from zero; the receiver is never modified.
//
// Cell values are untyped (any). The parser produces nil for missing cells and
// string, int64, float64 or bool otherwise; see value.go for ordering rules.
package table

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateColumn is returned when a column name appears twice.
	ErrDuplicateColumn = errors.New("table: duplicate column")
	// ErrUnknownColumn is returned when a referenced column does not exist.
	ErrUnknownColumn = errors.New("table: unknown column")
	// ErrRowWidth is returned when a row does not have one value per column.
	ErrRowWidth = errors.New("table: row width mismatch")
)

// Table is an ordered collection of named columns of equal length.
// The zero value is not usable; construct with New or FromRows.
type Table struct {
	names []string
	index map[string]int
	cols  [][]any
}

// New returns an empty table with the given columns.
func New(names ...string) (*Table, error) {
	t := &Table{
		names: make([]string, 0, len(names)),
		index: make(map[string]int, len(names)),
		cols:  make([][]any, 0, len(names)),
	}
	for _, n := range names {
		if _, dup := t.index[n]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, n)
		}
		t.index[n] = len(t.names)
		t.names = append(t.names, n)
		t.cols = append(t.cols, nil)
	}
	return t, nil
}

// FromRows builds a table from row-major data. Every row must carry exactly
// len(names) values.
func FromRows(names []string, rows [][]any) (*Table, error) {
	t, err := New(names...)
	if err != nil {
		return nil, err
	}
	for i := range t.cols {
		t.cols[i] = make([]any, 0, len(rows))
	}
	for _, r := range rows {
		if err := t.AppendRow(r...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AppendRow adds one row at the end of the table.
func (t *Table) AppendRow(vals ...any) error {
	if len(vals) != len(t.names) {
		return fmt.Errorf("%w: got %d values for %d columns", ErrRowWidth, len(vals), len(t.names))
	}
	for i, v := range vals {
		t.cols[i] = append(t.cols[i], v)
	}
	return nil
}

// AddColumn appends a new column. vals must have one entry per existing row.
func (t *Table) AddColumn(name string, vals []any) error {
	if _, dup := t.index[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	if len(t.names) > 0 && len(vals) != t.Len() {
		return fmt.Errorf("%w: column %q has %d values for %d rows", ErrRowWidth, name, len(vals), t.Len())
	}
	t.index[name] = len(t.names)
	t.names = append(t.names, name)
	t.cols = append(t.cols, append([]any(nil), vals...))
	return nil
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.names...)
}

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.names) }

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0])
}

// HasColumn reports whether name is a column of t.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Index returns the position of column name.
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Missing returns the names from want that are not columns of t, in the order
// they were requested.
func (t *Table) Missing(want ...string) []string {
	var out []string
	for _, n := range want {
		if !t.HasColumn(n) {
			out = append(out, n)
		}
	}
	return out
}

// Cell returns the value at row i, column j.
func (t *Table) Cell(i, j int) any { return t.cols[j][i] }

// Column returns a copy of the values of column name.
func (t *Table) Column(name string) ([]any, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return append([]any(nil), t.cols[j]...), true
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.cols))
	for j := range t.cols {
		out[j] = t.cols[j][i]
	}
	return out
}

// Rows returns a row-major copy of the table.
func (t *Table) Rows() [][]any {
	out := make([][]any, t.Len())
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

// Select returns a new table holding the given rows, in the given order.
func (t *Table) Select(rows []int) *Table {
	out := t.emptyLike(t.names, len(rows))
	for j, col := range t.cols {
		dst := out.cols[j]
		for _, i := range rows {
			dst = append(dst, col[i])
		}
		out.cols[j] = dst
	}
	return out
}

// Project returns a new table with exactly the named columns, in order.
func (t *Table) Project(names []string) (*Table, error) {
	if miss := t.Missing(names...); len(miss) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, miss)
	}
	out, err := New(names...)
	if err != nil {
		return nil, err
	}
	for j, n := range names {
		out.cols[j] = append([]any(nil), t.cols[t.index[n]]...)
	}
	return out, nil
}


// Validate checks that the table is well formed: unique names and a uniform row
// count. A nil table is invalid.
func (t *Table) Validate() error {
	if t == nil {
		return errors.New("table: nil table")
	}
	if len(t.names) != len(t.cols) || len(t.names) != len(t.index) {
		return errors.New("table: column index out of sync")
	}
	n := t.Len()
	for j, col := range t.cols {
		if len(col) != n {
			return fmt.Errorf("%w: column %q has %d rows, want %d", ErrRowWidth, t.names[j], len(col), n)
		}
	}
	return nil
}

// Equal reports whether both tables have the same columns, in the same order,
// and the same rows. Values are compared with Compare, so int64(2) equals
// float64(2).
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.names) != len(o.names) || t.Len() != o.Len() {
		return false
	}
	for j := range t.names {
		if t.names[j] != o.names[j] {
			return false
		}
		for i := range t.cols[j] {
			if Compare(t.cols[j][i], o.cols[j][i]) != 0 {
				return false
			}
		}
	}
	return true
}

func (t *Table) emptyLike(names []string, capacity int) *Table {
	out := &Table{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
		cols:  make([][]any, len(names)),
	}
	for j, n := range names {
		out.index[n] = j
		out.cols[j] = make([]any, 0, capacity)
	}
	return out
}
