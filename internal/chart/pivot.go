package chart

import (
	"errors"
	"fmt"
	"slices"

	"genrechart/internal/table"
)

var (
	// ErrEmptyTable is returned for a table without rows.
	ErrEmptyTable = errors.New("chart: the provided table is empty and cannot be used to create a plot")
	// ErrShape is returned when the table is not (primary, secondary, numeric value).
	ErrShape = errors.New("chart: table must have exactly three columns with a numeric third column")
	// ErrDuplicateEntry is returned when a (primary, secondary) pair repeats.
	ErrDuplicateEntry = errors.New("chart: duplicate entry for index and series")
)

// Pivot is a table reshaped for a grouped bar chart: one group per Index
// value, one bar per Series value. Values[s][i] is the bar height for series
// s in group i; absent combinations are 0.
type Pivot struct {
	IndexName  string
	SeriesName string
	Index      []any
	Series     []any
	Values     [][]float64
}

// PivotTable reshapes a three-column table. The index keeps first-appearance
// order, so a table sorted by rank stays in rank order on the x axis; series
// are ordered naturally.
func PivotTable(t *table.Table) (Pivot, error) {
	if t == nil || t.Len() == 0 {
		return Pivot{}, ErrEmptyTable
	}
	if t.Width() != 3 {
		return Pivot{}, fmt.Errorf("%w: got %d columns", ErrShape, t.Width())
	}

	cols := t.Columns()
	p := Pivot{IndexName: cols[0], SeriesName: cols[1]}

	idxPos := map[string]int{}
	serSeen := map[string]any{}
	for i := 0; i < t.Len(); i++ {
		iv, sv, val := t.Cell(i, 0), t.Cell(i, 1), t.Cell(i, 2)
		if _, ok := table.Float(val); !ok {
			return Pivot{}, fmt.Errorf("%w: row %d value %v", ErrShape, i, val)
		}
		k := table.Key(iv)
		if _, ok := idxPos[k]; !ok {
			idxPos[k] = len(p.Index)
			p.Index = append(p.Index, iv)
		}
		serSeen[table.Key(sv)] = sv
	}

	for _, v := range serSeen {
		p.Series = append(p.Series, v)
	}
	slices.SortFunc(p.Series, table.Compare)
	serPos := make(map[string]int, len(p.Series))
	for j, v := range p.Series {
		serPos[table.Key(v)] = j
	}

	p.Values = make([][]float64, len(p.Series))
	filled := make([][]bool, len(p.Series))
	for j := range p.Values {
		p.Values[j] = make([]float64, len(p.Index))
		filled[j] = make([]bool, len(p.Index))
	}
	for i := 0; i < t.Len(); i++ {
		x := idxPos[table.Key(t.Cell(i, 0))]
		s := serPos[table.Key(t.Cell(i, 1))]
		if filled[s][x] {
			return Pivot{}, fmt.Errorf("%w: (%v, %v)", ErrDuplicateEntry, t.Cell(i, 0), t.Cell(i, 1))
		}
		filled[s][x] = true
		p.Values[s][x], _ = table.Float(t.Cell(i, 2))
	}
	return p, nil
}
