// Package transformer turns raw tables into plot-ready aggregates.
//
// The pipeline is clean → group/count → sort. Each stage is a pure function
// from one table (plus configuration) to a new table or a typed error; stages
// never log. Callers branch on the error with errors.As or KindOf and decide
// how to report it.
package transformer

import "genrechart/internal/table"

// Stage is one step of the transform chain.
type Stage interface {
	Name() string
	Apply(*table.Table) (*table.Table, error)
}

// Chain is an ordered list of stages.
type Chain []Stage

// Apply feeds t through every stage in order and stops at the first error,
// returning it unchanged together with a nil table.
func (c Chain) Apply(t *table.Table) (*table.Table, error) {
	out := t
	for _, s := range c {
		next, err := s.Apply(out)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// Standard returns the clean → group → sort chain for one configuration.
// features and classes are shared by the cleaning and sorting stages.
func Standard(features []string, classes ClassFilter) Chain {
	return Chain{
		Cleaner{Features: features, Classes: classes},
		Aggregator{},
		Sorter{Features: features, Classes: classes},
	}
}
