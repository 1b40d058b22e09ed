package transformer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind buckets stage failures for callers that only need to branch on the
// category (logging, metrics labels, exit codes).
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindSchema       ErrorKind = "schema"
	KindTypeMismatch ErrorKind = "type_mismatch"
	KindRank         ErrorKind = "rank"
	KindUnknown      ErrorKind = "unknown"
)

// SchemaError reports column names that a stage needed but could not use.
type SchemaError struct {
	Op      string
	Columns []string
	// Reason defaults to "column not found".
	Reason string
}

func (e *SchemaError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "column not found"
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, reason, strings.Join(quoteAll(e.Columns), ", "))
}

// TypeMismatchError reports that a stage received something that is not a
// well-formed table.
type TypeMismatchError struct {
	Op     string
	Reason string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: input is not a valid table: %s", e.Op, e.Reason)
}

// RankError reports a value that has no position in its column's allow-list,
// so ranked ordering is undefined for it.
type RankError struct {
	Op     string
	Column string
	Value  any
	Row    int
}

func (e *RankError) Error() string {
	return fmt.Sprintf("%s: value %v (row %d) of column %q is not in its allow-list", e.Op, e.Value, e.Row, e.Column)
}

// KindOf classifies err. A nil error yields KindNone.
func KindOf(err error) ErrorKind {
	var (
		se *SchemaError
		te *TypeMismatchError
		re *RankError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &se):
		return KindSchema
	case errors.As(err, &te):
		return KindTypeMismatch
	case errors.As(err, &re):
		return KindRank
	}
	return KindUnknown
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
