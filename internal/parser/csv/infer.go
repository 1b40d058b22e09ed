package csv

import (
	"strconv"
	"strings"
)

// Kind is the inferred type of a column.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindReal
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindBoolean:
		return "boolean"
	}
	return "text"
}

// inferColumn picks the narrowest kind that every present cell of column j
// satisfies. Integer beats real; a column with no present cells is text.
func inferColumn(raw [][]*string, j int) Kind {
	var vals []string
	for _, cells := range raw {
		if c := cells[j]; c != nil {
			vals = append(vals, *c)
		}
	}
	return inferKind(vals)
}

func inferKind(vals []string) Kind {
	if len(vals) == 0 {
		return KindText
	}
	switch {
	case allMatch(vals, isInt):
		return KindInteger
	case allMatch(vals, isNumber):
		return KindReal
	case allMatch(vals, isBool):
		return KindBoolean
	}
	return KindText
}

// convert parses s as k. Inference guarantees the parse succeeds; on the
// off chance it does not, the text is kept.
func convert(s string, k Kind) any {
	t := strings.TrimSpace(s)
	switch k {
	case KindInteger:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	case KindReal:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	case KindBoolean:
		if b, err := strconv.ParseBool(strings.ToLower(t)); err == nil {
			return b
		}
	}
	return s
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

// isInt requires a signed base-10 integer that fits in int64.
func isInt(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil
}

// isNumber accepts decimal or scientific notation, integers included.
func isNumber(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// isBool accepts only the literal words; 1/0 stay integers.
func isBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "false":
		return true
	}
	return false
}
