package table

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
)

// rank classes for the natural order: nil < bool < number < string < other.
const (
	classNull = iota
	classBool
	classNumber
	classString
	classOther
)

// IsNull reports whether v counts as a missing value (nil or NaN).
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// Compare returns -1, 0 or +1 following the natural ascending order of
// values. Integers and floats compare numerically with each other; values of
// different kinds order by kind.
func Compare(a, b any) int {
	ca, cb := class(a), class(b)
	if ca != cb {
		return cmp.Compare(ca, cb)
	}
	switch ca {
	case classNull:
		return 0
	case classBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case classNumber:
		ia, aInt := asInt(a)
		ib, bInt := asInt(b)
		switch {
		case aInt && bInt:
			return cmp.Compare(ia, ib)
		case aInt:
			return compareIntFloat(ia, asFloat(b))
		case bInt:
			return -compareIntFloat(ib, asFloat(a))
		}
		return cmp.Compare(asFloat(a), asFloat(b))
	case classString:
		return cmp.Compare(a.(string), b.(string))
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// CompareRows compares two equal-length tuples lexicographically.
func CompareRows(a, b []any) int {
	for i := range a {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

// Key returns the canonical string form of v. Values that compare equal
// share a key: int64(3) and 3.0 both give "3", -0.0 gives "0". nil gives "".
func Key(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return floatKey(x, 64)
	case float32:
		return floatKey(float64(x), 32)
	}
	return fmt.Sprint(v)
}

// floatKey formats integral values inside the int64 range through int64 so
// that they match the key of the equal integer exactly.
func floatKey(f float64, bits int) string {
	if f == 0 {
		return "0"
	}
	if f == math.Trunc(f) && f >= minInt64Float && f < maxInt64Float {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

// Bounds of the int64 range as exact float64 values: [-2^63, 2^63).
const (
	minInt64Float = -(1 << 63)
	maxInt64Float = 1 << 63
)

// compareIntFloat compares i and f exactly, without rounding i to float64.
func compareIntFloat(i int64, f float64) int {
	switch {
	case f >= maxInt64Float:
		return -1
	case f < minInt64Float:
		return 1
	}
	t := math.Trunc(f)
	if c := cmp.Compare(i, int64(t)); c != 0 {
		return c
	}
	switch {
	case f > t:
		return -1
	case f < t:
		return 1
	}
	return 0
}

// IsNumeric reports whether v is an integer or floating point value.
func IsNumeric(v any) bool { return class(v) == classNumber }

// Float returns v as float64 for numeric values.
func Float(v any) (float64, bool) {
	if class(v) != classNumber {
		return 0, false
	}
	return asFloat(v), true
}

func class(v any) int {
	switch x := v.(type) {
	case nil:
		return classNull
	case bool:
		return classBool
	case int, int32, int64:
		return classNumber
	case float32:
		if math.IsNaN(float64(x)) {
			return classNull
		}
		return classNumber
	case float64:
		if math.IsNaN(x) {
			return classNull
		}
		return classNumber
	case string:
		return classString
	}
	return classOther
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return math.NaN()
}
