package csv

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	return headers
}

// normalizeHeaders applies headerMap (by trimmed source name) and otherwise
// NormalizeHeader. Blank results fall back to col_N.
func normalizeHeaders(h []string, headerMap map[string]string) []string {
	h = StripHeaderBOM(h)
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if m, ok := headerMap[c]; ok && m != "" {
			res[i] = m
			continue
		}
		res[i] = NormalizeHeader(c)
		if res[i] == "" {
			res[i] = "col_" + strconv.Itoa(i)
		}
	}
	return res
}

// NormalizeHeader converts arbitrary header text into a lowercase ASCII
// identifier: accents are stripped (NFD, drop Mn, NFC), letters and digits
// are kept, and runs of space, dash, dot or underscore become one "_".
// Other characters are dropped.
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
