// Package csv parses delimited text into a table.Table. Header names are
// normalised, NA tokens become missing values, and each column is typed by
// inspecting all of its non-missing cells.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"genrechart/internal/table"
)

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// HasHeader indicates whether the first row contains column headers.
	HasHeader bool

	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing ASCII spaces from each field value.
	TrimSpace bool

	// ExpectedFields, when > 0, enforces a fixed field count per record. Rows
	// with a different width are skipped (soft-fail) and counted.
	ExpectedFields int

	// HeaderMap maps source header names to canonical keys. Mapped names are
	// used verbatim; unmapped names go through NormalizeHeader.
	HeaderMap map[string]string

	// NAValues lists the cell texts read as missing. Nil means DefaultNAValues.
	NAValues []string

	// KeepTypes disables type inference; every present cell stays a string.
	KeepTypes bool

	// Logger receives one line per skipped row (up to a limit). Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// DefaultNAValues mirrors the tokens common dataframe tooling reads as NA.
var DefaultNAValues = []string{"", "NA", "N/A", "n/a", "NaN", "nan", "-NaN", "null", "NULL", "None", "#N/A"}

// ErrNoHeader is returned when a header is expected but the input is empty.
var ErrNoHeader = errors.New("csv: missing header row")

// maxSkipLogs bounds per-row skip logging on badly broken inputs.
const maxSkipLogs = 400

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct {
	opt Options
	na  map[string]struct{}
}

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser {
	if opt.NAValues == nil {
		opt.NAValues = DefaultNAValues
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	na := make(map[string]struct{}, len(opt.NAValues))
	for _, v := range opt.NAValues {
		na[v] = struct{}{}
	}
	return &Parser{opt: opt, na: na}
}

// Parse consumes CSV records from r and returns them as a table along with
// the number of rows that were skipped due to parse errors or field-count
// mismatches.
func (p *Parser) Parse(r io.Reader) (*table.Table, int, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	// Width is enforced below so that bad rows are skipped, not fatal.
	cr.FieldsPerRecord = -1

	var headers []string
	if p.opt.HasHeader {
		h, err := cr.Read()
		if err == io.EOF {
			return nil, 0, ErrNoHeader
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv header: %w", err)
		}
		headers = normalizeHeaders(h, p.opt.HeaderMap)
	} else if p.opt.ExpectedFields > 0 {
		headers = make([]string, p.opt.ExpectedFields)
		for i := range headers {
			headers[i] = fmt.Sprintf("col_%d", i)
		}
	}

	width := len(headers)
	if p.opt.ExpectedFields > 0 {
		width = p.opt.ExpectedFields
	}

	var (
		raw     [][]*string
		skipped int
	)
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.skip(&skipped, "Skipping row", slog.Int("line", line), slog.Any("error", err))
			continue
		}
		if width == 0 {
			// Headerless input with unknown width: the first row decides.
			width = len(row)
			for i := range row {
				headers = append(headers, fmt.Sprintf("col_%d", i))
			}
		}
		if len(row) != width {
			p.skip(&skipped, "Skipping row: incorrect number of fields",
				slog.Int("line", line), slog.Int("expected", width), slog.Int("got", len(row)))
			continue
		}

		cells := make([]*string, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			if _, isNA := p.na[val]; isNA {
				continue
			}
			v := val
			cells[i] = &v
		}
		raw = append(raw, cells)
	}

	if len(headers) != width {
		return nil, skipped, fmt.Errorf("csv: header has %d fields, expected %d", len(headers), width)
	}
	t, err := p.build(headers, raw)
	if err != nil {
		return nil, skipped, err
	}
	return t, skipped, nil
}

func (p *Parser) skip(n *int, msg string, attrs ...any) {
	if *n < maxSkipLogs {
		p.opt.Logger.Warn(msg, attrs...)
	}
	*n++
}

// build converts raw cells into typed columns.
func (p *Parser) build(headers []string, raw [][]*string) (*table.Table, error) {
	t, err := table.New(headers...)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}

	kinds := make([]Kind, len(headers))
	for j := range headers {
		kinds[j] = KindText
		if !p.opt.KeepTypes {
			kinds[j] = inferColumn(raw, j)
		}
	}

	for _, cells := range raw {
		row := make([]any, len(cells))
		for j, c := range cells {
			if c == nil {
				continue
			}
			row[j] = convert(*c, kinds[j])
		}
		if err := t.AppendRow(row...); err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
	}
	return t, nil
}
