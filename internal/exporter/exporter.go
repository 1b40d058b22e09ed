// Package exporter writes a table to disk as CSV or as an Excel workbook.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"genrechart/internal/table"
)

// DefaultSheet names the worksheet when no sheet name is given.
const DefaultSheet = "data"

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatOf returns the format for path's extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("exporter: unsupported extension %q (want .csv or .xlsx)", filepath.Ext(path))
}

// Write saves t to path in the format implied by its extension. sheet names
// the worksheet for .xlsx and is ignored for .csv. The file is written to a
// temporary sibling and renamed into place, so a failed export never leaves
// a truncated file behind.
func Write(path string, t *table.Table, sheet string) error {
	if t == nil {
		return fmt.Errorf("exporter: nil table")
	}
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	return writeAtomic(path, func(w io.Writer) error {
		switch format {
		case FormatXLSX:
			return writeXLSX(w, t, sheet)
		default:
			return writeCSV(w, t)
		}
	})
}

func writeCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	rec := make([]string, t.Width())
	for i := 0; i < t.Len(); i++ {
		for j := range rec {
			rec[j] = table.Key(t.Cell(i, j))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, t *table.Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet = SheetName(sheet)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, t.Width())
	for j, name := range t.Columns() {
		header[j] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := 0; i < t.Len(); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := t.Row(i)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if t.Len() > 0 {
		if err := f.AutoFilter(sheet, autoFilterRange(t), nil); err != nil {
			return fmt.Errorf("auto filter: %w", err)
		}
	}
	return f.Write(w)
}

func autoFilterRange(t *table.Table) string {
	last, _ := excelize.CoordinatesToCellName(t.Width(), t.Len()+1)
	return "A1:" + last
}

// SheetName makes name usable as a worksheet name: forbidden characters
// become "_", the result is cut to 31 runes and an empty name becomes
// DefaultSheet.
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	if name == "" {
		return DefaultSheet
	}
	return name
}

func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("exporter: create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("exporter: temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("exporter: write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("exporter: close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("exporter: rename into %s: %w", path, err)
	}
	return nil
}
