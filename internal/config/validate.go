package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted JSON path into the
// config, e.g. "transform.classes.platform".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names so paths match the pipeline file.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var chartExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".svg": {}, ".pdf": {},
	".eps": {}, ".tif": {}, ".tiff": {},
}

// ValidatePipeline lints p. Struct-tag rules run first, followed by the
// cross-field checks. It does not mutate p.
func ValidatePipeline(p Pipeline) []Issue {
	issues := validateStruct(p)
	issues = append(issues, validateSource(p.Source, p.Cache)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateTransform(p.Transform, p.Chart)...)
	issues = append(issues, validateOutputs(p.Chart, p.Export)...)
	return issues
}

func validateStruct(p Pipeline) []Issue {
	err := structValidator.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
	}
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     strings.TrimPrefix(fe.Namespace(), "Pipeline."),
			Message:  fieldMessage(fe),
		})
	}
	return issues
}

func fieldMessage(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s element(s)", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

func validateSource(s Source, c Cache) []Issue {
	var issues []Issue
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{SeverityError, "source.file.path", "file source requires a non-empty path"})
		}
	case "http":
		if strings.TrimSpace(s.HTTP.URL) == "" {
			issues = append(issues, Issue{SeverityError, "source.http.url",
				"http source requires a url (or GENRECHART_DATA_URL)"})
		}
		if s.HTTP.InsecureSkipVerify {
			issues = append(issues, Issue{SeverityWarning, "source.http.insecure_skip_verify",
				"TLS certificate verification is disabled"})
		}
		if strings.TrimSpace(c.DSN) == "" {
			issues = append(issues, Issue{SeverityWarning, "cache.dsn",
				"no cache manifest; every run downloads the full file"})
		}
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	if p.Kind != "csv" {
		return nil
	}
	if s := p.Options.String("comma", ""); s != "" && utf8.RuneCountInString(s) != 1 {
		issues = append(issues, Issue{SeverityError, "parser.options.comma",
			fmt.Sprintf("comma must be a single character, got %q", s)})
	}
	if n := p.Options.Int("expected_fields", 0); n < 0 {
		issues = append(issues, Issue{SeverityError, "parser.options.expected_fields",
			"expected_fields must not be negative"})
	}
	return issues
}

func validateTransform(t Transform, c Chart) []Issue {
	var issues []Issue

	seen := make(map[string]struct{}, len(t.Features))
	for i, f := range t.Features {
		if _, dup := seen[f]; dup && f != "" {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("transform.features[%d]", i),
				fmt.Sprintf("duplicate feature %q", f)})
		}
		seen[f] = struct{}{}
	}

	cols := make([]string, 0, len(t.Classes))
	for col := range t.Classes {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if _, ok := seen[col]; !ok {
			issues = append(issues, Issue{SeverityError, "transform.classes." + col,
				fmt.Sprintf("class filter column %q is not in features", col)})
		}
	}

	if c.Path != "" && len(t.Features) != 2 {
		issues = append(issues, Issue{SeverityError, "transform.features",
			fmt.Sprintf("the bar chart needs exactly 2 features (x axis, series), got %d", len(t.Features))})
	}
	return issues
}

func validateOutputs(c Chart, e Export) []Issue {
	var issues []Issue
	if c.Path == "" && len(e.Paths) == 0 {
		issues = append(issues, Issue{SeverityWarning, "chart.path",
			"no chart path and no export paths; the run produces no output"})
	}
	if c.Path != "" {
		if _, ok := chartExts[strings.ToLower(filepath.Ext(c.Path))]; !ok {
			issues = append(issues, Issue{SeverityError, "chart.path",
				fmt.Sprintf("unsupported chart format %q", filepath.Ext(c.Path))})
		}
	}
	for i, p := range e.Paths {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".csv", ".xlsx":
		default:
			if p != "" {
				issues = append(issues, Issue{SeverityError, fmt.Sprintf("export.paths[%d]", i),
					fmt.Sprintf("export path %q must end in .csv or .xlsx", p)})
			}
		}
	}
	return issues
}
