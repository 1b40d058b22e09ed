// Package config defines the pipeline configuration model for genrechart.
//
// A pipeline file (JSON or YAML, picked by extension) names the source of the
// raw dataset, how to parse it, which features and class allow-lists drive the
// transform stages, and where the chart and table exports are written.
//
// Example (trimmed):
//
//	{
//	  "job":       "games",
//	  "source":    { "kind": "http", "http": { "url": "https://.../games.csv", "cache_dir": "data" } },
//	  "parser":    { "kind": "csv", "options": { "has_header": true } },
//	  "transform": { "features": ["platform", "genre"], "classes": { "platform": ["PS4", "XOne"] } },
//	  "chart":     { "path": "out/genres.png" },
//	  "export":    { "paths": ["out/genres.csv"] }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// Chart defaults.
const (
	DefaultChartTitle   = "Game Genre Distribution Across Platforms"
	DefaultChartXLabel  = "Platform"
	DefaultChartYLabel  = "Count"
	DefaultChartLegend  = "Genre"
	DefaultChartWidth   = 12.0
	DefaultChartHeight  = 6.0
	DefaultHTTPCacheDir = "data"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `json:"job" yaml:"job" validate:"required"`

	Source    Source    `json:"source" yaml:"source"`
	Parser    Parser    `json:"parser" yaml:"parser"`
	Transform Transform `json:"transform" yaml:"transform"`
	Chart     Chart     `json:"chart" yaml:"chart"`
	Export    Export    `json:"export" yaml:"export"`
	Cache     Cache     `json:"cache" yaml:"cache"`
}

// Source identifies where the raw dataset comes from.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string     `json:"kind" yaml:"kind" validate:"required,oneof=file http"`
	File SourceFile `json:"file" yaml:"file"`
	HTTP SourceHTTP `json:"http" yaml:"http"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path" yaml:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL string `json:"url" yaml:"url" validate:"omitempty,url"`

	// Path is where the download is stored. Empty means a name derived from
	// the URL under CacheDir.
	Path     string `json:"path" yaml:"path"`
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	TimeoutSeconds     int  `json:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`
	MaxRetries         int  `json:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`
	InsecureSkipVerify bool `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`

	// OfflineFallback reuses an existing local copy when the download fails.
	OfflineFallback bool `json:"offline_fallback" yaml:"offline_fallback"`
}

// Parser selects how raw bytes become a table.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=csv"`

	// Options is a free-form map interpreted by the parser. For CSV:
	//   has_header (bool), comma (string), trim_space (bool),
	//   expected_fields (int), header_map (object), na_values (array),
	//   infer_types (bool)
	Options Options `json:"options" yaml:"options"`
}

// Transform configures the clean, group and sort stages.
type Transform struct {
	// Features are the retained columns, in order. They are also the sort keys.
	Features []string `json:"features" yaml:"features" validate:"required,min=1,dive,required"`

	// Classes maps a column to its ordered allow-list. Position in the list is
	// the column's sort rank.
	Classes map[string][]string `json:"classes" yaml:"classes" validate:"dive,keys,required,endkeys,min=1"`
}

// Chart configures the grouped bar chart. An empty Path disables rendering.
type Chart struct {
	Path         string  `json:"path" yaml:"path"`
	Title        string  `json:"title" yaml:"title"`
	XLabel       string  `json:"x_label" yaml:"x_label"`
	YLabel       string  `json:"y_label" yaml:"y_label"`
	LegendTitle  string  `json:"legend_title" yaml:"legend_title"`
	WidthInches  float64 `json:"width_inches" yaml:"width_inches" validate:"gte=0"`
	HeightInches float64 `json:"height_inches" yaml:"height_inches" validate:"gte=0"`
}

// Export lists files the final table is written to (.csv or .xlsx).
type Export struct {
	Paths []string `json:"paths" yaml:"paths" validate:"dive,required"`
}

// Cache configures the download manifest. An empty DSN disables it.
type Cache struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

// Load reads a pipeline file, decoding YAML for .yaml/.yml and JSON
// otherwise, and applies defaults. Unknown fields are rejected.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var p Pipeline
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(b, &p)
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		err = dec.Decode(&p)
	}
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	p.ApplyDefaults()
	return p, nil
}

// ApplyDefaults fills zero values that have a sensible default.
func (p *Pipeline) ApplyDefaults() {
	if p.Parser.Kind == "" {
		p.Parser.Kind = "csv"
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	if p.Source.Kind == "http" && p.Source.HTTP.CacheDir == "" {
		p.Source.HTTP.CacheDir = DefaultHTTPCacheDir
	}
	c := &p.Chart
	if c.Title == "" {
		c.Title = DefaultChartTitle
	}
	if c.XLabel == "" {
		c.XLabel = DefaultChartXLabel
	}
	if c.YLabel == "" {
		c.YLabel = DefaultChartYLabel
	}
	if c.LegendTitle == "" {
		c.LegendTitle = DefaultChartLegend
	}
	if c.WidthInches == 0 {
		c.WidthInches = DefaultChartWidth
	}
	if c.HeightInches == 0 {
		c.HeightInches = DefaultChartHeight
	}
}

// Options fetches typed values from a free-form map. Missing keys and values
// of an unexpected type return the provided default.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the int value for key or def. JSON numbers arrive as float64,
// YAML numbers as int.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. Used for single-character settings such as a delimiter.
func (o Options) Rune(key string, def rune) rune {
	if s, ok := o[key].(string); ok && len(s) > 0 {
		return []rune(s)[0]
	}
	return def
}

// StringMap returns the string-valued entries of an object value. Missing
// keys yield an empty map.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if m, ok := o[key].(map[string]any); ok {
		for k, v := range m {
			if s, ok := v.(string); ok {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns the string elements of an array value, or nil when the
// key is missing or not an array.
func (o Options) StringSlice(key string) []string {
	switch vv := o[key].(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	}
	return nil
}

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// UnmarshalYAML decodes like UnmarshalJSON. yaml.v2 produces
// map[interface{}]interface{} for nested objects; those are rewritten to
// map[string]any so the getters behave the same for both formats.
func (o *Options) UnmarshalYAML(unmarshal func(any) error) error {
	var tmp map[string]any
	if err := unmarshal(&tmp); err != nil {
		return err
	}
	out := make(Options, len(tmp))
	for k, v := range tmp {
		out[k] = normalizeYAML(v)
	}
	*o = out
	return nil
}

func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[fmt.Sprint(k)] = normalizeYAML(vv)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	}
	return v
}
