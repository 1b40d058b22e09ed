package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"unicode/utf8"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

const pipelineJSON = `{
  "job": "games",
  "source": { "kind": "http", "http": { "url": "https://example.com/games.csv", "max_retries": 3, "offline_fallback": true } },
  "parser": {
    "kind": "csv",
    "options": { "has_header": true, "comma": ",", "expected_fields": 11, "header_map": { "Year_of_Release": "year" } }
  },
  "transform": {
    "features": ["platform", "genre"],
    "classes": { "platform": ["PS4", "XOne", "PC", "WiiU"] }
  },
  "chart": { "path": "out/genres.png", "title": "Genres" },
  "export": { "paths": ["out/genres.csv", "out/genres.xlsx"] },
  "cache": { "dsn": "data/manifest.db" }
}`

const pipelineYAML = `
job: games
source:
  kind: http
  http:
    url: https://example.com/games.csv
    max_retries: 3
    offline_fallback: true
parser:
  kind: csv
  options:
    has_header: true
    comma: ","
    expected_fields: 11
    header_map:
      Year_of_Release: year
transform:
  features: [platform, genre]
  classes:
    platform: [PS4, XOne, PC, WiiU]
chart:
  path: out/genres.png
  title: Genres
export:
  paths: [out/genres.csv, out/genres.xlsx]
cache:
  dsn: data/manifest.db
`

func TestLoad_JSONAndYAMLAgree(t *testing.T) {
	t.Parallel()

	fromJSON, err := Load(writeFile(t, "games.json", pipelineJSON))
	if err != nil {
		t.Fatalf("Load(json): %v", err)
	}
	fromYAML, err := Load(writeFile(t, "games.yaml", pipelineYAML))
	if err != nil {
		t.Fatalf("Load(yaml): %v", err)
	}

	for name, p := range map[string]Pipeline{"json": fromJSON, "yaml": fromYAML} {
		if p.Job != "games" || p.Source.Kind != "http" || p.Source.HTTP.MaxRetries != 3 || !p.Source.HTTP.OfflineFallback {
			t.Fatalf("%s: source decoded = %#v", name, p.Source)
		}
		if !reflect.DeepEqual(p.Transform.Features, []string{"platform", "genre"}) {
			t.Fatalf("%s: features = %#v", name, p.Transform.Features)
		}
		if got := p.Transform.Classes["platform"]; !reflect.DeepEqual(got, []string{"PS4", "XOne", "PC", "WiiU"}) {
			t.Fatalf("%s: classes = %#v", name, got)
		}
		if !p.Parser.Options.Bool("has_header", false) {
			t.Fatalf("%s: has_header not decoded", name)
		}
		if got := p.Parser.Options.Int("expected_fields", 0); got != 11 {
			t.Fatalf("%s: expected_fields = %d, want 11", name, got)
		}
		if hm := p.Parser.Options.StringMap("header_map"); hm["Year_of_Release"] != "year" {
			t.Fatalf("%s: header_map = %#v", name, hm)
		}
		if len(p.Export.Paths) != 2 || p.Cache.DSN != "data/manifest.db" {
			t.Fatalf("%s: export/cache = %#v %#v", name, p.Export, p.Cache)
		}
		// Defaults fill what the file leaves out.
		if p.Chart.Title != "Genres" || p.Chart.XLabel != DefaultChartXLabel || p.Chart.WidthInches != DefaultChartWidth {
			t.Fatalf("%s: chart = %#v", name, p.Chart)
		}
		if p.Source.HTTP.CacheDir != DefaultHTTPCacheDir {
			t.Fatalf("%s: cache_dir = %q", name, p.Source.HTTP.CacheDir)
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "bad.json", `{"job": "x", "unknown_field": 1}`)); err == nil {
		t.Fatalf("expected error for unknown JSON field")
	}
	if _, err := Load(writeFile(t, "bad.yml", "job: x\nnope: 1\n")); err == nil {
		t.Fatalf("expected error for unknown YAML field")
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var p Pipeline
	p.ApplyDefaults()
	if p.Parser.Kind != "csv" || p.Parser.Options == nil {
		t.Fatalf("parser defaults = %#v", p.Parser)
	}
	if p.Chart.Title != DefaultChartTitle || p.Chart.YLabel != DefaultChartYLabel || p.Chart.LegendTitle != DefaultChartLegend || p.Chart.HeightInches != DefaultChartHeight {
		t.Fatalf("chart defaults = %#v", p.Chart)
	}
	// cache_dir only matters for http sources.
	if p.Source.HTTP.CacheDir != "" {
		t.Fatalf("cache_dir set for non-http source: %q", p.Source.HTTP.CacheDir)
	}
}

func TestOptions_Getters(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":  "hello",
		"b":  true,
		"f":  float64(42),
		"i":  7,
		"r":  ";",
		"r2": "ž",
		"m":  map[string]any{"A": "a", "X": 1},
		"l":  []any{"NA", 3, "tbd"},
		"ls": []string{"x"},
	}

	if o.String("s", "def") != "hello" || o.String("missing", "def") != "def" || o.String("b", "def") != "def" {
		t.Fatalf("String getter misbehaves")
	}
	if !o.Bool("b", false) || !o.Bool("missing", true) {
		t.Fatalf("Bool getter misbehaves")
	}
	if o.Int("f", 0) != 42 || o.Int("i", 0) != 7 || o.Int("s", 5) != 5 {
		t.Fatalf("Int getter misbehaves")
	}
	if o.Rune("r", ',') != ';' || o.Rune("missing", 'X') != 'X' {
		t.Fatalf("Rune getter misbehaves")
	}
	if r := o.Rune("r2", 'x'); !utf8.ValidRune(r) || string(r) != "ž" {
		t.Fatalf("Rune(r2) = %#U, want ž", r)
	}
	if got := o.StringMap("m"); !reflect.DeepEqual(got, map[string]string{"A": "a"}) {
		t.Fatalf("StringMap = %#v", got)
	}
	if got := o.StringMap("missing"); got == nil || len(got) != 0 {
		t.Fatalf("StringMap(missing) = %#v, want empty map", got)
	}
	if got := o.StringSlice("l"); !reflect.DeepEqual(got, []string{"NA", "tbd"}) {
		t.Fatalf("StringSlice = %#v", got)
	}
	if got := o.StringSlice("ls"); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("StringSlice([]string) = %#v", got)
	}
	if o.StringSlice("missing") != nil {
		t.Fatalf("StringSlice(missing) should be nil")
	}
}

func TestOptions_NullDecodesEmpty(t *testing.T) {
	t.Parallel()

	p, err := Load(writeFile(t, "p.json", `{"job":"x","parser":{"kind":"csv","options":null}}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Parser.Options == nil || len(p.Parser.Options) != 0 {
		t.Fatalf("options = %#v, want empty non-nil", p.Parser.Options)
	}
}

func TestShippedPipelines(t *testing.T) {
	t.Parallel()

	paths, err := filepath.Glob(filepath.Join("..", "..", "configs", "pipelines", "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatalf("no pipeline files found")
	}
	for _, path := range paths {
		p, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", path, err)
		}
		for _, iss := range ValidatePipeline(p) {
			if iss.Severity == SeverityError {
				t.Errorf("%s: %v", path, iss)
			}
		}
	}
}
