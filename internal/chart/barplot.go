// Package chart renders a grouped bar chart of an aggregated table with
// gonum/plot.
package chart

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"genrechart/internal/table"
)

// Options controls chart text and size. Zero values get the defaults used by
// NewBarPlot.
type Options struct {
	Title       string
	XLabel      string
	YLabel      string
	LegendTitle string
	Width       vg.Length
	Height      vg.Length
}

// BarPlot builds and saves one grouped bar chart.
type BarPlot struct {
	opts  Options
	plot  *plot.Plot
	pivot Pivot
}

// NewBarPlot returns a BarPlot with defaults applied to opts.
func NewBarPlot(opts Options) *BarPlot {
	if opts.Title == "" {
		opts.Title = "Game Genre Distribution Across Platforms"
	}
	if opts.XLabel == "" {
		opts.XLabel = "Platform"
	}
	if opts.YLabel == "" {
		opts.YLabel = "Count"
	}
	if opts.LegendTitle == "" {
		opts.LegendTitle = "Genre"
	}
	if opts.Width <= 0 {
		opts.Width = 12 * vg.Inch
	}
	if opts.Height <= 0 {
		opts.Height = 6 * vg.Inch
	}
	return &BarPlot{opts: opts}
}

// Create lays out the chart for t, a (primary, secondary, count) table.
func (b *BarPlot) Create(t *table.Table) error {
	pv, err := PivotTable(t)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = b.opts.Title
	p.X.Label.Text = b.opts.XLabel
	p.Y.Label.Text = b.opts.YLabel
	p.Y.Min = 0
	p.Add(plotter.NewGrid())

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.Add(b.opts.LegendTitle)

	colours := Palette(len(pv.Series))
	barW := b.barWidth(len(pv.Index), len(pv.Series))
	center := float64(len(pv.Series)-1) / 2

	for s, name := range pv.Series {
		bars, err := plotter.NewBarChart(plotter.Values(pv.Values[s]), barW)
		if err != nil {
			return fmt.Errorf("chart: series %v: %w", name, err)
		}
		bars.Color = colours[s]
		bars.LineStyle.Width = 0
		bars.Offset = vg.Length(float64(s)-center) * barW
		p.Add(bars)
		p.Legend.Add(table.Key(name), bars)
	}

	labels := make([]string, len(pv.Index))
	for i, v := range pv.Index {
		labels[i] = table.Key(v)
	}
	p.NominalX(labels...)

	b.plot = p
	b.pivot = pv
	return nil
}

// barWidth fits all series of one group into 80% of the group's share of the
// canvas width. The canvas share is approximate since axes take some room.
func (b *BarPlot) barWidth(groups, series int) vg.Length {
	usable := b.opts.Width - 1.5*vg.Inch
	if usable <= 0 {
		usable = b.opts.Width
	}
	w := usable / vg.Length(groups) * 0.8 / vg.Length(series)
	if w < vg.Points(1) {
		w = vg.Points(1)
	}
	return w
}

// Pivot returns the data behind the last Create.
func (b *BarPlot) Pivot() Pivot { return b.pivot }

// Save writes the chart to path. The format follows the extension (png, svg,
// pdf, jpg, eps, tif). Parent directories are created.
func (b *BarPlot) Save(path string) error {
	if b.plot == nil {
		return fmt.Errorf("chart: Save called before Create")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("chart: create dir for %s: %w", path, err)
	}
	if err := b.plot.Save(b.opts.Width, b.opts.Height, path); err != nil {
		return fmt.Errorf("chart: save %s: %w", path, err)
	}
	return nil
}
