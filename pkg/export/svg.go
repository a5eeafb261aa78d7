// Package export generates SVG figures from recorded turn data.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// SVG constants for figure generation.
const (
	svgVersion   = "1.1"
	svgNamespace = "http://www.w3.org/2000/svg"
)

// SVGConfig specifies options for SVG plot generation.
type SVGConfig struct {
	// Width is the SVG width in pixels. Default: 800.
	Width int

	// Height is the SVG height in pixels. Default: 400.
	Height int

	// Title is displayed at the top of the figure.
	Title string

	// XAxisLabel labels the x-axis. Default: "Turn".
	XAxisLabel string

	// YAxisLabel labels the y-axis. Default: "Mean block heat".
	YAxisLabel string

	// LineColor is the series stroke color. Default: "#2563eb".
	LineColor string

	// ShowGrid draws horizontal grid lines at y-axis ticks.
	ShowGrid bool
}

// DefaultSVGConfig returns the standard figure settings.
func DefaultSVGConfig() *SVGConfig {
	return &SVGConfig{
		Width:      800,
		Height:     400,
		XAxisLabel: "Turn",
		YAxisLabel: "Mean block heat",
		LineColor:  "#2563eb",
		ShowGrid:   true,
	}
}

// Point is one plotted value.
type Point struct {
	// X is the turn index.
	X int

	// Y is the metric value.
	Y float64
}

// PlotBuilder accumulates points and renders them as an SVG line plot.
type PlotBuilder struct {
	config *SVGConfig
	points []Point
}

// NewPlotBuilder creates a builder. A nil config uses defaults.
func NewPlotBuilder(config *SVGConfig) *PlotBuilder {
	if config == nil {
		config = DefaultSVGConfig()
	}
	if config.Width <= 0 {
		config.Width = 800
	}
	if config.Height <= 0 {
		config.Height = 400
	}
	if config.XAxisLabel == "" {
		config.XAxisLabel = "Turn"
	}
	if config.LineColor == "" {
		config.LineColor = "#2563eb"
	}
	return &PlotBuilder{config: config}
}

// AddPoint appends one value. Points render in insertion order.
func (b *PlotBuilder) AddPoint(x int, y float64) *PlotBuilder {
	b.points = append(b.points, Point{X: x, Y: y})
	return b
}

// Build renders the figure as an SVG document string.
func (b *PlotBuilder) Build() string {
	cfg := b.config
	var sb strings.Builder

	fmt.Fprintf(&sb, `<svg version="%s" xmlns="%s" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		svgVersion, svgNamespace, cfg.Width, cfg.Height, cfg.Width, cfg.Height)
	fmt.Fprintf(&sb, `<!-- generated by rikugan on %s -->`+"\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&sb, `<rect width="%d" height="%d" fill="#ffffff"/>`+"\n", cfg.Width, cfg.Height)

	const padding = 60
	plotWidth := cfg.Width - 2*padding
	plotHeight := cfg.Height - 2*padding

	minX, maxX, minY, maxY := b.bounds()

	if cfg.ShowGrid {
		b.writeGrid(&sb, padding, plotWidth, plotHeight, minY, maxY)
	}
	b.writeAxes(&sb, padding, plotWidth, plotHeight, minX, maxX, minY, maxY)
	b.writeSeries(&sb, padding, plotWidth, plotHeight, minX, maxX, minY, maxY)

	if cfg.Title != "" {
		fmt.Fprintf(&sb, `<text x="%d" y="30" text-anchor="middle" font-family="sans-serif" font-size="16" font-weight="bold">%s</text>`+"\n",
			cfg.Width/2, escapeXML(cfg.Title))
	}
	fmt.Fprintf(&sb, `<text x="%d" y="%d" text-anchor="middle" font-family="sans-serif" font-size="12">%s</text>`+"\n",
		cfg.Width/2, cfg.Height-10, escapeXML(cfg.XAxisLabel))
	if cfg.YAxisLabel != "" {
		fmt.Fprintf(&sb, `<text x="15" y="%d" text-anchor="middle" font-family="sans-serif" font-size="12" transform="rotate(-90 15 %d)">%s</text>`+"\n",
			cfg.Height/2, cfg.Height/2, escapeXML(cfg.YAxisLabel))
	}

	sb.WriteString("</svg>\n")
	return sb.String()
}

// WriteTo writes the rendered figure to w.
func (b *PlotBuilder) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, b.Build())
	return int64(n), err
}

// bounds computes the data extent, padded so flat series stay visible.
func (b *PlotBuilder) bounds() (minX, maxX int, minY, maxY float64) {
	if len(b.points) == 0 {
		return 0, 1, 0, 1
	}
	minX, maxX = b.points[0].X, b.points[0].X
	minY, maxY = b.points[0].Y, b.points[0].Y
	for _, p := range b.points {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	if minX == maxX {
		maxX = minX + 1
	}
	if minY == maxY {
		maxY = minY + 1
	}
	return minX, maxX, minY, maxY
}

func (b *PlotBuilder) writeGrid(sb *strings.Builder, padding, plotWidth, plotHeight int, minY, maxY float64) {
	for _, tick := range floatTicks(minY, maxY, 5) {
		y := float64(padding) + float64(plotHeight) - scale(tick, minY, maxY, 0, float64(plotHeight))
		fmt.Fprintf(sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="#e5e7eb" stroke-width="1"/>`+"\n",
			padding, y, padding+plotWidth, y)
	}
}

func (b *PlotBuilder) writeAxes(sb *strings.Builder, padding, plotWidth, plotHeight, minX, maxX int, minY, maxY float64) {
	// Axis lines.
	fmt.Fprintf(sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#374151" stroke-width="2"/>`+"\n",
		padding, padding+plotHeight, padding+plotWidth, padding+plotHeight)
	fmt.Fprintf(sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#374151" stroke-width="2"/>`+"\n",
		padding, padding, padding, padding+plotHeight)

	for _, tick := range intTicks(minX, maxX, 8) {
		x := float64(padding) + scale(float64(tick), float64(minX), float64(maxX), 0, float64(plotWidth))
		fmt.Fprintf(sb, `<text x="%.1f" y="%d" text-anchor="middle" font-family="sans-serif" font-size="10">%d</text>`+"\n",
			x, padding+plotHeight+15, tick)
	}
	for _, tick := range floatTicks(minY, maxY, 5) {
		y := float64(padding) + float64(plotHeight) - scale(tick, minY, maxY, 0, float64(plotHeight))
		fmt.Fprintf(sb, `<text x="%d" y="%.1f" text-anchor="end" font-family="sans-serif" font-size="10">%.3g</text>`+"\n",
			padding-5, y+3, tick)
	}
}

func (b *PlotBuilder) writeSeries(sb *strings.Builder, padding, plotWidth, plotHeight, minX, maxX int, minY, maxY float64) {
	if len(b.points) == 0 {
		return
	}

	var path strings.Builder
	for i, p := range b.points {
		x := float64(padding) + scale(float64(p.X), float64(minX), float64(maxX), 0, float64(plotWidth))
		y := float64(padding) + float64(plotHeight) - scale(p.Y, minY, maxY, 0, float64(plotHeight))
		if i == 0 {
			fmt.Fprintf(&path, "M %.1f %.1f", x, y)
		} else {
			fmt.Fprintf(&path, " L %.1f %.1f", x, y)
		}
	}
	fmt.Fprintf(sb, `<path d="%s" fill="none" stroke="%s" stroke-width="2"/>`+"\n",
		path.String(), b.config.LineColor)

	for _, p := range b.points {
		x := float64(padding) + scale(float64(p.X), float64(minX), float64(maxX), 0, float64(plotWidth))
		y := float64(padding) + float64(plotHeight) - scale(p.Y, minY, maxY, 0, float64(plotHeight))
		fmt.Fprintf(sb, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>`+"\n", x, y, b.config.LineColor)
	}
}

// scale maps value from [srcMin, srcMax] into [dstMin, dstMax].
func scale(value, srcMin, srcMax, dstMin, dstMax float64) float64 {
	if srcMax == srcMin {
		return dstMin
	}
	return dstMin + (value-srcMin)/(srcMax-srcMin)*(dstMax-dstMin)
}

// intTicks returns at most maxTicks evenly spaced integer ticks.
func intTicks(min, max, maxTicks int) []int {
	span := max - min
	if span <= 0 {
		return []int{min}
	}
	step := (span + maxTicks - 1) / maxTicks
	if step < 1 {
		step = 1
	}
	var ticks []int
	for t := min; t <= max; t += step {
		ticks = append(ticks, t)
	}
	return ticks
}

// floatTicks returns count evenly spaced ticks across [min, max].
func floatTicks(min, max float64, count int) []float64 {
	if count < 2 || max <= min {
		return []float64{min}
	}
	step := (max - min) / float64(count-1)
	ticks := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		ticks = append(ticks, min+float64(i)*step)
	}
	return ticks
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
