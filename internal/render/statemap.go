package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"fars-analytics/internal/models"
)

// minimum padding around the accident extent, in degrees
const minMarginDegrees = 0.25

var (
	accidentColor = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	frameColor    = color.RGBA{R: 90, G: 90, B: 90, A: 255}
)

// PlotRenderer draws state maps with gonum/plot
type PlotRenderer struct {
	Width  vg.Length
	Height vg.Length
	// Format is any gonum/plot writer format: png, svg, pdf, ...
	Format string
}

// NewPlotRenderer creates a renderer for images of widthCm x heightCm
func NewPlotRenderer(widthCm, heightCm float64, format string) *PlotRenderer {
	return &PlotRenderer{
		Width:  vg.Length(widthCm) * vg.Centimeter,
		Height: vg.Length(heightCm) * vg.Centimeter,
		Format: strings.ToLower(format),
	}
}

// Render draws the base map of the accident region and one point per accident
func (r *PlotRenderer) Render(w io.Writer, m *models.StateMap) error {
	if m == nil || len(m.Points) == 0 {
		return fmt.Errorf("state %d: no points to render", stateOf(m))
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("FARS accidents, state %d, %d", m.State, int(m.Year))
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	xMin, xMax := padRange(m.Longitude)
	yMin, yMax := padRange(m.Latitude)
	p.X.Min, p.X.Max = xMin, xMax
	p.Y.Min, p.Y.Max = yMin, yMax

	p.Add(plotter.NewGrid())

	frame, err := regionFrame(m.Longitude, m.Latitude)
	if err != nil {
		return err
	}
	p.Add(frame)

	xys := make(plotter.XYs, len(m.Points))
	for i, pt := range m.Points {
		xys[i].X = *pt.Longitude
		xys[i].Y = *pt.Latitude
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	scatter.GlyphStyle.Color = accidentColor
	p.Add(scatter)

	writer, err := p.WriterTo(r.Width, r.Height, r.Format)
	if err != nil {
		return fmt.Errorf("unsupported map format %q: %w", r.Format, err)
	}
	if _, err := writer.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write map: %w", err)
	}
	return nil
}

// regionFrame outlines the extent of the accidents
func regionFrame(lon, lat models.Range) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{
		{X: lon.Min, Y: lat.Min},
		{X: lon.Max, Y: lat.Min},
		{X: lon.Max, Y: lat.Max},
		{X: lon.Min, Y: lat.Max},
		{X: lon.Min, Y: lat.Min},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build region frame: %w", err)
	}
	line.LineStyle.Color = frameColor
	line.LineStyle.Width = vg.Points(0.75)
	line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	return line, nil
}

// padRange widens r by 5% on each side, never less than minMarginDegrees
func padRange(r models.Range) (float64, float64) {
	margin := math.Max((r.Max-r.Min)*0.05, minMarginDegrees)
	return r.Min - margin, r.Max + margin
}

func stateOf(m *models.StateMap) int {
	if m == nil {
		return 0
	}
	return m.State
}
