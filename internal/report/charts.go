package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/gaze.report/internal/gaze"
)

// RenderDwellChart writes an HTML bar chart of samples and mean dwell per AOI.
func RenderDwellChart(w io.Writer, s Summary) error {
	x := make([]string, 0, len(s.AOIs))
	samples := make([]opts.BarData, 0, len(s.AOIs))
	dwell := make([]opts.BarData, 0, len(s.AOIs))
	for _, a := range s.AOIs {
		x = append(x, a.AOI)
		samples = append(samples, opts.BarData{Value: a.Samples})
		dwell = append(dwell, opts.BarData{Value: math.Round(a.MeanDwellMs)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Gaze AOI dwell", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "AOI attention",
			Subtitle: fmt.Sprintf("session=%s samples=%d duration=%dms", s.SessionID, s.Samples, s.DurationMs),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("samples", samples, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("mean dwell (ms)", dwell)

	return bar.Render(w)
}

// RenderScatterPNG plots every projected gaze point of records on a
// screen-sized canvas. Y grows downward as on screen.
func RenderScatterPNG(w io.Writer, records []gaze.Record, screenWidth, screenHeight int) error {
	pts := make(plotter.XYs, 0, len(records))
	for _, r := range records {
		if r.Point == nil {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(r.Point.X), Y: float64(screenHeight - r.Point.Y)})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Gaze points (%d)", len(pts))
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "screen height - y (px)"
	p.X.Min, p.X.Max = 0, float64(screenWidth)
	p.Y.Min, p.Y.Max = 0, float64(screenHeight)

	if len(pts) > 0 {
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("build scatter: %w", err)
		}
		sc.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 160}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
	}

	aspect := float64(screenHeight) / float64(screenWidth)
	width := 8 * vg.Inch
	wt, err := p.WriterTo(width, width*vg.Length(aspect), "png")
	if err != nil {
		return fmt.Errorf("render scatter: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
