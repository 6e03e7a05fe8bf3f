package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"cartpole-dt-sweep/internal/sweep"
)

const (
	plotTitle  = "PPO Performance on CartPole with Varying dt_multip"
	plotXLabel = "Time Step Multiplier (dt_multip)"
	plotYLabel = "Mean Return"
)

// NewPlot draws mean return against multiplier: a line through the points
// plus red markers, on a logarithmic x axis.
func NewPlot(res sweep.Result) (*plot.Plot, error) {
	if err := validate(res); err != nil {
		return nil, err
	}
	pts := make(plotter.XYs, len(res.Multipliers))
	for i := range pts {
		pts[i].X = res.Multipliers[i]
		pts[i].Y = res.MeanReturns[i]
	}

	p := plot.New()
	p.Title.Text = plotTitle
	p.X.Label.Text = plotXLabel
	p.Y.Label.Text = plotYLabel
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("plot line: %w", err)
	}
	points, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("plot points: %w", err)
	}
	points.GlyphStyle.Color = color.RGBA{R: 255, A: 255}
	points.GlyphStyle.Shape = draw.CircleGlyph{}
	points.GlyphStyle.Radius = vg.Points(3)

	p.Add(line, points)
	if p.X.Min == p.X.Max {
		// A log axis cannot be padded around a single value by subtraction.
		p.X.Min, p.X.Max = p.X.Min/10, p.X.Max*10
	}
	p.Legend.Add("Data Points", points)
	p.Legend.Top = true
	return p, nil
}

// WritePlot renders the plot to path; the image format follows the file
// extension.
func WritePlot(path string, res sweep.Result) error {
	p, err := NewPlot(res)
	if err != nil {
		return err
	}
	if err := p.Save(6.4*vg.Inch, 4.8*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
