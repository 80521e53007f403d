package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/eps.report/internal/eps"
	"github.com/banshee-data/eps.report/internal/evaluator"
	"github.com/banshee-data/eps.report/internal/httputil"
)

const (
	intervalAxis = "Interval (samples)"
	ratioAxis    = "Torque / angle"
)

// latestOrError writes the error response and returns false when there is
// no evaluation to chart.
func (s *Server) latestOrError(w http.ResponseWriter) (evaluator.Result, bool) {
	res, err := s.eval.Latest()
	if errors.Is(err, evaluator.ErrNoResult) {
		httputil.NotFound(w, err.Error())
		return res, false
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return res, false
	}
	return res, true
}

// linearityChart renders one echarts scatter per speed band with the
// fitted line drawn as a mark line.
func (s *Server) linearityChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	res, ok := s.latestOrError(w)
	if !ok {
		return
	}

	page := components.NewPage()
	page.PageTitle = "EPS linearity"
	for _, br := range res.Bands {
		page.AddCharts(bandScatter(br, res.Samples))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func bandScatter(br evaluator.BandResult, samples int) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(br.Points))
	minX, maxX := 0.0, 0.0
	for i, p := range br.Points {
		x := float64(p.Interval)
		if i == 0 || x < minX {
			minX = x
		}
		if i == 0 || x > maxX {
			maxX = x
		}
		data = append(data, opts.ScatterData{Value: []interface{}{x, p.Ratio}})
	}

	subtitle := fmt.Sprintf("points=%d buffered=%d", len(br.Points), samples)
	if br.Regression != nil {
		subtitle += fmt.Sprintf(" slope=%.4f intercept=%.4f", br.Regression.Slope, br.Regression.Intercept)
	} else if br.Error != "" {
		subtitle += " " + br.Error
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: br.Label, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: intervalAxis, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: ratioAxis, NameLocation: "middle", NameGap: 45}),
	)

	seriesOpts := []charts.SeriesOpts{charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8})}
	if br.Regression != nil && len(br.Points) > 0 {
		seriesOpts = append(seriesOpts, charts.WithMarkLineNameCoordItemOpts(opts.MarkLineNameCoordItem{
			Name:        "fit",
			Coordinate0: []interface{}{minX, br.Regression.Predict(minX)},
			Coordinate1: []interface{}{maxX, br.Regression.Predict(maxX)},
		}))
	}
	scatter.AddSeries("linearity", data, seriesOpts...)
	return scatter
}

// linearityPNG renders a single band with gonum/plot for reports.
func (s *Server) linearityPNG(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	band, err := httputil.QueryInt(r, "band", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if band < 0 || band >= eps.NumBands {
		httputil.BadRequest(w, fmt.Sprintf("band must be between 0 and %d", eps.NumBands-1))
		return
	}
	res, ok := s.latestOrError(w)
	if !ok {
		return
	}
	br := res.Bands[band]
	if len(br.Points) == 0 {
		httputil.NotFound(w, fmt.Sprintf("no linearity points for %s", br.Label))
		return
	}

	p, err := bandPlot(br)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = wt.WriteTo(w)
}

func bandPlot(br evaluator.BandResult) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("EPS linearity %s", br.Label)
	p.X.Label.Text = intervalAxis
	p.Y.Label.Text = ratioAxis
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(br.Points))
	for i, lp := range br.Points {
		pts[i].X = float64(lp.Interval)
		pts[i].Y = lp.Ratio
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build scatter: %w", err)
	}
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	sc.GlyphStyle.Radius = vg.Points(3)
	p.Add(sc)
	p.Legend.Add("points", sc)

	if br.Regression != nil {
		fit := plotter.NewFunction(br.Regression.Predict)
		fit.Width = vg.Points(1)
		p.Add(fit)
		p.Legend.Add(fmt.Sprintf("fit (slope %.4f)", br.Regression.Slope), fit)
	}
	return p, nil
}
