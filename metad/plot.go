package metad

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteROC renders the fit's type-2 ROC as a standalone HTML page:
// observed (FAR, HR) points per response class as scatter marks, the
// model-implied curves as overlaid lines through (0,0) and (1,1).
func WriteROC(fit *FitResult, w io.Writer) error {
	return rocChart(fit).Render(w)
}

func rocChart(fit *FitResult) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Type-2 ROC",
			Subtitle: fit.Model,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "value",
			Name: "type-2 FAR",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:  "value",
			Name:  "type-2 HR",
			Scale: opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	scatter.AddSeries("observed rS1", scatterPoints(fit.ObsFAR2RS1, fit.ObsHR2RS1))
	scatter.AddSeries("observed rS2", scatterPoints(fit.ObsFAR2RS2, fit.ObsHR2RS2))

	est := charts.NewLine()
	est.AddSeries("estimated rS1", rocCurve(fit.EstFAR2RS1, fit.EstHR2RS1)).
		SetSeriesOptions(charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))
	est.AddSeries("estimated rS2", rocCurve(fit.EstFAR2RS2, fit.EstHR2RS2))
	scatter.Overlap(est)
	return scatter
}

func scatterPoints(far, hr []float64) []opts.ScatterData {
	items := make([]opts.ScatterData, 0, len(far))
	for i := range far {
		items = append(items, opts.ScatterData{Value: []interface{}{far[i], hr[i]}})
	}
	return items
}

// rocCurve pads the model points with the trivial ROC endpoints and
// orders them by false-alarm rate.
func rocCurve(far, hr []float64) []opts.LineData {
	items := make([]opts.LineData, 0, len(far)+2)
	items = append(items, opts.LineData{Value: []interface{}{0.0, 0.0}})
	for i := len(far) - 1; i >= 0; i-- {
		items = append(items, opts.LineData{Value: []interface{}{far[i], hr[i]}})
	}
	items = append(items, opts.LineData{Value: []interface{}{1.0, 1.0}})
	return items
}
