// Package render draws beats and playback snapshots as go-echarts charts.
package render

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/ftl/ecgscope/fiducial"
	"github.com/ftl/ecgscope/playback"
)

const (
	signalColor = "#38BDF8"
	labelColor  = "#94A3B8"

	bandPaddingShare = 0.15
	bandPadding      = 0.02
)

type marker struct {
	name   string
	symbol string
	size   int
	color  string
}

var markers = map[fiducial.Kind]marker{
	fiducial.P: {"P wave", "triangle", 12, "#34D399"},
	fiducial.Q: {"Q point", "diamond", 10, "#22D3EE"},
	fiducial.R: {"R peak", "pin", 14, "#FB7185"},
	fiducial.S: {"S point", "diamond", 10, "#22D3EE"},
	fiducial.T: {"T wave", "triangle", 12, "#FBBF24"},
}

type band struct {
	name  string
	color string
	get   func(fiducial.Result) *fiducial.Interval
}

var bands = []band{
	{"PR Interval", "rgba(39,174,96,0.12)", func(r fiducial.Result) *fiducial.Interval { return r.PRInterval }},
	{"QT Interval", "rgba(231,76,60,0.08)", func(r fiducial.Result) *fiducial.Interval { return r.QTInterval }},
	{"ST Segment", "rgba(243,156,18,0.15)", func(r fiducial.Result) *fiducial.Interval { return r.STSegment }},
}

// Chart is a go-echarts chart that can be written as HTML or as JSON options.
type Chart interface {
	Render(w io.Writer) error
	Validate()
	JSON() map[string]any
}

// Band is the shaded area of an interval in a beat chart.
type Band struct {
	Name  string  `json:"name"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	YMin  float64 `json:"y_min"`
	YMax  float64 `json:"y_max"`
	Color string  `json:"color"`
}

// Bands returns the shaded areas of the intervals of the given result. Each band covers the
// amplitude range of the beat within the interval, padded by 15% of that range plus 0.02.
func Bands(beat []float64, result fiducial.Result) []Band {
	areas := make([]Band, 0, len(bands))
	for _, b := range bands {
		interval := b.get(result)
		if interval == nil {
			continue
		}
		var yMin, yMax float64
		if interval.Start >= 0 && interval.End >= interval.Start && interval.End < len(beat) {
			yMin, yMax = beat[interval.Start], beat[interval.Start]
			for _, y := range beat[interval.Start : interval.End+1] {
				yMin = min(yMin, y)
				yMax = max(yMax, y)
			}
		}
		pad := (yMax-yMin)*bandPaddingShare + bandPadding
		areas = append(areas, Band{
			Name:  b.name,
			Start: interval.Start,
			End:   interval.End,
			YMin:  yMin - pad,
			YMax:  yMax + pad,
			Color: b.color,
		})
	}
	return areas
}

// BeatChart shows a single beat with its fiducial points and the shaded PR, QT, and ST intervals.
func BeatChart(beat []float64, result fiducial.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "ecgscope", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Fiducial Points"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Sample Point", Min: 0, Max: max(0, len(beat)-1)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Amplitude", Scale: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
	)

	areas := make([]opts.MarkAreaNameCoordItem, 0, len(bands))
	for _, b := range Bands(beat, result) {
		areas = append(areas, opts.MarkAreaNameCoordItem{
			Name:        b.Name,
			Coordinate0: []interface{}{b.Start, b.YMin},
			Coordinate1: []interface{}{b.End, b.YMax},
			ItemStyle:   &opts.ItemStyle{Color: b.Color},
		})
	}
	signalOptions := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: 1.8, Color: signalColor}),
	}
	if len(areas) > 0 {
		signalOptions = append(signalOptions,
			charts.WithMarkAreaNameCoordItemOpts(areas...),
			charts.WithMarkAreaStyleOpts(opts.MarkAreaStyle{Label: &opts.Label{Show: opts.Bool(true), Color: labelColor}}),
		)
	}
	line.AddSeries("ECG Signal", lineData(beat, 0), signalOptions...)

	points := make(fiducial.Positions, len(fiducial.Kinds))
	for _, kind := range fiducial.Kinds {
		series := fiducial.Series{X: []int{}, Y: []float64{}}
		if point := result.Point(kind); point != nil {
			series.X = append(series.X, point.Index)
			series.Y = append(series.Y, point.Amplitude)
		}
		points[kind] = series
	}
	line.Overlap(markerChart(points, true))

	return line
}

// PlaybackChart shows the part of the strip that is revealed at the given frame, within the
// viewport of that frame.
func PlaybackChart(strip *playback.Strip, frame int) *charts.Line {
	line := charts.NewLine()
	if strip.Empty() {
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: "ecgscope", Height: "320px"}),
			charts.WithTitleOpts(opts.Title{Title: "ECG Playback", Subtitle: "no strip selected"}),
			charts.WithXAxisOpts(opts.XAxis{Type: "value"}),
			charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		)
		return line
	}

	frame = min(max(frame, 0), strip.Len())
	viewport := strip.ViewportAt(frame)
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "ecgscope", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "ECG Playback", Subtitle: string(strip.Class)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Sample", Min: viewport.Start, Max: viewport.End}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Amplitude (mV)", Min: strip.YMin, Max: strip.YMax}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithAnimation(false),
	)

	line.AddSeries("ECG", lineData(strip.Samples[:frame], 0),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: 2, Color: markers[fiducial.R].color}),
	)
	line.Overlap(markerChart(strip.MarkersAt(frame), false))

	return line
}

// Write renders the chart as standalone HTML page.
func Write(w io.Writer, chart Chart) error {
	return chart.Render(w)
}

// Options returns the echarts options of the chart, e.g. to be sent as JSON to a browser.
func Options(chart Chart) map[string]any {
	chart.Validate()
	return chart.JSON()
}

func lineData(samples []float64, offset int) []opts.LineData {
	result := make([]opts.LineData, len(samples))
	for i, y := range samples {
		result[i] = opts.LineData{Value: []interface{}{offset + i, y}}
	}
	return result
}

func markerChart(points fiducial.Positions, labels bool) *charts.Scatter {
	scatter := charts.NewScatter()
	for _, kind := range fiducial.Kinds {
		series := points[kind]
		m := markers[kind]

		data := make([]opts.ScatterData, 0, series.Len())
		for i := range series.Len() {
			data = append(data, opts.ScatterData{Value: []interface{}{series.X[i], series.Y[i]}})
		}

		scatter.AddSeries(m.name, data,
			charts.WithScatterChartOpts(opts.ScatterChart{Symbol: m.symbol, SymbolSize: m.size}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: m.color, BorderColor: "#fff", BorderWidth: 1}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(labels), Position: "top", Formatter: types.FuncStr(kind), Color: m.color}),
		)
	}
	return scatter
}
