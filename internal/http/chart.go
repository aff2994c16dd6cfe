package http

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"termosifoni/internal/core"
)

// SVG geometry of the consumption chart.
const (
	chartWidth   = 720
	chartHeight  = 288
	chartPadL    = 56
	chartPadR    = 16
	chartPadT    = 12
	chartPadB    = 32
	chartYTicks  = 4
	seriesTotal  = "total"
	seriesParam  = "series"
	chartPartial = "/ui/chart"
)

var chartColors = [core.MeterCount + 1]string{
	"#0f172a", "#dc2626", "#2563eb", "#16a34a", "#d97706", "#7c3aed", "#0891b2", "#db2777",
}

type chartDot struct {
	X, Y  string
	Title string
}

type chartLine struct {
	Key    string
	Name   string
	Color  string
	Active bool
	Toggle string
	Points string
	Dots   []chartDot
}

type chartTick struct {
	Pos   string
	Label string
}

type chartView struct {
	Empty         bool
	Width, Height int
	PlotLeft      int
	PlotRight     int
	PlotTop       int
	PlotBottom    int
	Series        []chartLine
	XTicks        []chartTick
	YTicks        []chartTick
	Selection     string
}

// seriesKeys lists every toggleable series in display order.
func seriesKeys() []string {
	keys := []string{seriesTotal}
	for i := 0; i < core.MeterCount; i++ {
		keys = append(keys, core.MeterKey(i))
	}
	return keys
}

// parseSelection reads the series query parameter. Absent means the total
// only; present but empty means nothing selected. Unknown keys are ignored.
func parseSelection(q url.Values) map[string]bool {
	sel := map[string]bool{}
	raw, ok := q[seriesParam]
	if !ok {
		sel[seriesTotal] = true
		return sel
	}
	valid := map[string]bool{}
	for _, k := range seriesKeys() {
		valid[k] = true
	}
	for _, v := range raw {
		for _, k := range strings.Split(v, ",") {
			k = strings.TrimSpace(k)
			if valid[k] {
				sel[k] = true
			}
		}
	}
	return sel
}

func encodeSelection(sel map[string]bool) string {
	var keys []string
	for _, k := range seriesKeys() {
		if sel[k] {
			keys = append(keys, k)
		}
	}
	return strings.Join(keys, ",")
}

func toggleURL(sel map[string]bool, key string) string {
	next := make(map[string]bool, len(sel)+1)
	for k, v := range sel {
		next[k] = v
	}
	next[key] = !next[key]
	return chartPartial + "?" + url.Values{seriesParam: {encodeSelection(next)}}.Encode()
}

func seriesValue(p core.ChartPoint, key string) float64 {
	if key == seriesTotal {
		return p.Total
	}
	for i := 0; i < core.MeterCount; i++ {
		if core.MeterKey(i) == key {
			return p.Meters[i]
		}
	}
	return 0
}

func seriesName(key string) string {
	if key == seriesTotal {
		return "Totale"
	}
	for i := 0; i < core.MeterCount; i++ {
		if core.MeterKey(i) == key {
			return core.MeterNames[i]
		}
	}
	return key
}

// buildChart lays out the selected series of points as SVG polylines.
func buildChart(points []core.ChartPoint, sel map[string]bool) chartView {
	v := chartView{
		Empty:      len(points) == 0,
		Width:      chartWidth,
		Height:     chartHeight,
		PlotLeft:   chartPadL,
		PlotRight:  chartWidth - chartPadR,
		PlotTop:    chartPadT,
		PlotBottom: chartHeight - chartPadB,
		Selection:  encodeSelection(sel),
	}

	maxY := 0.0
	for _, p := range points {
		for _, k := range seriesKeys() {
			if sel[k] {
				maxY = math.Max(maxY, seriesValue(p, k))
			}
		}
	}
	maxY = niceCeil(maxY)

	plotW := float64(v.PlotRight - v.PlotLeft)
	plotH := float64(v.PlotBottom - v.PlotTop)
	xAt := func(i int) float64 {
		if len(points) < 2 {
			return float64(v.PlotLeft) + plotW/2
		}
		return float64(v.PlotLeft) + plotW*float64(i)/float64(len(points)-1)
	}
	yAt := func(val float64) float64 {
		return float64(v.PlotBottom) - plotH*val/maxY
	}

	for i, p := range points {
		v.XTicks = append(v.XTicks, chartTick{Pos: coord(xAt(i)), Label: p.Label})
	}
	for i := 0; i <= chartYTicks; i++ {
		val := maxY * float64(i) / chartYTicks
		v.YTicks = append(v.YTicks, chartTick{Pos: coord(yAt(val)), Label: formatNumber(val)})
	}

	for idx, k := range seriesKeys() {
		line := chartLine{
			Key:    k,
			Name:   seriesName(k),
			Color:  chartColors[idx],
			Active: sel[k],
			Toggle: toggleURL(sel, k),
		}
		if line.Active {
			pts := make([]string, 0, len(points))
			for i, p := range points {
				x, y := coord(xAt(i)), coord(yAt(seriesValue(p, k)))
				pts = append(pts, x+","+y)
				line.Dots = append(line.Dots, chartDot{
					X: x, Y: y,
					Title: line.Name + " " + p.Label + ": " + formatNumber(seriesValue(p, k)),
				})
			}
			line.Points = strings.Join(pts, " ")
		}
		v.Series = append(v.Series, line)
	}
	return v
}

// niceCeil rounds v up to 1, 2, 2.5 or 5 times a power of ten.
func niceCeil(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if m*exp >= v {
			return m * exp
		}
	}
	return 10 * exp
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
