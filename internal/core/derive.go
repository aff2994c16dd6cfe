package core

import "math"

// DerivedRecord is a record together with the consumption of its period.
type DerivedRecord struct {
	Record
	Deltas Readings
	Total  float64
}

// Derivation is the consumption view computed from a collection.
type Derivation struct {
	Rows          []DerivedRecord
	TotalsByMeter Readings
	GrandTotal    float64
}

// Derive turns cumulative readings into per-period consumption.
//
// Records are sorted by month. The first month is differenced against zero,
// every other month against its predecessor. A reading lower than the
// previous one yields zero consumption for that meter, never a negative
// value. Non-finite inputs count as zero.
//
// The result depends only on c; it is never stored.
func Derive(c Collection) Derivation {
	sorted := c.Sorted()
	d := Derivation{Rows: make([]DerivedRecord, 0, len(sorted))}

	var prev Readings
	for i, r := range sorted {
		cur := finiteReadings(r.Readings)
		row := DerivedRecord{Record: r}
		for k := range cur {
			base := 0.0
			if i > 0 {
				base = prev[k]
			}
			row.Deltas[k] = clampDelta(cur[k] - base)
			row.Total += row.Deltas[k]
			d.TotalsByMeter[k] += row.Deltas[k]
		}
		d.GrandTotal += row.Total
		d.Rows = append(d.Rows, row)
		prev = cur
	}
	return d
}

func clampDelta(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func finiteReadings(in Readings) Readings {
	for i, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			in[i] = 0
		}
	}
	return in
}

// ChartPoint is one month of the consumption chart.
type ChartPoint struct {
	Month  string
	Label  string
	Total  float64
	Meters Readings
}

// ChartSeries flattens a derivation into chart points, rounded to 3 decimals.
func ChartSeries(d Derivation) []ChartPoint {
	out := make([]ChartPoint, 0, len(d.Rows))
	for _, row := range d.Rows {
		p := ChartPoint{
			Month: row.Month,
			Label: MonthLabel(row.Month),
			Total: Round3(row.Total),
		}
		for k, v := range row.Deltas {
			p.Meters[k] = Round3(v)
		}
		out = append(out, p)
	}
	return out
}

// Round3 rounds v to three decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
