package http

import (
	"net/http"

	"termosifoni/internal/core"
)

type apiDerived struct {
	Month  string             `json:"month"`
	Label  string             `json:"label"`
	Deltas map[string]float64 `json:"deltas"`
	Total  float64            `json:"total"`
}

type apiReadings struct {
	Records       core.Collection    `json:"records"`
	Derived       []apiDerived       `json:"derived"`
	TotalsByMeter map[string]float64 `json:"totalsByMeter"`
	GrandTotal    float64            `json:"grandTotal"`
	Meters        []string           `json:"meters"`
}

// byMeter keys values by R1..R7, rounded like the chart.
func byMeter(rs core.Readings) map[string]float64 {
	m := make(map[string]float64, core.MeterCount)
	for k, v := range rs {
		m[core.MeterKey(k)] = core.Round3(v)
	}
	return m
}

func (s *Server) handleAPIReadings(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	c := s.store.Snapshot(r.Context())
	d := core.Derive(c)

	out := apiReadings{
		Records:       c.Sorted(),
		Derived:       make([]apiDerived, 0, len(d.Rows)),
		TotalsByMeter: byMeter(d.TotalsByMeter),
		GrandTotal:    core.Round3(d.GrandTotal),
		Meters:        core.MeterNames[:],
	}
	for _, row := range d.Rows {
		out.Derived = append(out.Derived, apiDerived{
			Month:  row.Month,
			Label:  core.MonthLabel(row.Month),
			Deltas: byMeter(row.Deltas),
			Total:  core.Round3(row.Total),
		})
	}
	NewHTMXResponse().BodyJSON(out).Write(w)
}

func (s *Server) handleAPIChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	points := core.ChartSeries(core.Derive(s.store.Snapshot(r.Context())))
	out := make([]map[string]interface{}, 0, len(points))
	for _, p := range points {
		item := map[string]interface{}{
			"name":  p.Label,
			"month": p.Month,
			"total": p.Total,
		}
		for k, v := range p.Meters {
			item[core.MeterKey(k)] = v
		}
		out = append(out, item)
	}
	NewHTMXResponse().BodyJSON(out).Write(w)
}
