package http

import (
	"termosifoni/internal/core"
)

type meterValue struct {
	Key   string
	Name  string
	Value string
}

type historyRow struct {
	Month    string
	Label    string
	Readings [core.MeterCount]string
	Deltas   [core.MeterCount]string
	Total    string
	Note     string
}

type historyView struct {
	Meters        [core.MeterCount]string
	Rows          []historyRow
	GrandTotal    string
	TotalsByMeter []meterValue
}

type formView struct {
	Month  string
	Fields []meterValue
	Note   string
}

type pageData struct {
	Form    formView
	History historyView
	Chart   chartView
}

func buildHistory(d core.Derivation) historyView {
	v := historyView{
		Meters:     core.MeterNames,
		Rows:       make([]historyRow, 0, len(d.Rows)),
		GrandTotal: formatNumber(d.GrandTotal),
	}
	for _, r := range d.Rows {
		row := historyRow{
			Month: r.Month,
			Label: core.MonthLabel(r.Month),
			Total: formatNumber(r.Total),
			Note:  r.Note,
		}
		for k := range r.Readings {
			row.Readings[k] = formatNumber(r.Readings[k])
			row.Deltas[k] = formatNumber(r.Deltas[k])
		}
		v.Rows = append(v.Rows, row)
	}
	for k, total := range d.TotalsByMeter {
		v.TotalsByMeter = append(v.TotalsByMeter, meterValue{
			Key:   core.MeterKey(k),
			Name:  core.MeterNames[k],
			Value: formatNumber(total),
		})
	}
	return v
}

// buildForm prefills the entry form. An existing record for month fills
// the readings so that saving edits it.
func buildForm(c core.Collection, month string) formView {
	f := formView{Month: month}
	rec, found := c.Find(month)
	if found {
		f.Note = rec.Note
	}
	for k := 0; k < core.MeterCount; k++ {
		field := meterValue{Key: core.MeterKey(k), Name: core.MeterNames[k]}
		if found {
			field.Value = core.FormatCSVNumber(rec.Readings[k])
		}
		f.Fields = append(f.Fields, field)
	}
	return f
}
