package sheets

import (
	"termosifoni/internal/core"
)

// Column headers of the mirrored table.
const (
	HeaderMonth = "Mese"
	HeaderTotal = "Totale"
	HeaderNote  = "Nota"
	DeltaPrefix = "Δ "
)

// Header returns the header row: month, one column per meter reading, one
// per meter consumption, total and note.
func Header() []string {
	h := make([]string, 0, 2*core.MeterCount+3)
	h = append(h, HeaderMonth)
	h = append(h, core.MeterNames[:]...)
	for _, n := range core.MeterNames {
		h = append(h, DeltaPrefix+n)
	}
	return append(h, HeaderTotal, HeaderNote)
}

// Table lays out d as spreadsheet rows: header, one row per month, and a
// closing totals row. Numbers are rounded to 3 decimals.
func Table(d core.Derivation) [][]any {
	header := Header()
	rows := make([][]any, 0, len(d.Rows)+2)

	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	rows = append(rows, hdr)

	for _, r := range d.Rows {
		row := make([]any, 0, len(header))
		row = append(row, r.Month)
		for _, v := range r.Readings {
			row = append(row, core.Round3(v))
		}
		for _, v := range r.Deltas {
			row = append(row, core.Round3(v))
		}
		row = append(row, core.Round3(r.Total), r.Note)
		rows = append(rows, row)
	}

	totals := make([]any, 0, len(header))
	totals = append(totals, HeaderTotal)
	for range core.MeterNames {
		totals = append(totals, "")
	}
	for _, v := range d.TotalsByMeter {
		totals = append(totals, core.Round3(v))
	}
	totals = append(totals, core.Round3(d.GrandTotal), "")
	return append(rows, totals)
}
