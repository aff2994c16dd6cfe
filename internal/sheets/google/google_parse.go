package google

import (
	"fmt"
	"strings"

	"termosifoni/internal/core"
	ports "termosifoni/internal/sheets"
)

// parseTable converts a values matrix written by MirrorReadings back into a
// collection. Columns are located by header name; rows whose first cell is
// not a month key (such as the totals row) are skipped.
func parseTable(values [][]any) (core.Collection, error) {
	out := core.Collection{}
	if len(values) == 0 {
		return out, nil
	}
	headers := toStrings(values[0])
	colMonth := indexOf(headers, ports.HeaderMonth)
	if colMonth == -1 {
		return nil, fmt.Errorf("unexpected mirror header: missing %s; got headers=%v", ports.HeaderMonth, headers)
	}
	var meters [core.MeterCount]int
	for k, name := range core.MeterNames {
		meters[k] = indexOf(headers, name)
	}
	colNote := indexOf(headers, ports.HeaderNote)

	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		month := safeGet(row, colMonth)
		if !core.ValidMonthKey(month) {
			continue
		}
		r := core.Record{Month: month, Note: safeGet(row, colNote)}
		for k, idx := range meters {
			r.Readings[k], _ = core.ParseReading(safeGet(row, idx))
		}
		out.Upsert(r)
	}
	return out, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
