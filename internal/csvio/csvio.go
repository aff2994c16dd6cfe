// Package csvio reads and writes the readings CSV file.
//
// The format matches the browser page's "Esporta CSV" download:
//
//	# CUCINA,BAGNO,SOGGIORNO,CAMERETTA,STUDIO,BAGNO 2,CAMERA DA LETTO
//	date,R1,R2,R3,R4,R5,R6,R7,note
//	2025-01,"1,5",2,3,4,5,6,7,ok
//
// Numbers use a comma as decimal separator and are quoted when they have a
// fractional part ("12,5"). The note column is written verbatim and, being
// the last column, read back as the raw rest of the line: commas and quotes
// in a note survive a round trip, line breaks do not.
package csvio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"termosifoni/internal/core"
)

// FileName is the name suggested to browsers for exported files.
const FileName = "letture-termosifoni.csv"

// Warning describes an input line that was dropped or partially coerced.
type Warning struct {
	Line   int
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Reason)
}

// Header returns the column header line.
func Header() string {
	cols := make([]string, 0, core.MeterCount+2)
	cols = append(cols, "date")
	for i := 0; i < core.MeterCount; i++ {
		cols = append(cols, core.MeterKey(i))
	}
	cols = append(cols, "note")
	return strings.Join(cols, ",")
}

// Comment returns the leading comment line listing the meter names.
func Comment() string {
	return "# " + strings.Join(core.MeterNames[:], ",")
}

// Encode writes c sorted by month.
func Encode(w io.Writer, c core.Collection) error {
	bw := bufio.NewWriter(w)
	lines := []string{Comment(), Header()}
	for _, r := range c.Sorted() {
		cols := make([]string, 0, core.MeterCount+2)
		cols = append(cols, r.Month)
		for _, v := range r.Readings {
			cols = append(cols, quoteNumber(core.FormatCSVNumber(v)))
		}
		cols = append(cols, r.Note)
		lines = append(lines, strings.Join(cols, ","))
	}
	if _, err := bw.WriteString(strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// quoteNumber wraps comma-decimal numbers in double quotes so the decimal
// comma is not read as a field separator.
func quoteNumber(s string) string {
	if strings.Contains(s, ",") {
		return `"` + s + `"`
	}
	return s
}

// EncodeString is Encode into a string.
func EncodeString(c core.Collection) string {
	var sb strings.Builder
	_ = Encode(&sb, c)
	return sb.String()
}

var lineSplit = regexp.MustCompile(`\r?\n`)

// Decode parses CSV text into a collection. It never fails: rows with a
// missing or invalid month are dropped, unparsable readings become 0, and a
// month appearing twice keeps its last row. Dropped rows and unparsable
// cells are reported as warnings.
func Decode(r io.Reader) (core.Collection, []Warning) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Collection{}, []Warning{{Line: 0, Reason: "read error: " + err.Error()}}
	}
	return DecodeString(string(data))
}

// DecodeString is Decode over an in-memory string. The header is the first
// line not starting with '#', so files produced by Encode import back. Each
// line is parsed on its own: an unbalanced quote never swallows the rows
// after it.
func DecodeString(text string) (core.Collection, []Warning) {
	out := core.Collection{}
	text = strings.TrimSpace(text)
	lines := lineSplit.Split(text, -1)
	if len(lines) < 2 {
		return out, nil
	}

	var (
		cols     *columns
		warnings []Warning
	)
	for i, line := range lines {
		lineNo := i + 1
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields, starts, err := splitLine(line)
		if err != nil {
			warnings = append(warnings, Warning{Line: lineNo, Reason: "malformed row skipped: " + err.Error()})
			continue
		}

		if cols == nil {
			h := header(fields)
			cols = &h
			continue
		}

		month := strings.TrimSpace(cell(fields, cols.date))
		if !core.ValidMonthKey(month) {
			warnings = append(warnings, Warning{Line: lineNo, Reason: fmt.Sprintf("invalid month %q, row skipped", month)})
			continue
		}

		rec := core.Record{Month: month}
		for k, idx := range cols.meters {
			raw := strings.TrimSpace(cell(fields, idx))
			v, ok := core.ParseReading(raw)
			if !ok && raw != "" {
				warnings = append(warnings, Warning{Line: lineNo, Reason: fmt.Sprintf("%s: value %q read as 0", core.MeterKey(k), raw)})
			}
			rec.Readings[k] = v
		}
		switch {
		case cols.note < 0 || cols.note >= len(fields):
		case cols.note == cols.last:
			rec.Note = line[starts[cols.note]:]
		default:
			rec.Note = fields[cols.note]
		}
		out.Upsert(rec)
	}
	return out, warnings
}

// splitLine reads the fields of a single line together with the byte offset
// where each one starts.
func splitLine(line string) ([]string, []int, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	fields, err := cr.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, nil, perr.Err
		}
		return nil, nil, err
	}
	starts := make([]int, len(fields))
	for i := range fields {
		_, col := cr.FieldPos(i)
		starts[i] = col - 1
	}
	return fields, starts, nil
}

type columns struct {
	date   int
	note   int
	last   int
	meters [core.MeterCount]int
}

// header locates columns by name; a missing column has index -1.
func header(fields []string) columns {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimSpace(f)
	}
	c := columns{
		date: indexOf(names, "date"),
		note: indexOf(names, "note"),
		last: len(names) - 1,
	}
	for k := range c.meters {
		c.meters[k] = indexOf(names, core.MeterKey(k))
	}
	return c
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if v == target {
			return i
		}
	}
	return -1
}

func cell(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}
