package core

import (
	"encoding/json"
	"fmt"
	"math"
)

// recordJSON is the persisted shape of a Record. The id field mirrors the
// month and is kept for compatibility with data saved by the browser app.
type recordJSON struct {
	ID       string    `json:"id,omitempty"`
	Month    string    `json:"month"`
	Readings []float64 `json:"readings"`
	Note     string    `json:"note"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	readings := make([]float64, MeterCount)
	for i, v := range r.Readings {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		readings[i] = v
	}
	return json.Marshal(recordJSON{
		ID:       r.Month,
		Month:    r.Month,
		Readings: readings,
		Note:     r.Note,
	})
}

// UnmarshalJSON accepts short or long readings arrays: missing entries are
// zero, extra entries are ignored.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Month = raw.Month
	if r.Month == "" {
		r.Month = raw.ID
	}
	r.Readings = Readings{}
	for i := 0; i < MeterCount && i < len(raw.Readings); i++ {
		r.Readings[i] = raw.Readings[i]
	}
	r.Note = raw.Note
	return nil
}

// EncodeCollection serialises c as a JSON array, sorted by month.
func EncodeCollection(c Collection) ([]byte, error) {
	sorted := c.Sorted()
	data, err := json.Marshal(sorted)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return data, nil
}

// DecodeCollection parses a persisted JSON array. Records without a valid
// month key are dropped; duplicates keep the last occurrence.
func DecodeCollection(data []byte) (Collection, error) {
	var raw []Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	out := Collection{}
	for _, r := range raw {
		if !ValidMonthKey(r.Month) {
			continue
		}
		out.Upsert(r)
	}
	return out, nil
}
