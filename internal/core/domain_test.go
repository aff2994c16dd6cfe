package core

import (
	"strings"
	"testing"
	"time"
)

func TestValidMonthKey(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-01", true},
		{"2025-12", true},
		{"1999-07", true},
		{"2025-13", false},
		{"2025-00", false},
		{"2025-1", false},
		{"bad", false},
		{"", false},
		{" 2025-01", false},
	}
	for _, tc := range cases {
		if got := ValidMonthKey(tc.in); got != tc.ok {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.ok, got)
		}
	}
}

func TestRecordValidate(t *testing.T) {
	if err := rec("2025-03").Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := rec("2025-3").Validate(); err != ErrInvalidMonth {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	long := Record{Month: "2025-03", Note: strings.Repeat("x", 501)}
	if err := long.Validate(); err != ErrNoteTooLong {
		t.Fatalf("expected ErrNoteTooLong, got %v", err)
	}
}

func TestCollectionUpsertRemove(t *testing.T) {
	var c Collection
	if c.Upsert(rec("2025-01", 1)) {
		t.Fatalf("first insert reported replace")
	}
	if !c.Upsert(rec("2025-01", 2)) {
		t.Fatalf("second insert should replace")
	}
	if len(c) != 1 || c[0].Readings[0] != 2 {
		t.Fatalf("unexpected collection: %+v", c)
	}
	if c.Remove("2025-02") {
		t.Fatalf("removing missing month should be a no-op")
	}
	if !c.Remove("2025-01") || len(c) != 0 {
		t.Fatalf("remove failed: %+v", c)
	}
}

func TestCollectionMerge(t *testing.T) {
	c := Collection{rec("2025-01", 1), rec("2025-03", 3)}
	res := c.Merge(Collection{
		rec("2025-03", 5, 5, 5, 5, 5, 5, 5),
		rec("2025-04", 4),
	})
	if len(res.Replaced) != 1 || res.Replaced[0] != "2025-03" {
		t.Fatalf("replaced: %v", res.Replaced)
	}
	if len(res.Added) != 1 || res.Added[0] != "2025-04" {
		t.Fatalf("added: %v", res.Added)
	}
	if r, _ := c.Find("2025-03"); r.Readings != (Readings{5, 5, 5, 5, 5, 5, 5}) {
		t.Fatalf("2025-03 not replaced: %v", r.Readings)
	}
	if r, ok := c.Find("2025-01"); !ok || r.Readings[0] != 1 {
		t.Fatalf("2025-01 should be untouched")
	}
	if got := strings.Join(c.Months(), ","); got != "2025-01,2025-03,2025-04" {
		t.Fatalf("months: %s", got)
	}
}

func TestLowerThanPrevious(t *testing.T) {
	c := Collection{rec("2025-03", 9, 9), rec("2025-01", 1, 1), rec("2025-02", 5, 5)}
	names := c.LowerThanPrevious(rec("2025-04", 10, 8))
	if len(names) != 1 || names[0] != "BAGNO" {
		t.Fatalf("expected BAGNO, got %v", names)
	}
	if names := c.LowerThanPrevious(rec("2025-02", 4, 6)); len(names) != 1 || names[0] != "CUCINA" {
		t.Fatalf("expected comparison with 2025-01, got %v", names)
	}
	if names := c.LowerThanPrevious(rec("2024-12", 0, 0)); names != nil {
		t.Fatalf("no previous month expected, got %v", names)
	}
}

func TestMonthLabel(t *testing.T) {
	cases := map[string]string{
		"2025-01": "gen 2025",
		"2024-05": "mag 2024",
		"2023-12": "dic 2023",
		"bad":     "bad",
	}
	for in, want := range cases {
		if got := MonthLabel(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
	if got := CurrentMonthKey(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)); got != "2025-03" {
		t.Fatalf("current month key: %s", got)
	}
}

func TestCollectionJSON(t *testing.T) {
	c := Collection{rec("2025-02", 2, 3), rec("2025-01", 1.5)}
	c[0].Note = "valvola"
	data, err := EncodeCollection(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(string(data), `[{"id":"2025-01","month":"2025-01"`) {
		t.Fatalf("unexpected encoding: %s", data)
	}
	back, err := DecodeCollection(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r, ok := back.Find("2025-02"); !ok || r.Note != "valvola" || r.Readings[1] != 3 {
		t.Fatalf("round trip lost data: %+v", back)
	}
}

func TestDecodeCollectionLenient(t *testing.T) {
	data := `[
		{"id":"2025-01","readings":[1,2]},
		{"month":"2025-02","readings":[1,2,3,4,5,6,7,8,9],"note":"x"},
		{"month":"nope","readings":[1]},
		{"month":"2025-02","readings":[9,null]}
	]`
	c, err := DecodeCollection([]byte(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(c) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(c), c)
	}
	if r, _ := c.Find("2025-01"); r.Readings != (Readings{1, 2}) {
		t.Fatalf("id fallback or padding failed: %+v", r)
	}
	if r, _ := c.Find("2025-02"); r.Readings[0] != 9 || r.Readings[1] != 0 {
		t.Fatalf("duplicate should keep last: %+v", r)
	}

	if _, err := DecodeCollection([]byte("{not json")); err == nil {
		t.Fatalf("expected error for malformed blob")
	}
}
