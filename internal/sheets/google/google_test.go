package google

import (
	"context"
	"errors"
	"strings"
	"testing"

	"termosifoni/internal/core"
)

type fakeValues struct {
	cleared  []string
	updated  string
	written  [][]any
	stored   [][]any
	failWith error
}

func (f *fakeValues) Clear(_ context.Context, _, rng string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.cleared = append(f.cleared, rng)
	return nil
}

func (f *fakeValues) Update(_ context.Context, _, rng string, values [][]any) (string, error) {
	f.updated = rng
	f.written = values
	f.stored = values
	return "Letture!A1:Q4", nil
}

func (f *fakeValues) Get(_ context.Context, _, _ string) ([][]any, error) {
	return f.stored, nil
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet", CredentialsFile: "/does/not/exist.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file error, got: %v", err)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.MirrorReadings(context.Background(), core.Derivation{}); err == nil {
		t.Fatal("expected error with nil service")
	}
	if _, err := c.ReadReadings(context.Background()); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestClient_MirrorAndReadBack(t *testing.T) {
	fake := &fakeValues{}
	c := &Client{values: fake, spreadsheetID: "id", sheetName: "Letture"}

	in := core.Collection{
		{Month: "2025-01", Readings: core.Readings{1, 2, 3, 4, 5, 6, 7}, Note: "prima"},
		{Month: "2025-02", Readings: core.Readings{2.5, 3, 4, 5, 6, 7, 8}},
	}
	ref, err := c.MirrorReadings(context.Background(), core.Derive(in))
	if err != nil {
		t.Fatalf("MirrorReadings: %v", err)
	}
	if ref != "Letture!A1:Q4" || fake.updated != "Letture!A1" {
		t.Fatalf("unexpected ranges: ref=%q updated=%q", ref, fake.updated)
	}
	if len(fake.cleared) != 1 || fake.cleared[0] != "Letture!A:Z" {
		t.Fatalf("sheet not cleared before write: %v", fake.cleared)
	}

	back, err := c.ReadReadings(context.Background())
	if err != nil {
		t.Fatalf("ReadReadings: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("expected 2 months back, got %+v", back)
	}
	if r, _ := back.Find("2025-02"); r.Readings[0] != 2.5 {
		t.Fatalf("reading lost: %+v", r)
	}
	if r, _ := back.Find("2025-01"); r.Note != "prima" {
		t.Fatalf("note lost: %+v", r)
	}
}

func TestClient_MirrorClearFailure(t *testing.T) {
	c := &Client{values: &fakeValues{failWith: errors.New("quota")}, spreadsheetID: "id", sheetName: "Letture"}
	if _, err := c.MirrorReadings(context.Background(), core.Derivation{}); err == nil || !strings.Contains(err.Error(), "clear sheet") {
		t.Fatalf("expected clear error, got %v", err)
	}
}

func TestParseTable(t *testing.T) {
	values := [][]any{
		{"Nota", "Mese", "CUCINA", "BAGNO"},
		{"", "2025-03", 10.5, "2,25"},
		{"x", "Totale", "", ""},
		{"ok", "2025-13", 1, 1},
	}
	c, err := parseTable(values)
	if err != nil {
		t.Fatalf("parseTable: %v", err)
	}
	if len(c) != 1 {
		t.Fatalf("expected 1 record, got %+v", c)
	}
	if c[0].Readings[0] != 10.5 || c[0].Readings[1] != 2.25 || c[0].Readings[2] != 0 {
		t.Fatalf("unexpected readings: %v", c[0].Readings)
	}

	if _, err := parseTable([][]any{{"Foo"}}); err == nil || !strings.Contains(err.Error(), "unexpected mirror header") {
		t.Fatalf("expected header error, got %v", err)
	}
	if c, err := parseTable(nil); err != nil || len(c) != 0 {
		t.Fatalf("empty sheet: %v %v", c, err)
	}
}
