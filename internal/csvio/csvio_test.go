package csvio

import (
	"strings"
	"testing"

	"termosifoni/internal/core"
)

func rec(month, note string, vals ...float64) core.Record {
	r := core.Record{Month: month, Note: note}
	copy(r.Readings[:], vals)
	return r
}

func TestEncode(t *testing.T) {
	got := EncodeString(core.Collection{
		rec("2025-02", "", 2.5, 3, 4, 5, 6, 7, 8),
		rec("2025-01", "ok", 1, 2, 3, 4, 5, 6, 7),
	})
	want := strings.Join([]string{
		"# CUCINA,BAGNO,SOGGIORNO,CAMERETTA,STUDIO,BAGNO 2,CAMERA DA LETTO",
		"date,R1,R2,R3,R4,R5,R6,R7,note",
		"2025-01,1,2,3,4,5,6,7,ok",
		`2025-02,"2,5",3,4,5,6,7,8,`,
	}, "\n")
	if got != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", got, want)
	}
}

func TestEncodeEmpty(t *testing.T) {
	got := EncodeString(nil)
	if got != Comment()+"\n"+Header() {
		t.Fatalf("empty export should carry only the two header lines, got %q", got)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	in := core.Collection{
		rec("2024-12", "", 10, 0, 1.5, 2, 3, 4, 5),
		rec("2025-01", "valvola chiusa", 12.25, 0.5, 2, 2, 3, 4, 6),
	}
	out, warnings := DecodeString(EncodeString(in))
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d records, got %d", len(in), len(out))
	}
	for _, want := range in {
		got, ok := out.Find(want.Month)
		if !ok || got != want {
			t.Fatalf("round trip mismatch for %s: got %+v want %+v", want.Month, got, want)
		}
	}
}

func TestDecodeHeaderByName(t *testing.T) {
	text := "note,R7,R6,R5,R4,R3,R2,R1,date\r\nhello,7,6,5,4,3,2,1,2025-05\r\n"
	out, _ := DecodeString(text)
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %+v", out)
	}
	if out[0].Readings != (core.Readings{1, 2, 3, 4, 5, 6, 7}) || out[0].Note != "hello" {
		t.Fatalf("columns not located by name: %+v", out[0])
	}
}

func TestDecodeLenient(t *testing.T) {
	text := strings.Join([]string{
		"  # CUCINA,BAGNO",
		"date,R1,R2,R3,R4,R5,R6,R7",
		"# comment line",
		"2025-01,1,abc,,4,5,6,7",
		"bad,1,2,3,4,5,6,7",
		"2025-13,1,2,3,4,5,6,7",
		" 2025-02 ,2,2,2,2,2,2,2",
		"2025-01,9,9,9,9,9,9,9",
		"2025-03,1",
	}, "\n")
	out, warnings := DecodeString(text)

	if got := strings.Join(out.Months(), ","); got != "2025-01,2025-02,2025-03" {
		t.Fatalf("unexpected months: %s", got)
	}
	if r, _ := out.Find("2025-01"); r.Readings[0] != 9 {
		t.Fatalf("later duplicate should win: %+v", r)
	}
	if r, _ := out.Find("2025-03"); r.Readings != (core.Readings{1}) || r.Note != "" {
		t.Fatalf("missing cells should be 0 with empty note: %+v", r)
	}
	// "abc" on line 4 and the two bad months; empty or missing cells are silent.
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d: %v", len(warnings), warnings)
	}
	if warnings[0].Line != 4 {
		t.Fatalf("first warning should point at line 4, got %v", warnings[0])
	}
}

func TestDecodeSkipsLeadingComment(t *testing.T) {
	text := Comment() + "\n" + Header() + "\n2025-01,1,2,3,4,5,6,7,ok"
	out, _ := DecodeString(text)
	if len(out) != 1 {
		t.Fatalf("exported file must import back, got %+v", out)
	}
}

func TestDecodeNoteWithQuotes(t *testing.T) {
	out, warnings := DecodeString("date,R1,note\n2025-01,1,detto \"ok\"")
	if len(warnings) != 0 || len(out) != 1 || out[0].Note != `detto "ok"` {
		t.Fatalf("bare quotes in the note should be kept: %+v %v", out, warnings)
	}
}

func TestDecodeDegenerate(t *testing.T) {
	for _, text := range []string{"", "   ", "date,R1,R2", "\n\n"} {
		out, _ := DecodeString(text)
		if len(out) != 0 {
			t.Fatalf("%q: expected empty collection, got %+v", text, out)
		}
	}
}

func TestDecodeReader(t *testing.T) {
	out, _ := Decode(strings.NewReader("date,R1,R2\n2025-01,\"3,5\",3,5"))
	if len(out) != 1 || out[0].Readings[0] != 3.5 || out[0].Readings[1] != 3 {
		t.Fatalf("quoted comma decimal not parsed: %+v", out)
	}
}

func TestDecodeRoundTripAwkwardNotes(t *testing.T) {
	in := core.Collection{
		rec("2025-01", `"nuovo" contatore`, 1, 2, 3, 4, 5, 6, 7),
		rec("2025-02", "letto a mano, valvola 3", 2, 3, 4, 5, 6, 7, 8),
		rec("2025-03", "  spazi  ", 3, 4, 5, 6, 7, 8, 9),
		rec("2025-04", `"`, 4, 5, 6, 7, 8, 9, 10),
	}
	out, warnings := DecodeString(EncodeString(in))
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d records, got %d: %+v", len(in), len(out), out)
	}
	for _, want := range in {
		got, ok := out.Find(want.Month)
		if !ok || got != want {
			t.Fatalf("round trip mismatch for %s: got %+v want %+v", want.Month, got, want)
		}
	}
}

func TestDecodeUnbalancedQuoteStaysOnItsLine(t *testing.T) {
	text := strings.Join([]string{
		"date,R1,R2,note",
		`2025-01,"1,2,ok`,
		"2025-02,2,2,ok",
	}, "\n")
	out, _ := DecodeString(text)
	if got := strings.Join(out.Months(), ","); got != "2025-01,2025-02" {
		t.Fatalf("rows after an unbalanced quote must survive, got %s", got)
	}
	if r, _ := out.Find("2025-02"); r.Readings[0] != 2 || r.Note != "ok" {
		t.Fatalf("second row damaged: %+v", r)
	}
}
