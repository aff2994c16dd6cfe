package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerReadingsChanged("upsert", []string{"2025-01"}).
		TriggerFormReset().
		Notify(NotificationSuccess, "Salvato").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}
	for _, part := range []string{
		`"readings:changed"`,
		`"op":"upsert"`,
		`"months":["2025-01"]`,
		`"form:reset"`,
		`"show-notification"`,
		`"type":"success"`,
		`"duration":3000`,
	} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_ResetHasEmptyMonths(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().TriggerReadingsChanged("reset", nil).Write(w)

	if trigger := w.Header().Get("HX-Trigger"); !strings.Contains(trigger, `"months":[]`) {
		t.Errorf("expected empty months list: %s", trigger)
	}
}

func TestHTMXResponseBuilder_NoTriggerHeaderWhenUnused(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().Header("X-Custom", "value").Status(http.StatusCreated).Write(w)

	if _, ok := w.Header()["Hx-Trigger"]; ok {
		t.Error("HX-Trigger set without triggers")
	}
	if w.Header().Get("X-Custom") != "value" || w.Code != http.StatusCreated {
		t.Errorf("header=%q status=%d", w.Header().Get("X-Custom"), w.Code)
	}
}

func TestHTMXResponseBuilder_BodyJSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().BodyJSON(map[string]int{"count": 2}).Write(w)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != `{"count":2}` {
		t.Errorf("Body = %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	NewHTMXResponse().BodyJSON(func() {}).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("unencodable value: status %d", w.Code)
	}
}

func TestFragments(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{"bad request", BadRequestError("Seleziona un file CSV"), http.StatusBadRequest, `<div class="error">Seleziona un file CSV</div>`},
		{"unprocessable", UnprocessableEntityError("CSV non valido o vuoto."), http.StatusUnprocessableEntity, `<div class="error">CSV non valido o vuoto.</div>`},
		{"internal", InternalServerError("Errore nel salvataggio"), http.StatusInternalServerError, `<div class="error">Errore nel salvataggio</div>`},
		{"success", SuccessResponse("Dati <salvati>"), http.StatusOK, `<div class="success">Dati &lt;salvati&gt;</div>`},
		{"json error", errorFor(true, http.StatusUnprocessableEntity, "mese"), http.StatusUnprocessableEntity, `{"error":"mese"}`},
		{"html error", errorFor(false, http.StatusBadRequest, "mese"), http.StatusBadRequest, `<div class="error">mese</div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequestError("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") || !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("error fragment not escaped: %s", body)
	}
}

func TestConfirmResponse(t *testing.T) {
	w := httptest.NewRecorder()

	ConfirmResponse("Attenzione: <CUCINA>").Write(w)

	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d, want 409", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"&lt;CUCINA&gt;", `hx-include="#reading-form"`, `"confirm":"1"`, "Salva comunque"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()

	MethodNotAllowedError("GET, POST").Write(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if w.Header().Get("Allow") != "GET, POST" {
		t.Errorf("Allow header = %q, want %q", w.Header().Get("Allow"), "GET, POST")
	}
}
