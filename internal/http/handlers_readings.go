package http

import (
	"errors"
	"net/http"
	"strings"

	"termosifoni/internal/amqp"
	"termosifoni/internal/core"
	"termosifoni/internal/log"
)

const maxFormBytes = 64 << 10

// Messages shown to the user.
const (
	msgInvalidRequest = "Formato richiesta non valido"
	msgInvalidMonth   = "Inserisci un mese valido (YYYY-MM)"
	msgNoteTooLong    = "Nota troppo lunga (massimo 500 caratteri)"
	msgSaveFailed     = "Errore nel salvataggio"
)

// lowerWarning is the confirmation prompt for readings below the previous
// month.
func lowerWarning(meters []string) string {
	if len(meters) == 1 {
		return "Attenzione: " + meters[0] + " è inferiore al mese precedente. Vuoi comunque salvare?"
	}
	return "Attenzione: " + strings.Join(meters, ", ") + " sono inferiori al mese precedente. Vuoi comunque salvare?"
}

// handleSaveReading adds or replaces the record of one month.
func (s *Server) handleSaveReading(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.logger.WarnContext(r.Context(), "Parse body error", log.FieldError, err, log.FieldPath, r.URL.Path)
		errorFor(p.IsJSON(), http.StatusBadRequest, msgInvalidRequest).Write(w)
		return
	}
	in := ParseReadingInput(p)
	rec := in.Record

	if err := rec.Validate(); err != nil {
		msg := msgInvalidMonth
		if errors.Is(err, core.ErrNoteTooLong) {
			msg = msgNoteTooLong
		}
		errorFor(p.IsJSON(), http.StatusUnprocessableEntity, msg).Write(w)
		return
	}

	if !in.Confirm {
		if lower := s.store.Snapshot(r.Context()).LowerThanPrevious(rec); len(lower) > 0 {
			s.logger.InfoContext(r.Context(), "Reading lower than previous month, asking confirmation",
				log.FieldMonth, rec.Month,
				log.FieldMeters, lower)
			s.respondConfirm(w, p.IsJSON(), lower)
			return
		}
	}

	if err := s.store.Upsert(r.Context(), rec); err != nil {
		s.events.LogError(r.Context(), "Failed to save reading", err, log.ComponentStore, log.OpUpsert,
			log.LogFields{log.FieldMonth: rec.Month})
		errorFor(p.IsJSON(), http.StatusInternalServerError, msgSaveFailed).Write(w)
		return
	}
	s.metrics.mutations.WithLabelValues(amqp.OpUpsert).Inc()

	if p.IsJSON() {
		NewHTMXResponse().
			TriggerReadingsChanged(amqp.OpUpsert, []string{rec.Month}).
			BodyJSON(rec).
			Write(w)
		return
	}
	SuccessResponse("Letture di " + core.MonthLabel(rec.Month) + " salvate.").
		TriggerReadingsChanged(amqp.OpUpsert, []string{rec.Month}).
		TriggerFormReset().
		Write(w)
}

// respondConfirm asks the client to resend with confirm set.
func (s *Server) respondConfirm(w http.ResponseWriter, jsonMode bool, meters []string) {
	msg := lowerWarning(meters)
	if !jsonMode {
		ConfirmResponse(msg).Write(w)
		return
	}
	NewHTMXResponse().
		Status(http.StatusConflict).
		BodyJSON(map[string]interface{}{"error": msg, "meters": meters, "confirm": "resend with confirm=true"}).
		Write(w)
}

// handleDeleteReading removes one month. Absent months are a no-op.
func (s *Server) handleDeleteReading(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		errorFor(p.IsJSON(), http.StatusBadRequest, msgInvalidRequest).Write(w)
		return
	}
	month := p.Get("month")
	if month == "" {
		month = r.URL.Query().Get("month")
	}

	if err := s.store.Remove(r.Context(), month); err != nil {
		s.events.LogError(r.Context(), "Failed to delete reading", err, log.ComponentStore, log.OpDelete,
			log.LogFields{log.FieldMonth: month})
		errorFor(p.IsJSON(), http.StatusInternalServerError, msgSaveFailed).Write(w)
		return
	}
	s.metrics.mutations.WithLabelValues(amqp.OpDelete).Inc()

	NewHTMXResponse().
		TriggerReadingsChanged(amqp.OpDelete, []string{month}).
		Notify(NotificationSuccess, "Mese "+core.MonthLabel(month)+" eliminato").
		Write(w)
}

// handleReset wipes every record and the persisted slot.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if err := s.store.ResetAll(r.Context()); err != nil {
		s.events.LogError(r.Context(), "Failed to reset readings", err, log.ComponentStore, log.OpReset, nil)
		ErrorResponse(http.StatusInternalServerError, msgSaveFailed).Write(w)
		return
	}
	s.metrics.mutations.WithLabelValues(amqp.OpReset).Inc()

	NewHTMXResponse().
		TriggerReadingsChanged(amqp.OpReset, nil).
		Notify(NotificationSuccess, "Dati azzerati").
		Write(w)
}
