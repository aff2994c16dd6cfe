package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"termosifoni/internal/amqp"
	"termosifoni/internal/csvio"
	"termosifoni/internal/log"
)

const maxImportBytes = 5 << 20

const msgInvalidCSV = "CSV non valido o vuoto."

// handleImport merges an uploaded CSV into the collection.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "File troppo grande (massimo 5 MB)").Write(w)
			return
		}
		BadRequestError("Seleziona un file CSV").Write(w)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		BadRequestError("Seleziona un file CSV").Write(w)
		return
	}
	defer file.Close()

	in, warnings := csvio.Decode(file)
	for _, wrn := range warnings {
		s.logger.DebugContext(r.Context(), "CSV import warning",
			log.FieldOperation, log.OpImport,
			"file", hdr.Filename,
			"detail", wrn.String())
	}
	if len(in) == 0 {
		s.logger.WarnContext(r.Context(), "CSV import yielded no records",
			"file", hdr.Filename,
			log.FieldWarnings, len(warnings))
		UnprocessableEntityError(msgInvalidCSV).Write(w)
		return
	}

	res, err := s.store.ImportMerge(r.Context(), in)
	if err != nil {
		s.events.LogError(r.Context(), "Failed to import readings", err, log.ComponentStore, log.OpImport, nil)
		InternalServerError(msgSaveFailed).Write(w)
		return
	}
	s.metrics.mutations.WithLabelValues(amqp.OpImport).Inc()
	s.logger.InfoContext(r.Context(), "CSV imported",
		"file", hdr.Filename,
		"added", len(res.Added),
		"replaced", len(res.Replaced),
		log.FieldWarnings, len(warnings))

	msg := fmt.Sprintf("Importati %d mesi (%d nuovi, %d sostituiti).", len(in), len(res.Added), len(res.Replaced))
	if len(warnings) > 0 {
		msg += fmt.Sprintf(" %d righe o valori ignorati.", len(warnings))
	}
	SuccessResponse(msg).
		TriggerReadingsChanged(amqp.OpImport, in.Months()).
		Write(w)
}

// handleExport downloads the collection as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	var buf bytes.Buffer
	if err := csvio.Encode(&buf, s.store.Snapshot(r.Context())); err != nil {
		s.events.LogError(r.Context(), "Failed to encode CSV", err, log.ComponentCSV, log.OpExport, nil)
		InternalServerError("Errore nell'esportazione").Write(w)
		return
	}
	NewHTMXResponse().
		Header("Content-Type", "text/csv; charset=utf-8").
		Header("Content-Disposition", `attachment; filename="`+csvio.FileName+`"`).
		Body(buf.Bytes()).
		Write(w)
}
