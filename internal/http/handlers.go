package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"termosifoni/internal/core"
	"termosifoni/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewHTMXResponse().BodyJSON(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the templates and the slot store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.store.Ping(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.limiter.ActiveClients(),
		"hits":           s.limiter.Hits(),
	}

	NewHTMXResponse().
		Status(httpStatus).
		BodyJSON(map[string]interface{}{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"checks":    checks,
		}).
		Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	c := s.store.Snapshot(r.Context())
	d := core.Derive(c)

	month := r.URL.Query().Get("month")
	if !core.ValidMonthKey(month) {
		month = core.CurrentMonthKey(s.now())
	}

	data := pageData{
		Form:    buildForm(c, month),
		History: buildHistory(d),
		Chart:   buildChart(core.ChartSeries(d), parseSelection(r.URL.Query())),
	}
	s.render(w, r, "index.html", data)
}

// handleHistory renders the history table partial.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	d := core.Derive(s.store.Snapshot(r.Context()))
	s.render(w, r, "history.html", buildHistory(d))
}

// handleChart renders the chart partial for the series in ?series=.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	d := core.Derive(s.store.Snapshot(r.Context()))
	s.render(w, r, "chart.html", buildChart(core.ChartSeries(d), parseSelection(r.URL.Query())))
}

// render executes a template into a buffer so that a failure still yields a
// clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldOperation, log.OpRender)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.events.LogError(r.Context(), "Template execution failed", err, log.ComponentTemplate, log.OpRender,
			log.LogFields{"template": name})
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().Body(buf.Bytes()).Header("Content-Type", "text/html; charset=utf-8").Write(w)
}
