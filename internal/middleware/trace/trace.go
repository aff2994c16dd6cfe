// Package trace assigns request IDs and records per-request logs and
// metrics.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"termosifoni/internal/log"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader is echoed on every response.
	RequestIDHeader = "X-Request-ID"
)

// Observer receives the outcome of every request.
type Observer func(r *http.Request, status int, duration time.Duration)

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	events    *log.StructuredLogger
	observe   Observer
	quiet     map[string]bool
	total     int64
}

// NewMiddleware creates a trace middleware. Requests to quietPaths are
// traced and observed but not logged.
func NewMiddleware(extractIP func(*http.Request) string, logger *log.Logger, observe Observer, quietPaths ...string) *Middleware {
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	m := &Middleware{
		extractIP: extractIP,
		events:    log.NewStructuredLogger(logger),
		observe:   observe,
		quiet:     make(map[string]bool, len(quietPaths)),
	}
	for _, p := range quietPaths {
		m.quiet[p] = true
	}
	return m
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := GenerateRequestID()
		r = r.WithContext(context.WithValue(r.Context(), RequestIDKey, requestID))
		w.Header().Set(RequestIDHeader, requestID)

		atomic.AddInt64(&m.total, 1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		if m.observe != nil {
			m.observe(r, rw.statusCode, duration)
		}
		if !m.quiet[r.URL.Path] {
			m.events.LogHTTPEnd(r.Context(), r, rw.statusCode, duration.Milliseconds(), clientIP)
		}
	})
}

// TotalRequests returns the number of requests traced so far.
func (m *Middleware) TotalRequests() int64 {
	return atomic.LoadInt64(&m.total)
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestID is GetRequestID over a request, for log.Middleware.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}
