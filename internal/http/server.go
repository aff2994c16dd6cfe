package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"termosifoni/internal/core"
	"termosifoni/internal/log"
	"termosifoni/internal/middleware/ratelimit"
	"termosifoni/internal/middleware/security"
	"termosifoni/internal/middleware/trace"
	appweb "termosifoni/web"
)

// ReadingsStore is the record store as seen by the handlers.
type ReadingsStore interface {
	Snapshot(ctx context.Context) core.Collection
	Upsert(ctx context.Context, r core.Record) error
	Remove(ctx context.Context, month string) error
	ResetAll(ctx context.Context) error
	ImportMerge(ctx context.Context, in core.Collection) (core.MergeResult, error)
	Ping(ctx context.Context) error
}

// Options tunes NewServer. The zero value is usable.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int

	// Templates overrides the embedded templates directory.
	Templates fs.FS
	// Now overrides the clock used for the default form month.
	Now func() time.Time
}

type Server struct {
	http.Server
	store     ReadingsStore
	templates *template.Template
	logger    *log.Logger
	events    *log.StructuredLogger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	metrics   *metrics
	started   time.Time
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, store ReadingsStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	rl := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rl.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		store:    store,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
		limiter:  ratelimit.NewLimiter(rl),
		detector: security.NewDetector(),
		started:  time.Now(),
		now:      now,
	}
	s.metrics = newMetrics(store, s.limiter.ActiveClients)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger, s.metrics.observeRequest, "/healthz", "/readyz", "/metrics")

	tfs := opts.Templates
	if tfs == nil {
		tfs = appweb.TemplatesFS
	}
	t, err := template.ParseFS(tfs, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", s.metrics.handler())

	// UI partials
	mux.HandleFunc("/ui/history", s.handleHistory)
	mux.HandleFunc("/ui/chart", s.handleChart)

	// Mutations
	mux.HandleFunc("/readings", s.handleSaveReading)
	mux.HandleFunc("/readings/delete", s.handleDeleteReading)
	mux.HandleFunc("/readings/reset", s.handleReset)
	mux.HandleFunc("/import", s.handleImport)
	mux.HandleFunc("/export", s.handleExport)

	// JSON API
	mux.HandleFunc("/api/readings", s.handleAPIReadings)
	mux.HandleFunc("/api/chart", s.handleAPIChart)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(s.onSuspicious)(h)
	h = log.Middleware(logger, trace.RequestID)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.rateLimited.Inc()
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		Header("Retry-After", "60").
		BodyHTML(`<div class="error">Troppe richieste, riprova tra un minuto.</div>`).
		Write(w)
}

func (s *Server) onSuspicious(r *http.Request) {
	s.metrics.suspicious.Inc()
	s.logger.WarnContext(r.Context(), "Suspicious request",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldUserAgent, r.Header.Get("User-Agent"))
}

// Shutdown stops the background goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
