// Package api serves the public masking endpoints.
//
// Endpoints:
//
//	POST /predict  - clean, mask and categorize an email {"email":"..."}
//	POST /mask     - mask text {"text":"..."}
//	POST /demask   - restore text {"masked_text":"...","entities":[...]} or {"id":"..."}
//	GET  /healthz  - liveness
//
// Errors are returned as {"error":"..."} with 400 for bad input, 413 for
// oversized bodies, 502 when the recognizer or classifier is unavailable
// and 500 otherwise.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"pii-masking-service/internal/category"
	"pii-masking-service/internal/config"
	"pii-masking-service/internal/logger"
	"pii-masking-service/internal/masker"
	"pii-masking-service/internal/metrics"
	"pii-masking-service/internal/vault"
)

// Store persists mask results for later demasking by id.
type Store interface {
	Save(ctx context.Context, res masker.Result) (string, error)
	Get(ctx context.Context, id string) (vault.Record, error)
}

// Server is the public API server.
type Server struct {
	cfg         *config.Config
	engine      *masker.Engine
	categorizer *category.Categorizer
	store       Store // nil = no vault
	metrics     *metrics.Metrics
	log         *logger.Logger
	http        *http.Server
}

// New creates an API server. store may be nil; a nil m gets a private
// Metrics instance.
func New(cfg *config.Config, engine *masker.Engine, cat *category.Categorizer, store Store, m *metrics.Metrics, log *logger.Logger) *Server {
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		cfg:         cfg,
		engine:      engine,
		categorizer: cat,
		store:       store,
		metrics:     m,
		log:         log,
	}
	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.APIPort)),
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	r.Use(cors(s.cfg.CORSOrigins))
	r.Use(middleware.RequestSize(s.cfg.MaxBodyBytes))

	r.Get("/healthz", s.handleHealth)
	r.Post("/predict", s.handlePredict)
	r.Post("/mask", s.handleMask)
	r.Post("/demask", s.handleDemask)
	return r
}

// ListenAndServe serves the API on the configured address. Cleartext
// HTTP/2 (h2c) is accepted alongside HTTP/1.1.
func (s *Server) ListenAndServe() error {
	s.log.Infof("listen", "serving on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// Shutdown gracefully stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"recognizer": s.engine.HasRecognizer(),
		"vault":      s.store != nil,
	})
}

// requestLog counts requests and logs one debug line per request.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RequestsTotal.Add(1)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debugf("request", "%s %s %d %s id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Microsecond),
			middleware.GetReqID(r.Context()))
	})
}
