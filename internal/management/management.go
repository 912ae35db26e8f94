// Package management provides a lightweight HTTP API for runtime inspection
// and maintenance of the running masking service.
//
// Endpoints:
//
//	GET  /status        - service health and which collaborators are wired
//	GET  /metrics       - counters and latency summary
//	POST /vault/purge   - delete vault entries older than {"olderThanHours":N}
//	POST /loglevel      - change the log level {"level":"debug"}
package management

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pii-masking-service/internal/config"
	"pii-masking-service/internal/logger"
	"pii-masking-service/internal/metrics"
)

// Purger removes stored mask results older than a given age.
type Purger interface {
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Server is the management API server.
type Server struct {
	cfg       *config.Config
	startTime time.Time
	token     string           // bearer token for auth; empty = no auth
	metrics   *metrics.Metrics // nil = no metrics
	vault     Purger           // nil = no vault
	log       *logger.Logger
	http      *http.Server
}

// New creates a management server. m and vault may be nil.
func New(cfg *config.Config, m *metrics.Metrics, vault Purger, log *logger.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
		token:     cfg.ManagementToken,
		metrics:   m,
		vault:     vault,
		log:       log,
	}
	s.http = &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.ManagementPort)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.token != "" {
		log.Info("init", "bearer token authentication enabled")
	}
	return s
}

// Handler returns the HTTP handler for the management API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST /vault/purge", s.handlePurge)
	mux.HandleFunc("POST /loglevel", s.handleLogLevel)
	return s.authMiddleware(mux)
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			s.log.Warnf("auth", "unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type collaborator struct {
		Endpoint string `json:"endpoint,omitempty"`
		Enabled  bool   `json:"enabled"`
	}
	type response struct {
		Status     string       `json:"status"`
		Uptime     string       `json:"uptime"`
		APIPort    int          `json:"apiPort"`
		LogLevel   string       `json:"logLevel"`
		Recognizer collaborator `json:"recognizer"`
		Fallback   bool         `json:"patternOnlyFallback"`
		Classifier collaborator `json:"classifier"`
		Vault      bool         `json:"vault"`
	}

	writeJSON(w, http.StatusOK, response{
		Status:     "running",
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		APIPort:    s.cfg.APIPort,
		LogLevel:   s.log.Level().String(),
		Recognizer: collaborator{Endpoint: s.cfg.NEREndpoint, Enabled: s.cfg.NEREndpoint != ""},
		Fallback:   s.cfg.AllowPatternOnly,
		Classifier: collaborator{Endpoint: s.cfg.ClassifierEndpoint, Enabled: s.cfg.ClassifierEndpoint != ""},
		Vault:      s.vault != nil,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if s.vault == nil {
		http.Error(w, "vault not enabled", http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1024)
	var req struct {
		OlderThanHours int `json:"olderThanHours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OlderThanHours < 0 {
		http.Error(w, "invalid request: need {\"olderThanHours\":N}", http.StatusBadRequest)
		return
	}
	n, err := s.vault.PurgeOlderThan(r.Context(), time.Duration(req.OlderThanHours)*time.Hour)
	if err != nil {
		s.log.Errorf("purge", "%v", err)
		http.Error(w, "purge failed", http.StatusInternalServerError)
		return
	}
	s.log.Infof("purge", "removed %d vault entries older than %dh", n, req.OlderThanHours)
	writeJSON(w, http.StatusOK, map[string]int64{"purged": n})
}

func (s *Server) handleLogLevel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1024)
	var req struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request: need {\"level\":\"...\"}", http.StatusBadRequest)
		return
	}
	switch strings.ToLower(req.Level) {
	case "debug", "info", "warn", "error":
	default:
		http.Error(w, "level must be one of debug, info, warn, error", http.StatusBadRequest)
		return
	}
	s.log.SetLevel(req.Level)
	s.log.Infof("loglevel", "log level set to %s", s.log.Level())
	writeJSON(w, http.StatusOK, map[string]string{"level": s.log.Level().String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

// ListenAndServe starts the management HTTP server. It always binds to
// loopback regardless of the API bind address.
func (s *Server) ListenAndServe() error {
	s.log.Infof("listen", "listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("management: %w", err)
	}
	return nil
}

// Shutdown gracefully stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
