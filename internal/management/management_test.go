package management

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pii-masking-service/internal/config"
	"pii-masking-service/internal/logger"
	"pii-masking-service/internal/masker"
	"pii-masking-service/internal/metrics"
)

func testConfig() *config.Config {
	return &config.Config{
		APIPort:            7860,
		ManagementPort:     7861,
		NEREndpoint:        "http://ner:8001",
		AllowPatternOnly:   true,
		ClassifierEndpoint: "",
	}
}

type fakePurger struct {
	age time.Duration
	n   int64
	err error
}

func (p *fakePurger) PurgeOlderThan(_ context.Context, age time.Duration) (int64, error) {
	p.age = age
	return p.n, p.err
}

func newTestServer(token string) *Server {
	cfg := testConfig()
	cfg.ManagementToken = token
	return New(cfg, metrics.New(), nil, logger.Discard())
}

func do(s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestStatus_OK(t *testing.T) {
	w := do(newTestServer(""), http.MethodGet, "/status", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp["status"] != "running" {
		t.Errorf("expected status=running, got %v", resp["status"])
	}
	rec, _ := resp["recognizer"].(map[string]any)
	if rec["enabled"] != true || rec["endpoint"] != "http://ner:8001" {
		t.Errorf("recognizer block: %v", rec)
	}
	if clf, _ := resp["classifier"].(map[string]any); clf["enabled"] != false {
		t.Errorf("classifier block: %v", clf)
	}
	if resp["patternOnlyFallback"] != true || resp["vault"] != false {
		t.Errorf("unexpected flags: %v", resp)
	}
}

func TestAuth(t *testing.T) {
	cases := []struct {
		name, configured, sent string
		want                   int
	}{
		{"no token configured", "", "", http.StatusOK},
		{"valid token", "secret123", "secret123", http.StatusOK},
		{"invalid token", "secret123", "wrong", http.StatusUnauthorized},
		{"missing token", "secret123", "", http.StatusUnauthorized},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if w := do(newTestServer(c.configured), http.MethodGet, "/status", "", c.sent); w.Code != c.want {
				t.Errorf("expected %d, got %d", c.want, w.Code)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	m.RequestsMask.Add(3)
	m.RecordEntities([]masker.EntityRecord{{Classification: masker.ClassEmail}})
	s := New(testConfig(), m, nil, logger.Discard())

	w := do(s, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap metrics.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if snap.Requests.Mask != 3 || snap.Entities.ByClassification[masker.ClassEmail] != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestMetrics_Disabled(t *testing.T) {
	s := New(testConfig(), nil, nil, logger.Discard())
	if w := do(s, http.MethodGet, "/metrics", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestPurge(t *testing.T) {
	p := &fakePurger{n: 4}
	s := New(testConfig(), nil, p, logger.Discard())

	w := do(s, http.MethodPost, "/vault/purge", `{"olderThanHours":24}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if p.age != 24*time.Hour {
		t.Errorf("purge age = %s", p.age)
	}
	if !strings.Contains(w.Body.String(), `"purged":4`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestPurge_Errors(t *testing.T) {
	if w := do(newTestServer(""), http.MethodPost, "/vault/purge", `{"olderThanHours":1}`, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no vault: expected 503, got %d", w.Code)
	}

	s := New(testConfig(), nil, &fakePurger{}, logger.Discard())
	for _, body := range []string{`{"olderThanHours":-1}`, `not json`} {
		if w := do(s, http.MethodPost, "/vault/purge", body, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
	}

	s = New(testConfig(), nil, &fakePurger{err: errors.New("locked")}, logger.Discard())
	if w := do(s, http.MethodPost, "/vault/purge", `{"olderThanHours":1}`, ""); w.Code != http.StatusInternalServerError {
		t.Errorf("purge failure: expected 500, got %d", w.Code)
	}
}

func TestPurge_WrongMethod(t *testing.T) {
	s := New(testConfig(), nil, &fakePurger{}, logger.Discard())
	if w := do(s, http.MethodGet, "/vault/purge", "", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestLogLevel(t *testing.T) {
	log := logger.Discard()
	s := New(testConfig(), nil, nil, log)

	w := do(s, http.MethodPost, "/loglevel", `{"level":"debug"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if log.Level() != logger.LevelDebug {
		t.Errorf("level = %s", log.Level())
	}

	if w := do(s, http.MethodPost, "/loglevel", `{"level":"verbose"}`, ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown level, got %d", w.Code)
	}
}
