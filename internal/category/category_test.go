package category

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pii-masking-service/internal/logger"
)

func newService(t *testing.T, handler http.HandlerFunc) *HTTPClassifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClassifier(srv.URL, 2*time.Second, logger.Discard())
}

func TestHTTPClassifierLabels(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"number", `{"label": 3}`, "3"},
		{"string", `{"label": "Billing Issues"}`, "Billing Issues"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			clf := newService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/classify" {
					t.Errorf("path = %s", r.URL.Path)
				}
				var req map[string]string
				json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
				if req["text"] != "hi [full_name]" {
					t.Errorf("text = %q", req["text"])
				}
				w.Write([]byte(c.body)) //nolint:errcheck
			})
			got, err := clf.Classify(context.Background(), "hi [full_name]")
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != c.want {
				t.Errorf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestHTTPClassifierErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{`)) }},        //nolint:errcheck
		{"no label", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{}`)) }},       //nolint:errcheck
		{"bad label", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{"label":[1]}`)) }}, //nolint:errcheck
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := newService(t, c.handler).Classify(context.Background(), "x")
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "category_mapping.json")
	if err := os.WriteFile(path, []byte(`{"0":"Incident","1":"Request"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	l, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels: %v", err)
	}
	if l.Category("1") != "Request" || l.Category("7") != Unknown {
		t.Errorf("unexpected lookups: %q %q", l.Category("1"), l.Category("7"))
	}

	if _, err := LoadLabels(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte(`[1,2]`), 0o600) //nolint:errcheck // test setup
	if _, err := LoadLabels(bad); err == nil {
		t.Error("expected error for non-object JSON")
	}
}

func TestCategorizer(t *testing.T) {
	labels := Labels{"2": "Change"}
	fixed := func(label string) Classifier {
		return ClassifierFunc(func(context.Context, string) (string, error) { return label, nil })
	}

	if got, _ := NewCategorizer(fixed("2"), labels).Categorize(context.Background(), "x"); got != "Change" {
		t.Errorf("got %q", got)
	}
	if got, _ := NewCategorizer(fixed("9"), labels).Categorize(context.Background(), "x"); got != Unknown {
		t.Errorf("unmapped label: got %q", got)
	}
	if got, err := NewCategorizer(nil, labels).Categorize(context.Background(), "x"); err != nil || got != Unknown {
		t.Errorf("nil classifier: got %q err=%v", got, err)
	}

	failing := ClassifierFunc(func(context.Context, string) (string, error) { return "", ErrUnavailable })
	if _, err := NewCategorizer(failing, labels).Categorize(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected error to propagate, got %v", err)
	}
}
