// Package category assigns a category to masked message text using an
// external classifier and a label table.
//
// The classifier contract is:
//
//	POST <base>/classify  {"text": "<masked text>"}
//	200 {"label": 3}        (number or string)
//
// The label is then looked up in an id→category table loaded from JSON,
// e.g. {"0": "Billing", "1": "Technical"}. Labels missing from the table
// map to Unknown.
package category

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"pii-masking-service/internal/logger"
)

// Unknown is the category reported for labels outside the table.
const Unknown = "unknown"

// ErrUnavailable wraps every failure to obtain a label from the classifier.
var ErrUnavailable = errors.New("category: classifier unavailable")

// Classifier returns the raw label for a masked text.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (string, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Labels maps classifier labels to category names.
type Labels map[string]string

// LoadLabels reads a JSON object of label → category from path.
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("category: read labels: %w", err)
	}
	var l Labels
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("category: parse %s: %w", path, err)
	}
	return l, nil
}

// Category returns the category for label, or Unknown.
func (l Labels) Category(label string) string {
	if c, ok := l[label]; ok {
		return c
	}
	return Unknown
}

// HTTPClassifier calls a classifier service. Safe for concurrent use.
type HTTPClassifier struct {
	url  string
	http *http.Client
	log  *logger.Logger
}

// NewHTTPClassifier creates a classifier client for baseURL.
func NewHTTPClassifier(baseURL string, timeout time.Duration, log *logger.Logger) *HTTPClassifier {
	return &HTTPClassifier{
		url:  strings.TrimRight(baseURL, "/") + "/classify",
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// Classify posts text and returns the label the service predicts.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("%w: marshal: %w", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req) // #nosec G107 -- URL from trusted config
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on HTTP response body

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for keep-alive
		return "", fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var out struct {
		Label json.RawMessage `json:"label"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode: %w", ErrUnavailable, err)
	}
	label, err := labelString(out.Label)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.log.Debugf("classify", "label=%s", label)
	return label, nil
}

// labelString accepts a JSON string or number.
func labelString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("response has no label")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("label %s is neither string nor number", raw)
	}
	return n.String(), nil
}

// Categorizer combines a Classifier with its label table.
type Categorizer struct {
	classifier Classifier
	labels     Labels
}

// NewCategorizer returns a Categorizer. A nil classifier makes every
// message Unknown.
func NewCategorizer(c Classifier, labels Labels) *Categorizer {
	return &Categorizer{classifier: c, labels: labels}
}

// Categorize classifies masked text and maps the label to a category.
func (c *Categorizer) Categorize(ctx context.Context, masked string) (string, error) {
	if c == nil || c.classifier == nil {
		return Unknown, nil
	}
	label, err := c.classifier.Classify(ctx, masked)
	if err != nil {
		return "", err
	}
	return c.labels.Category(label), nil
}
