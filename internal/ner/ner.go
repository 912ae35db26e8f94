// Package ner connects the masking engine to an external named-entity
// recognition sidecar over HTTP, optionally behind a persistent result
// cache.
//
// The sidecar contract is a single endpoint:
//
//	POST <base>/recognize  {"text": "..."}
//	200 {"entities": [{"start": 0, "end": 4, "label": "PERSON"}, ...]}
//
// Offsets are character offsets into the text as sent. Unlike a
// best-effort sanitizer, every failure here is returned to the caller: the
// engine decides whether masking may continue without the recognizer.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pii-masking-service/internal/logger"
	"pii-masking-service/internal/masker"
)

// maxResponseBytes caps how much of a sidecar response is read.
const maxResponseBytes = 10 << 20

// Client calls the recognizer sidecar. It is safe for concurrent use.
type Client struct {
	url  string
	http *http.Client
	log  *logger.Logger
}

// New creates a Client for the sidecar at baseURL
// (e.g. "http://ner-sidecar:8001"). timeout bounds each call in addition to
// the caller's context.
func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		url:  strings.TrimRight(baseURL, "/") + "/recognize",
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

type recognizeRequest struct {
	Text string `json:"text"`
}

type recognizeResponse struct {
	Entities []masker.Recognition `json:"entities"`
}

// Recognize sends text to the sidecar and returns its labeled spans.
func (c *Client) Recognize(ctx context.Context, text string) ([]masker.Recognition, error) {
	body, err := json.Marshal(recognizeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("ner: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req) // #nosec G107 -- URL from trusted config
	if err != nil {
		return nil, fmt.Errorf("ner: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on HTTP response body

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for keep-alive
		return nil, fmt.Errorf("ner: unexpected status %d", resp.StatusCode)
	}

	var out recognizeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("ner: decode: %w", err)
	}
	c.log.Debugf("recognize", "%d spans in %s", len(out.Entities), time.Since(start).Round(time.Millisecond))
	return out.Entities, nil
}
