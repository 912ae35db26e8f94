package ner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"pii-masking-service/internal/logger"
	"pii-masking-service/internal/masker"
	"pii-masking-service/internal/metrics"
)

// CachingRecognizer memoizes another recognizer's output per exact text.
// Failures are never cached.
type CachingRecognizer struct {
	next    masker.Recognizer
	store   Store
	metrics *metrics.Metrics // nil = no metrics
	log     *logger.Logger
}

// NewCachingRecognizer wraps next with store.
func NewCachingRecognizer(next masker.Recognizer, store Store, m *metrics.Metrics, log *logger.Logger) *CachingRecognizer {
	return &CachingRecognizer{next: next, store: store, metrics: m, log: log}
}

// Recognize returns cached spans for text or calls the wrapped recognizer
// and caches its answer.
func (r *CachingRecognizer) Recognize(ctx context.Context, text string) ([]masker.Recognition, error) {
	key := cacheKey(text)
	if raw, ok := r.store.Get(key); ok {
		var recs []masker.Recognition
		if err := json.Unmarshal([]byte(raw), &recs); err == nil {
			r.metrics.RecordCacheHit()
			return recs, nil
		}
		r.log.Warn("cache_get", "dropping undecodable cache entry")
		r.store.Delete(key)
	}
	r.metrics.RecordCacheMiss()

	recs, err := r.next.Recognize(ctx, text)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(recs); err == nil {
		r.store.Set(key, string(raw))
	}
	return recs, nil
}

// Close closes the underlying store.
func (r *CachingRecognizer) Close() error { return r.store.Close() }

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
