// Package metrics provides lightweight, lock-minimal counters for the
// masking service.
//
// Counters use sync/atomic so request handling incurs no mutex contention.
// Latency statistics use a single mutex per dimension and are updated at
// most once per request.
//
// All Record methods are nil-safe so packages can accept a *Metrics that
// tests leave unset.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"pii-masking-service/internal/masker"
)

// Metrics holds all runtime counters for a running service instance.
// Use New; the zero value has no per-classification counters.
type Metrics struct {
	// Request counters
	RequestsTotal   atomic.Int64
	RequestsMask    atomic.Int64
	RequestsDemask  atomic.Int64
	RequestsPredict atomic.Int64

	// Error counters
	ErrorsBadRequest atomic.Int64
	ErrorsRecognizer atomic.Int64
	ErrorsClassifier atomic.Int64
	ErrorsVault      atomic.Int64

	// Entity volume
	EntitiesMasked    atomic.Int64
	RecordsDemasked   atomic.Int64
	RecordsUnresolved atomic.Int64

	// Recognizer result cache
	CacheHits   atomic.Int64
	CacheMisses atomic.Int64

	// Written only in New; concurrent reads need no lock.
	byClass map[string]*atomic.Int64

	maskMu   sync.Mutex
	maskStat latencyStats

	classifyMu   sync.Mutex
	classifyStat latencyStats

	startTime time.Time
}

// New returns Metrics with the start time recorded and one counter per
// classification the engine can emit.
func New() *Metrics {
	classes := masker.Classifications()
	m := &Metrics{
		startTime: time.Now(),
		byClass:   make(map[string]*atomic.Int64, len(classes)),
	}
	for _, c := range classes {
		m.byClass[c] = new(atomic.Int64)
	}
	return m
}

// RecordEntities counts one masking result. Unknown classifications are
// counted in the total only.
func (m *Metrics) RecordEntities(entities []masker.EntityRecord) {
	if m == nil {
		return
	}
	m.EntitiesMasked.Add(int64(len(entities)))
	for _, e := range entities {
		if c, ok := m.byClass[e.Classification]; ok {
			c.Add(1)
		}
	}
}

// RecordDemask counts one demask call.
func (m *Metrics) RecordDemask(records, unresolved int) {
	if m == nil {
		return
	}
	m.RecordsDemasked.Add(int64(records - unresolved))
	m.RecordsUnresolved.Add(int64(unresolved))
}

// RecordCacheHit counts a recognizer cache hit.
func (m *Metrics) RecordCacheHit() {
	if m != nil {
		m.CacheHits.Add(1)
	}
}

// RecordCacheMiss counts a recognizer cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m != nil {
		m.CacheMisses.Add(1)
	}
}

// RecordMaskLatency records the duration of one Mask call.
func (m *Metrics) RecordMaskLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.maskMu.Lock()
	m.maskStat.record(float64(d.Microseconds()) / 1000.0)
	m.maskMu.Unlock()
}

// RecordClassifyLatency records the round trip to the classifier.
func (m *Metrics) RecordClassifyLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.classifyMu.Lock()
	m.classifyStat.record(float64(d.Microseconds()) / 1000.0)
	m.classifyMu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON encoding.
func (m *Metrics) Snapshot() Snapshot {
	m.maskMu.Lock()
	mask := m.maskStat.snapshot()
	m.maskMu.Unlock()

	m.classifyMu.Lock()
	classify := m.classifyStat.snapshot()
	m.classifyMu.Unlock()

	byClass := make(map[string]int64, len(m.byClass))
	for c, n := range m.byClass {
		if v := n.Load(); v > 0 {
			byClass[c] = v
		}
	}

	return Snapshot{
		Requests: RequestSnapshot{
			Total:   m.RequestsTotal.Load(),
			Mask:    m.RequestsMask.Load(),
			Demask:  m.RequestsDemask.Load(),
			Predict: m.RequestsPredict.Load(),
		},
		Errors: ErrorSnapshot{
			BadRequest: m.ErrorsBadRequest.Load(),
			Recognizer: m.ErrorsRecognizer.Load(),
			Classifier: m.ErrorsClassifier.Load(),
			Vault:      m.ErrorsVault.Load(),
		},
		Entities: EntitySnapshot{
			Masked:           m.EntitiesMasked.Load(),
			Demasked:         m.RecordsDemasked.Load(),
			Unresolved:       m.RecordsUnresolved.Load(),
			ByClassification: byClass,
			CacheHits:        m.CacheHits.Load(),
			CacheMisses:      m.CacheMisses.Load(),
		},
		Latency: LatencyGroup{
			MaskMs:     mask,
			ClassifyMs: classify,
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// --- JSON-serialisable snapshot types ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Requests   RequestSnapshot `json:"requests"`
	Errors     ErrorSnapshot   `json:"errors"`
	Entities   EntitySnapshot  `json:"entities"`
	Latency    LatencyGroup    `json:"latency"`
	UptimeSecs float64         `json:"uptimeSecs"`
}

// RequestSnapshot holds request-level counters.
type RequestSnapshot struct {
	Total   int64 `json:"total"`
	Mask    int64 `json:"mask"`
	Demask  int64 `json:"demask"`
	Predict int64 `json:"predict"`
}

// ErrorSnapshot holds error counters.
type ErrorSnapshot struct {
	BadRequest int64 `json:"badRequest"`
	Recognizer int64 `json:"recognizer"`
	Classifier int64 `json:"classifier"`
	Vault      int64 `json:"vault"`
}

// EntitySnapshot holds entity volume and recognizer cache effectiveness.
type EntitySnapshot struct {
	Masked     int64 `json:"masked"`
	Demasked   int64 `json:"demasked"`
	Unresolved int64 `json:"unresolved"`

	// Only classifications with non-zero counts appear.
	ByClassification map[string]int64 `json:"byClassification,omitempty"`

	CacheHits   int64 `json:"cacheHits"`
	CacheMisses int64 `json:"cacheMisses"`
}

// LatencyGroup groups the latency dimensions.
type LatencyGroup struct {
	MaskMs     LatencySnapshot `json:"maskMs"`
	ClassifyMs LatencySnapshot `json:"classifyMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

// --- internal accumulator ---

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
