// Package masker detects PII spans in free text, replaces each with a
// placeholder token and records what it replaced so the text can be
// restored later.
//
// Detection has two independent sources that run in parallel:
//  1. A fixed, ordered set of regex rules (card numbers, phone numbers,
//     dates, email addresses, capitalized name pairs, ...).
//  2. An optional external named-entity recognizer, restricted to
//     PERSON, ORG, GPE and LOC.
//
// Overlapping detections are resolved greedily by start offset with rule
// order breaking ties. The engine holds no per-call state and is safe for
// concurrent use.
package masker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"pii-masking-service/internal/logger"
)

// Engine masks and demasks text.
type Engine struct {
	recognizer Recognizer
	fallback   bool
	log        *logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecognizer sets the named-entity recognizer. Without one the engine
// masks with pattern rules only.
func WithRecognizer(r Recognizer) Option {
	return func(e *Engine) { e.recognizer = r }
}

// WithPatternOnlyFallback makes Mask continue with pattern candidates when
// the recognizer fails instead of returning ErrRecognitionUnavailable.
func WithPatternOnlyFallback() Option {
	return func(e *Engine) { e.fallback = true }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{log: logger.Discard()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// HasRecognizer reports whether a recognizer is configured.
func (e *Engine) HasRecognizer() bool { return e.recognizer != nil }

// Mask detects PII in text and returns the masked text with one record per
// replaced span, sorted by position. Empty text is returned unchanged with
// no records. The only error is a wrapped ErrRecognitionUnavailable (or the
// context error if ctx is already done).
func (e *Engine) Mask(ctx context.Context, text string) (Result, error) {
	if text == "" {
		return Result{MaskedText: text, Entities: []EntityRecord{}}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	offs := newOffsetMap(text)

	var patternCands, nerCands []Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		patternCands = detectPatterns(text)
		return nil
	})
	if e.recognizer != nil {
		g.Go(func() error {
			recs, err := e.recognizer.Recognize(gctx, text)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrRecognitionUnavailable, err)
			}
			nerCands = adaptRecognitions(text, recs, offs, e.log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !e.fallback || !errors.Is(err, ErrRecognitionUnavailable) {
			return Result{}, err
		}
		e.log.Warnf("mask", "recognizer failed, masking with patterns only: %v", err)
		nerCands = nil
	}

	cands := make([]Candidate, 0, len(patternCands)+len(nerCands))
	cands = append(cands, patternCands...)
	cands = append(cands, nerCands...)
	cands = dropPlaceholderOverlaps(text, cands)

	res, discarded := merge(text, cands, offs)
	e.log.Debugf("mask", "%d candidates, %d accepted, %d overlapping discarded in %s",
		len(cands), len(res.Entities), discarded, time.Since(start))
	return res, nil
}

// Demask restores text masked by this engine. See the package-level Demask.
func (e *Engine) Demask(masked string, entities []EntityRecord) string {
	out, unresolved := DemaskDetailed(masked, entities)
	if len(unresolved) > 0 {
		e.log.Warnf("demask", "%d of %d records left unresolved", len(unresolved), len(entities))
	}
	return out
}
