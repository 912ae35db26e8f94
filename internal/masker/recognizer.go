package masker

import (
	"context"
	"strings"

	"pii-masking-service/internal/logger"
)

// Recognition is one labeled span reported by a named-entity recognizer.
// Start and End are character (rune) offsets into the text that was sent.
type Recognition struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Category string `json:"label"`
}

// Recognizer is the external named-entity capability the engine calls.
// Implementations must be safe for concurrent use if the engine is.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Recognition, error)
}

// RecognizerFunc adapts a plain function to Recognizer.
type RecognizerFunc func(ctx context.Context, text string) ([]Recognition, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, text string) ([]Recognition, error) {
	return f(ctx, text)
}

// acceptedCategories are the recognizer labels the engine masks.
var acceptedCategories = map[string]bool{
	ClassPerson: true,
	ClassOrg:    true,
	ClassGPE:    true,
	ClassLoc:    true,
}

// adaptRecognitions converts recognizer output to candidates ranked after
// every pattern rule, preserving recognizer order. Unaccepted categories and
// spans that do not fit the text are dropped.
func adaptRecognitions(text string, recs []Recognition, offs *offsetMap, log *logger.Logger) []Candidate {
	base := len(rules)
	out := make([]Candidate, 0, len(recs))
	for i, r := range recs {
		if !acceptedCategories[r.Category] {
			continue
		}
		start, okStart := offs.byteOffset(r.Start, len(text))
		end, okEnd := offs.byteOffset(r.End, len(text))
		if !okStart || !okEnd || start >= end {
			log.Debugf("adapt", "dropping %s span [%d,%d): outside text", r.Category, r.Start, r.End)
			continue
		}
		class := r.Category
		if class == ClassPerson {
			class = ClassFullName
		}
		out = append(out, Candidate{
			Span:           Span{Start: start, End: end},
			Classification: class,
			Placeholder:    "[" + strings.ToLower(class) + "]",
			Priority:       base + i,
		})
	}
	return out
}
