package masker

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// ErrRecognitionUnavailable is returned by Engine.Mask when the entity
// recognizer fails and the engine was not configured to fall back to
// pattern-only masking.
var ErrRecognitionUnavailable = errors.New("masker: recognition unavailable")

// Span is a half-open [Start, End) range of byte offsets into the text.
type Span struct {
	Start int
	End   int
}

// Len returns the span width in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool { return s.Start < o.End && o.Start < s.End }

// Candidate is a detected span that has not yet been reconciled with
// detections from other rules.
type Candidate struct {
	Span
	Classification string
	Placeholder    string
	// Priority is the rank of the detector that produced the candidate.
	// Pattern rules take 0..n-1 in declaration order; recognizer candidates
	// come after them.
	Priority int
}

// EntityRecord is one accepted, masked entity. Position holds character
// (rune) offsets into the text that was masked.
type EntityRecord struct {
	Position       [2]int `json:"position"`
	Classification string `json:"classification"`
	Entity         string `json:"entity"`
}

// Result is the output of Engine.Mask. MaskedText is only meaningful
// together with Entities; demasking needs both, in this order.
type Result struct {
	MaskedText string         `json:"masked_text"`
	Entities   []EntityRecord `json:"entities"`
}

// Classification labels produced by the pattern rules and the recognizer.
const (
	ClassCreditDebit = "credit_debit_no"
	ClassAadhar      = "aadhar_num"
	ClassCVV         = "cvv_no"
	ClassDOB         = "dob"
	ClassExpiry      = "expiry_no"
	ClassPhone       = "phone_number"
	ClassEmail       = "email"
	ClassFullName    = "full_name"
	ClassPerson      = "PERSON"
	ClassOrg         = "ORG"
	ClassGPE         = "GPE"
	ClassLoc         = "LOC"
)

// placeholders maps every classification the engine can emit to its token.
// PERSON is normally remapped to full_name but is kept so records produced
// by older callers still demask.
var placeholders = map[string]string{
	ClassEmail:       "[email]",
	ClassPhone:       "[phone_number]",
	ClassFullName:    "[full_name]",
	ClassDOB:         "[dob]",
	ClassAadhar:      "[aadhar_num]",
	ClassCreditDebit: "[credit_debit_no]",
	ClassCVV:         "[cvv_no]",
	ClassExpiry:      "[expiry_no]",
	ClassPerson:      "[person]",
	ClassOrg:         "[org]",
	ClassGPE:         "[gpe]",
	ClassLoc:         "[loc]",
}

// PlaceholderFor returns the placeholder token for a classification.
func PlaceholderFor(classification string) (string, bool) {
	p, ok := placeholders[classification]
	return p, ok
}

// Classifications returns every known classification, sorted.
func Classifications() []string {
	out := make([]string, 0, len(placeholders))
	for c := range placeholders {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// placeholderRe matches any placeholder token already present in a text.
var placeholderRe = func() *regexp.Regexp {
	tokens := make([]string, 0, len(placeholders))
	for _, c := range Classifications() {
		tokens = append(tokens, regexp.QuoteMeta(placeholders[c]))
	}
	return regexp.MustCompile(strings.Join(tokens, "|"))
}()
