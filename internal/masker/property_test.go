package masker

import (
	"context"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// checkInvariants asserts ordering, non-overlap and that the records plus
// the original text rebuild the masked text exactly. text must be ASCII so
// record positions can slice it directly.
func checkInvariants(t *rapid.T, text string, res Result) {
	last := 0
	var sb strings.Builder
	for i, ent := range res.Entities {
		s, e := ent.Position[0], ent.Position[1]
		if s >= e {
			t.Fatalf("record %d has empty span %v", i, ent.Position)
		}
		if s < last {
			t.Fatalf("record %d at %d overlaps or precedes previous end %d", i, s, last)
		}
		if text[s:e] != ent.Entity {
			t.Fatalf("record %d entity %q != text slice %q", i, ent.Entity, text[s:e])
		}
		ph, ok := PlaceholderFor(ent.Classification)
		if !ok {
			t.Fatalf("record %d has unknown classification %q", i, ent.Classification)
		}
		sb.WriteString(text[last:s])
		sb.WriteString(ph)
		last = e
	}
	sb.WriteString(text[last:])
	if sb.String() != res.MaskedText {
		t.Fatalf("rebuilt %q != masked %q", sb.String(), res.MaskedText)
	}
}

func TestMaskPatternProperties(t *testing.T) {
	e := New()
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[A-Za-z0-9 @./_+\-]{0,80}`).Draw(t, "text")
		res, err := e.Mask(context.Background(), text)
		if err != nil {
			t.Fatalf("Mask: %v", err)
		}
		checkInvariants(t, text, res)
		if got := Demask(res.MaskedText, res.Entities); got != text {
			t.Fatalf("round trip: %q -> %q -> %q", text, res.MaskedText, got)
		}
	})
}

func TestMaskWithRecognizerProperties(t *testing.T) {
	categories := []string{"PERSON", "ORG", "GPE", "LOC", "DATE", "MONEY"}
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[A-Za-z0-9 @.]{1,60}`).Draw(t, "text")
		n := rapid.IntRange(0, 6).Draw(t, "n")
		recs := make([]Recognition, 0, n)
		for i := 0; i < n; i++ {
			start := rapid.IntRange(0, len(text)-1).Draw(t, "start")
			end := rapid.IntRange(start+1, len(text)).Draw(t, "end")
			cat := rapid.SampledFrom(categories).Draw(t, "category")
			recs = append(recs, Recognition{Start: start, End: end, Category: cat})
		}
		e := New(WithRecognizer(staticRecognizer(recs...)))
		res, err := e.Mask(context.Background(), text)
		if err != nil {
			t.Fatalf("Mask: %v", err)
		}
		checkInvariants(t, text, res)
		if got := Demask(res.MaskedText, res.Entities); got != text {
			t.Fatalf("round trip: %q -> %q -> %q", text, res.MaskedText, got)
		}
	})
}
