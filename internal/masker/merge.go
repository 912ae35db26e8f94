package masker

import (
	"cmp"
	"slices"
	"strings"
)

// dropPlaceholderOverlaps removes candidates that touch a placeholder token
// already present in text, so masked text can be fed back in without its
// tokens being re-detected.
func dropPlaceholderOverlaps(text string, cands []Candidate) []Candidate {
	locs := placeholderRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return cands
	}
	out := cands[:0]
	for _, c := range cands {
		hit := false
		for _, loc := range locs {
			if c.Overlaps(Span{Start: loc[0], End: loc[1]}) {
				hit = true
				break
			}
		}
		if !hit {
			out = append(out, c)
		}
	}
	return out
}

// merge resolves candidates into a non-overlapping sequence and builds the
// masked text in the same left-to-right pass.
//
// Candidates are ordered by start offset; at equal starts the lower priority
// (earlier-registered detector) comes first. A candidate starting before the
// end of the last accepted span is discarded. This is earliest-start-wins
// with no backtracking, so a short span starting first beats a longer one
// starting one byte later. It returns the result and the number of
// candidates discarded.
func merge(text string, cands []Candidate, offs *offsetMap) (Result, int) {
	slices.SortStableFunc(cands, func(a, b Candidate) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.Priority, b.Priority)
	})

	var sb strings.Builder
	sb.Grow(len(text))
	entities := make([]EntityRecord, 0, len(cands))
	last, discarded := 0, 0
	for _, c := range cands {
		if c.Start < last {
			discarded++
			continue
		}
		sb.WriteString(text[last:c.Start])
		sb.WriteString(c.Placeholder)
		entities = append(entities, EntityRecord{
			Position:       [2]int{offs.runeOffset(c.Start), offs.runeOffset(c.End)},
			Classification: c.Classification,
			Entity:         text[c.Start:c.End],
		})
		last = c.End
	}
	sb.WriteString(text[last:])
	return Result{MaskedText: sb.String(), Entities: entities}, discarded
}
