package masker

import "strings"

// Demask restores the original text from masked text and the records Mask
// returned, in the order Mask returned them. Records whose classification
// has no placeholder are skipped and their token stays in the output.
func Demask(masked string, entities []EntityRecord) string {
	out, _ := DemaskDetailed(masked, entities)
	return out
}

// DemaskDetailed is Demask that also reports the indexes of records it could
// not restore: unknown classification, or no remaining occurrence of the
// placeholder.
//
// Each record replaces the leftmost occurrence of its placeholder in the
// running text, once. This relies on placeholders appearing in masked text
// in record order. If the original text already contained a literal
// placeholder token before an entity of the same classification, that
// literal is consumed first and the restore is wrong; Mask leaves such
// tokens unmasked, so callers that care must check for them up front.
func DemaskDetailed(masked string, entities []EntityRecord) (string, []int) {
	restored := masked
	var unresolved []int
	for i, ent := range entities {
		ph, ok := placeholders[ent.Classification]
		if !ok {
			unresolved = append(unresolved, i)
			continue
		}
		idx := strings.Index(restored, ph)
		if idx < 0 {
			unresolved = append(unresolved, i)
			continue
		}
		restored = restored[:idx] + ent.Entity + restored[idx+len(ph):]
	}
	return restored, unresolved
}
