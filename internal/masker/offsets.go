package masker

import "unicode/utf8"

// offsetMap converts between byte offsets (used for slicing) and rune
// offsets (used on the wire). ASCII text needs no table.
type offsetMap struct {
	ascii  bool
	byteAt []int // rune index -> byte offset, len = runes+1
	runeAt map[int]int
}

func newOffsetMap(text string) *offsetMap {
	m := &offsetMap{ascii: isASCII(text)}
	if m.ascii {
		return m
	}
	n := utf8.RuneCountInString(text)
	m.byteAt = make([]int, 0, n+1)
	m.runeAt = make(map[int]int, n+1)
	for i := range text {
		m.runeAt[i] = len(m.byteAt)
		m.byteAt = append(m.byteAt, i)
	}
	m.runeAt[len(text)] = len(m.byteAt)
	m.byteAt = append(m.byteAt, len(text))
	return m
}

// runeOffset maps a byte offset on a rune boundary to a rune offset.
func (m *offsetMap) runeOffset(b int) int {
	if m.ascii {
		return b
	}
	return m.runeAt[b]
}

// byteOffset maps a rune offset to a byte offset; ok is false when r is out
// of range.
func (m *offsetMap) byteOffset(r, textLen int) (int, bool) {
	if m.ascii {
		return r, r >= 0 && r <= textLen
	}
	if r < 0 || r >= len(m.byteAt) {
		return 0, false
	}
	return m.byteAt[r], true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
