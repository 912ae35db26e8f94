package masker

import "strings"

// Clean collapses every whitespace run to a single space and trims the
// ends. With lowercase set, ASCII letters are folded too; non-ASCII runes
// are left alone so the folded text has the same length as the input.
func Clean(text string, lowercase bool) string {
	if lowercase {
		text = foldASCII(text)
	}
	return strings.Join(strings.Fields(text), " ")
}

func foldASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; 'A' <= c && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if 'A' <= b[j] && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}
