package normalize

import (
	"strings"
	"unicode/utf8"
)

// Sanitize drops bytes that must never reach rendered output:
// invalid UTF-8, NUL, ASCII controls other than \n \r \t, DEL and C1 controls.
// Returns s unchanged (no allocation) when it is already clean
func Sanitize(s string) string {
	if clean(s) {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	return strings.Map(func(r rune) rune {
		if dropRune(r) {
			return -1
		}
		return r
	}, s)
}

func clean(s string) bool {
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			if dropRune(rune(c)) {
				return false
			}
			i++
			continue
		}
		r, sz := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && sz == 1) || dropRune(r) {
			return false
		}
		i += sz
	}
	return true
}

func dropRune(r rune) bool {
	switch {
	case r == '\n' || r == '\r' || r == '\t':
		return false
	case r < 0x20, r == 0x7F:
		return true
	case r >= 0x80 && r <= 0x9F:
		return true
	}
	return false
}
