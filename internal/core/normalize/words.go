package normalize

import (
	"unicode"
	"unicode/utf8"
)

// Word is a word token with its byte span in the source text.
// Lower is the folded form used for lexicon lookups
type Word struct {
	Start, End int
	Lower      string
}

// IsWordRune reports whether r is a word character for boundary checks:
// letters, numbers, combining marks (Mn) and connector punctuation (Pc).
// Hyphen and apostrophe are joiners, not word characters
func IsWordRune(r rune) bool {
	if r == utf8.RuneError || r == 0 {
		return false
	}
	return unicode.IsLetter(r) ||
		unicode.IsNumber(r) ||
		unicode.In(r, unicode.Mn, unicode.Pc)
}

func isJoiner(r rune) bool { return r == '-' || r == '\'' || r == '’' }

// BoundaryOK reports whether [start,end) sits on word boundaries in s
func BoundaryOK(s string, start, end int) bool {
	var prev, next rune
	if start > 0 {
		prev, _ = utf8.DecodeLastRuneInString(s[:start])
	}
	if end < len(s) {
		next, _ = utf8.DecodeRuneInString(s[end:])
	}
	return !IsWordRune(prev) && !IsWordRune(next)
}

// Words splits s into word tokens. A hyphen or apostrophe between two word
// characters joins them ("cover-up", "didn't")
func Words(s string) []Word {
	var out []Word
	start := -1
	for i := 0; i < len(s); {
		r, sz := utf8.DecodeRuneInString(s[i:])
		switch {
		case IsWordRune(r):
			if start < 0 {
				start = i
			}
		case start >= 0 && isJoiner(r) && i+sz < len(s):
			if nr, _ := utf8.DecodeRuneInString(s[i+sz:]); !IsWordRune(nr) {
				out = append(out, word(s, start, i))
				start = -1
			}
		case start >= 0:
			out = append(out, word(s, start, i))
			start = -1
		}
		i += sz
	}
	if start >= 0 {
		out = append(out, word(s, start, len(s)))
	}
	return out
}

func word(s string, start, end int) Word {
	return Word{Start: start, End: end, Lower: Fold(s[start:end])}
}
