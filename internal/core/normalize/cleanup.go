package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// junction punctuation handled by TidyJoin
const (
	stopPunct  = ".!?"
	pausePunct = ",;:"
)

func isJoinPunct(r rune) bool { return strings.ContainsRune(stopPunct+pausePunct, r) }

// TidyJoin cleans the junction where substituted text meets its neighbour.
// It only ever trims whitespace or drops one punctuation rune at the seam:
//   - a space run on both sides keeps one space
//   - spaces before a leading punctuation rune are dropped
//   - doubled punctuation keeps the stronger rune (sentence end beats pause)
func TidyJoin(left, right string) (string, string) {
	if left == "" {
		return left, right
	}
	if endsSpace(left) && startsSpace(right) {
		right = strings.TrimLeftFunc(right, unicode.IsSpace)
	}
	if r, _ := utf8.DecodeRuneInString(right); isJoinPunct(r) && endsSpace(left) {
		left = strings.TrimRightFunc(left, unicode.IsSpace)
	}

	l, lsz := utf8.DecodeLastRuneInString(left)
	r, rsz := utf8.DecodeRuneInString(right)
	if !isJoinPunct(l) || !isJoinPunct(r) {
		return left, right
	}
	if strings.ContainsRune(pausePunct, l) && strings.ContainsRune(stopPunct, r) {
		return left[:len(left)-lsz], right
	}
	return left, right[rsz:]
}

// PauseOnly reports whether s holds pause punctuation and nothing else
// but whitespace
func PauseOnly(s string) bool {
	seen := false
	for _, r := range s {
		switch {
		case strings.ContainsRune(pausePunct, r):
			seen = true
		case !unicode.IsSpace(r):
			return false
		}
	}
	return seen
}

// StopSuffix returns the byte length of the sentence-ending punctuation run
// closing s, trailing whitespace excluded
func StopSuffix(s string) int {
	t := strings.TrimRightFunc(s, unicode.IsSpace)
	return len(t) - len(strings.TrimRight(t, stopPunct))
}

func endsSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return s != "" && unicode.IsSpace(r)
}

func startsSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return s != "" && unicode.IsSpace(r)
}

// consonant-sound openings despite a vowel letter, and the reverse
var (
	vowelLetterConsonantSound = []string{"one", "once", "uni", "use", "usu", "uti", "eu", "ewe", "ura"}
	silentH                   = []string{"hour", "honest", "honor", "honour", "heir"}
)

// VowelSound reports whether the first word of s takes "an"
func VowelSound(s string) bool {
	s = strings.TrimLeftFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	if s == "" {
		return false
	}
	w := strings.ToLower(s)
	for _, p := range silentH {
		if strings.HasPrefix(w, p) {
			return true
		}
	}
	for _, p := range vowelLetterConsonantSound {
		if strings.HasPrefix(w, p) {
			return false
		}
	}
	return strings.ContainsRune("aeiou", rune(w[0]))
}

// AgreeBefore fixes a trailing indefinite article in left so it agrees with
// the word that opens next. left is returned unchanged when it does not end
// with "a " or "an "
func AgreeBefore(left, next string) string {
	body := strings.TrimRightFunc(left, unicode.IsSpace)
	tail := left[len(body):]
	if tail == "" || strings.TrimSpace(next) == "" {
		return left
	}
	i := strings.LastIndexFunc(body, func(r rune) bool { return !unicode.IsLetter(r) })
	word := body[i+1:]
	want := article(word, VowelSound(next))
	if want == "" || want == word {
		return left
	}
	return body[:i+1] + want + tail
}

// article returns the agreeing form of an indefinite article, keeping its case,
// or "" when word is not an article
func article(word string, vowel bool) string {
	switch word {
	case "a", "an":
		if vowel {
			return "an"
		}
		return "a"
	case "A", "An", "AN":
		if vowel {
			return "An"
		}
		return "A"
	}
	return ""
}

// AgreeArticles applies AgreeBefore to every article inside s
func AgreeArticles(s string) string {
	fields := strings.SplitAfter(s, " ")
	if len(fields) < 2 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, f := range fields {
		if i+1 < len(fields) {
			f = AgreeBefore(f, fields[i+1])
		}
		b.WriteString(f)
	}
	return b.String()
}
