// Package langhint gives a coarse script hint for a statement. The marker
// lexicons used by the classifier are English; statements written mostly in
// another script cannot be classified on them with any confidence
package langhint

import "unicode"

// scripts are checked in order; more specific scripts come first so mixed
// Japanese text is reported as kana rather than Han
var scripts = []struct {
	name  string
	table *unicode.RangeTable
}{
	{"Hiragana", unicode.Hiragana},
	{"Katakana", unicode.Katakana},
	{"Hangul", unicode.Hangul},
	{"Han", unicode.Han},
	{"Arabic", unicode.Arabic},
	{"Hebrew", unicode.Hebrew},
	{"Thai", unicode.Thai},
	{"Greek", unicode.Greek},
	{"Cyrillic", unicode.Cyrillic},
	{"Georgian", unicode.Georgian},
	{"Armenian", unicode.Armenian},
	{"Devanagari", unicode.Devanagari},
	{"Latin", unicode.Latin},
}

// Hint is the outcome of a script scan
type Hint struct {
	Script  string // predominant script, "" when s has no letters
	Letters int
	Latin   int
}

// LatinShare is the fraction of letters in Latin script
func (h Hint) LatinShare() float64 {
	if h.Letters == 0 {
		return 1
	}
	return float64(h.Latin) / float64(h.Letters)
}

// Detect counts letters per script and picks the predominant one.
// Ties go to the script listed first
func Detect(s string) Hint {
	counts := make([]int, len(scripts))
	var h Hint
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		h.Letters++
		for i, sc := range scripts {
			if unicode.Is(sc.table, r) {
				counts[i]++
				break
			}
		}
	}
	h.Latin = counts[len(counts)-1]
	best := -1
	for i, c := range counts {
		if c > 0 && (best < 0 || c > counts[best]) {
			best = i
		}
	}
	if best >= 0 {
		h.Script = scripts[best].name
	}
	return h
}

// NonLatin reports whether s is predominantly written in a non-Latin script
func NonLatin(s string) bool {
	h := Detect(s)
	return h.Script != "" && h.Script != "Latin"
}
