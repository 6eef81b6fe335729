// Package normalize provides the deterministic text helpers shared by the
// pipeline stages
//
// Two projections exist and they must agree byte for byte on ASCII input
//   - Fold lowercases segment text without moving any offset, so matches found
//     on the folded copy index straight into the original
//   - Key prepares rule patterns and lexicon terms: NFC, format characters
//     stripped, same-width lowercase, whitespace collapsed and trimmed
//
// Inserted renders replacement text for the renderer
package normalize

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// pools of fresh transformer chains; chains carry state so they are not shared
var (
	keyPool = sync.Pool{
		New: func() any {
			return transform.Chain(
				norm.NFC,
				runes.Remove(runes.In(unicode.Cf)), // ZWJ ZWNJ FEFF and friends
			)
		},
	}
	insertPool = sync.Pool{
		New: func() any {
			return transform.Chain(
				runes.Remove(runes.In(unicode.Cf)),
				width.Fold, // fullwidth forms pasted into templates
				norm.NFC,
			)
		},
	}
)

func run(p *sync.Pool, s string) string {
	tr := p.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	p.Put(tr)
	if err != nil {
		return s
	}
	return out
}

// Key returns the matching key for a pattern or lexicon term
func Key(s string) string {
	if s == "" {
		return ""
	}
	s = Sanitize(s)
	s = run(&keyPool, s)
	return CollapseSpace(strings.TrimSpace(Fold(s)))
}

// Fold lowercases s rune by rune, keeping any rune whose lowercase form has a
// different encoded width. len(Fold(s)) == len(s) always holds
func Fold(s string) string {
	i := 0
	for i < len(s) {
		c := s[i]
		if c < utf8.RuneSelf {
			if 'A' <= c && c <= 'Z' {
				break
			}
			i++
			continue
		}
		r, sz := utf8.DecodeRuneInString(s[i:])
		if l := unicode.ToLower(r); l != r && utf8.RuneLen(l) == sz {
			break
		}
		i += sz
	}
	if i == len(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:i])
	for i < len(s) {
		c := s[i]
		if c < utf8.RuneSelf {
			if 'A' <= c && c <= 'Z' {
				c += 'a' - 'A'
			}
			b.WriteByte(c)
			i++
			continue
		}
		r, sz := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && sz == 1 {
			b.WriteByte(s[i])
			i++
			continue
		}
		if l := unicode.ToLower(r); utf8.RuneLen(l) == sz {
			r = l
		}
		b.WriteRune(r)
		i += sz
	}
	return b.String()
}

// Inserted prepares substituted text: sanitized, NFC, whitespace runs collapsed.
// Edges are kept so templates can carry a deliberate leading or trailing space
func Inserted(s string) string {
	if s == "" {
		return ""
	}
	return CollapseSpace(run(&insertPool, Sanitize(s)))
}

// CollapseSpace converts every whitespace run to a single ASCII space
func CollapseSpace(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inWS {
				b.WriteByte(' ')
			}
			inWS = true
			continue
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}
