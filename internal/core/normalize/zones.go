package normalize

import (
	"sort"
	"strings"
	"unicode/utf8"

	"narrative/internal/core/narrative"
)

// ZoneType identifies a quotation zone
type ZoneType string

const (
	// ZoneQuote is inline direct speech between double quotation marks
	ZoneQuote ZoneType = "quote"
	// ZoneBlockQuote is a line that starts with '>'
	ZoneBlockQuote ZoneType = "block_quote"
)

// ZoneSpan is a byte range [Start,End) over segment text.
// Inline quote spans include their quotation marks
type ZoneSpan struct {
	Type       ZoneType
	Start, End int
}

// Span returns the zone as a narrative span
func (z ZoneSpan) Span() narrative.Span { return narrative.Span{Start: z.Start, End: z.End} }

const (
	leftCurly  = '“'
	rightCurly = '”'
)

// DetectZones returns quotation zones in text order:
//   - straight double quotes pair up left to right
//   - curly quotes pair an opening U+201C with the next closing U+201D
//   - an unterminated quotation runs to the end of the text
//   - '>' lines (after leading blanks) up to the newline, outside inline quotes
//
// Zones never overlap
func DetectZones(s string) []ZoneSpan {
	if s == "" {
		return nil
	}
	var out []ZoneSpan

	open := -1
	var closer rune
	for i := 0; i < len(s); {
		r, sz := utf8.DecodeRuneInString(s[i:])
		switch {
		case open < 0 && (r == '"' || r == leftCurly):
			open = i
			closer = '"'
			if r == leftCurly {
				closer = rightCurly
			}
		case open >= 0 && r == closer:
			out = append(out, ZoneSpan{Type: ZoneQuote, Start: open, End: i + sz})
			open = -1
		}
		i += sz
	}
	if open >= 0 {
		out = append(out, ZoneSpan{Type: ZoneQuote, Start: open, End: len(s)})
	}

	inline := out
	lineStart := 0
	for lineStart < len(s) {
		lineEnd := strings.IndexByte(s[lineStart:], '\n')
		if lineEnd < 0 {
			lineEnd = len(s)
		} else {
			lineEnd += lineStart
		}
		i := lineStart
		for i < lineEnd && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i < lineEnd && s[i] == '>' {
			z := ZoneSpan{Type: ZoneBlockQuote, Start: i, End: lineEnd}
			if !overlapsAny(inline, z) {
				out = append(out, z)
			}
		}
		lineStart = lineEnd + 1
	}

	if len(out) > len(inline) {
		sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	}
	return out
}

// QuoteSpans returns the zones as spans, in order
func QuoteSpans(s string) []narrative.Span {
	zs := DetectZones(s)
	if len(zs) == 0 {
		return nil
	}
	out := make([]narrative.Span, len(zs))
	for i, z := range zs {
		out[i] = z.Span()
	}
	return out
}

// InZone reports whether byte offset pos lies inside any zone
func InZone(zs []ZoneSpan, pos int) bool {
	for _, z := range zs {
		if pos >= z.Start && pos < z.End {
			return true
		}
	}
	return false
}

func overlapsAny(zs []ZoneSpan, z ZoneSpan) bool {
	for _, o := range zs {
		if z.Start < o.End && o.Start < z.End {
			return true
		}
	}
	return false
}
