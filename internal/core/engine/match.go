package engine

import (
	"sort"
	"strings"

	"narrative/internal/core/narrative"
	"narrative/internal/core/normalize"
	"narrative/internal/core/rulepack"
)

// textMatches returns the spans a keyword, phrase or regex rule matches in
// the original segment text, ordered by start then longest first.
// Flag-kind rules match statements, not text, and yield nothing here
func (r *run) textMatches(c *rulepack.Compiled) []narrative.Span {
	text := r.seg.Text
	var out []narrative.Span

	switch c.Rule.Match.Kind {
	case rulepack.MatchKeyword:
		idx := r.e.keywords[c.Index]
		if idx == nil {
			return nil
		}
		for _, h := range idx.FindAll(text) {
			out = append(out, narrative.Span{Start: h.Start, End: h.End})
		}
	case rulepack.MatchPhrase, rulepack.MatchRegex:
		phrase := c.Rule.Match.Kind == rulepack.MatchPhrase
		for _, re := range c.Regexps {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				if loc[0] == loc[1] {
					continue
				}
				if phrase && !normalize.BoundaryOK(text, loc[0], loc[1]) {
					continue
				}
				out = append(out, narrative.Span{Start: loc[0], End: loc[1]})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End > out[j].End
	})
	return dedupe(out)
}

func dedupe(sps []narrative.Span) []narrative.Span {
	if len(sps) < 2 {
		return sps
	}
	out := sps[:1]
	for _, sp := range sps[1:] {
		if sp != out[len(out)-1] {
			out = append(out, sp)
		}
	}
	return out
}

// flaggedStatements returns the indexes of statements carrying any of the
// rule's flag patterns, in text order
func (r *run) flaggedStatements(c *rulepack.Compiled) []int {
	var out []int
	for i := range r.sts {
		for _, f := range c.Keys {
			if r.sts[i].HasFlag(f) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// exempt applies the rule's declarative exemptions: the words right after
// (or right before) the match equal one of the listed word sequences
func (r *run) exempt(c *rulepack.Compiled, sp narrative.Span) bool {
	if len(c.Following) == 0 && len(c.Preceding) == 0 {
		return false
	}
	ws := r.words
	next := sort.Search(len(ws), func(i int) bool { return ws[i].Start >= sp.End })
	prev := sort.Search(len(ws), func(i int) bool { return ws[i].End > sp.Start })

	for _, seq := range c.Following {
		if wordsAt(ws, next, seq) {
			return true
		}
	}
	for _, seq := range c.Preceding {
		if from := prev - len(seq); from >= 0 && wordsAt(ws, from, seq) {
			return true
		}
	}
	return false
}

func wordsAt(ws []normalize.Word, i int, seq []string) bool {
	if i < 0 || i+len(seq) > len(ws) {
		return false
	}
	for k, w := range seq {
		if ws[i+k].Lower != w {
			return false
		}
	}
	return true
}

// touches reports whether two spans overlap or are separated only by blanks
func (r *run) touches(a, b narrative.Span) bool {
	if a.Overlaps(b) {
		return true
	}
	if b.Start < a.Start {
		a, b = b, a
	}
	return strings.TrimSpace(r.seg.Text[a.End:b.Start]) == ""
}
