// Package render rebuilds output text by replaying ledger decisions over the
// original segment text. It performs no analysis of its own: a span no
// decision covers is copied through unchanged
package render

import (
	"sort"
	"strings"
	"unicode"

	"narrative/internal/core/ledger"
	"narrative/internal/core/narrative"
	"narrative/internal/core/normalize"
	"narrative/internal/core/rulepack"
)

type edit struct {
	span narrative.Span
	text string
	seq  int
}

// plan turns a segment's decisions into non-overlapping edits. Statement
// removals come first; among the rest the earlier recorded decision wins.
// Decisions with offsets outside the text are ignored
func plan(text string, sts []narrative.Statement, ds []ledger.Decision) ([]edit, []narrative.Span) {
	var (
		protected []narrative.Span
		removals  []narrative.Span
		edits     []edit
	)
	for _, d := range ds {
		sp := d.Span()
		if sp.Start < 0 || sp.End > len(text) || sp.Start > sp.End {
			continue
		}
		switch d.Action {
		case rulepack.ActionPreserve:
			protected = append(protected, sp)
		case rulepack.ActionRemove:
			edits = append(edits, edit{span: sp, seq: d.Seq})
		case rulepack.ActionReplace, rulepack.ActionReframe:
			edits = append(edits, edit{span: sp, text: d.Text, seq: d.Seq})
		case rulepack.ActionQuarantine:
			if i := indexOf(sts, d.OwnerID); i >= 0 {
				removals = append(removals, removal(text, sts, i, protected))
			}
		}
	}

	var accepted []edit
	for _, sp := range mergeSpans(removals) {
		accepted = append(accepted, edit{span: sp, seq: -1})
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].seq < edits[j].seq })
	for _, ed := range edits {
		if overlapsAny(protected, ed.span) || overlapsEdit(accepted, ed.span) {
			continue
		}
		accepted = append(accepted, ed)
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].span.Start < accepted[j].span.Start })
	return accepted, protected
}

// removal is the range dropped with quarantined statement i: the statement
// and the gap before it, or the gap after it for the first statement. A last
// statement leaves its closing stop punctuation to the text before it
func removal(text string, sts []narrative.Statement, i int, protected []narrative.Span) narrative.Span {
	st := sts[i].Span()
	var sp narrative.Span
	switch {
	case len(sts) == 1:
		sp = narrative.Span{Start: 0, End: len(text)}
	case i > 0:
		sp = narrative.Span{Start: sts[i-1].EndChar, End: st.End}
	default:
		sp = narrative.Span{Start: st.Start, End: sts[i+1].StartChar}
	}
	if overlapsAny(protected, sp) {
		sp = st
	}
	if i > 0 && i == len(sts)-1 {
		sp.End -= normalize.StopSuffix(text[sp.Start:sp.End])
	}
	return sp
}

func mergeSpans(sps []narrative.Span) []narrative.Span {
	if len(sps) == 0 {
		return nil
	}
	sort.Slice(sps, func(i, j int) bool { return sps[i].Start < sps[j].Start })
	out := []narrative.Span{sps[0]}
	for _, sp := range sps[1:] {
		last := &out[len(out)-1]
		if sp.Start <= last.End {
			*last = last.Union(sp)
			continue
		}
		out = append(out, sp)
	}
	return out
}

// replay applies edits to text, cleaning only the seams around them.
// A seam touching a protected range is left exactly as it is
func replay(text string, edits []edit, protected []narrative.Span) string {
	var out string
	pos := 0
	for k, ed := range edits {
		out += text[pos:ed.span.Start]
		leftFree := !endsAt(protected, ed.span.Start)
		rightFree := !startsAt(protected, ed.span.End)

		if ins := normalize.AgreeArticles(ed.text); ins != "" {
			if leftFree {
				out = normalize.AgreeBefore(out, ins)
				l, r := normalize.TidyJoin(out, ins)
				out = l + r
			} else {
				out += ins
			}
		}

		// seam cleanup never reaches into the next edit
		limit, final := len(text), k+1 == len(edits)
		if !final {
			limit = edits[k+1].span.Start
		}
		pos = ed.span.End
		// after a removal the right seam also joins the left neighbour
		if !rightFree || (ed.text == "" && !leftFree) {
			continue
		}
		rest := text[ed.span.End:limit]
		// punctuation stranded between two removals goes with them
		if !final && ed.text == "" && edits[k+1].text == "" && normalize.PauseOnly(rest) {
			pos = limit
			continue
		}
		out = normalize.AgreeBefore(out, rest)
		l, r := normalize.TidyJoin(out, rest)
		if out == "" || (ed.text == "" && strings.TrimSpace(out) == "") {
			r = strings.TrimLeftFunc(r, unicode.IsSpace)
		}
		if final && strings.TrimSpace(r) == "" {
			l = strings.TrimRightFunc(l, unicode.IsSpace)
			r = ""
		}
		out = l
		pos += len(rest) - len(r)
	}
	return out + text[pos:]
}

// Segment renders one segment from its decisions. Quarantined statements are
// dropped whole; sts must be the segment's statements in text order
func Segment(seg narrative.Segment, sts []narrative.Statement, ds []ledger.Decision) string {
	edits, protected := plan(seg.Text, sts, ds)
	if len(edits) == 0 {
		return seg.Text
	}
	return replay(seg.Text, edits, protected)
}

// Attribute sets AttributedText on every statement that a text-changing
// decision touched, rendered from the decisions inside its span. Aberrated
// statements never carry attributed text
func Attribute(seg narrative.Segment, sts []narrative.Statement, ds []ledger.Decision) {
	edits, protected := plan(seg.Text, sts, ds)
	for i := range sts {
		st := &sts[i]
		if st.IsAberrated {
			st.AttributedText = nil
			continue
		}
		sp := st.Span()
		var local []edit
		for _, ed := range edits {
			if ed.seq >= 0 && sp.Contains(ed.span) {
				local = append(local, edit{span: shift(ed.span, -sp.Start), text: ed.text, seq: ed.seq})
			}
		}
		if len(local) == 0 {
			continue
		}
		var prot []narrative.Span
		for _, p := range protected {
			if sp.Contains(p) {
				prot = append(prot, shift(p, -sp.Start))
			}
		}
		s := replay(st.Text, local, prot)
		st.AttributedText = &s
	}
}

// Join concatenates rendered segments, skipping empty ones
func Join(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, " ")
}

func shift(sp narrative.Span, by int) narrative.Span {
	return narrative.Span{Start: sp.Start + by, End: sp.End + by}
}

func indexOf(sts []narrative.Statement, id string) int {
	for i := range sts {
		if sts[i].ID == id {
			return i
		}
	}
	return -1
}

func overlapsAny(sps []narrative.Span, sp narrative.Span) bool {
	for _, p := range sps {
		if p.Overlaps(sp) {
			return true
		}
	}
	return false
}

func overlapsEdit(eds []edit, sp narrative.Span) bool {
	for _, ed := range eds {
		if ed.span.Overlaps(sp) {
			return true
		}
	}
	return false
}

func endsAt(sps []narrative.Span, pos int) bool {
	for _, p := range sps {
		if p.End == pos {
			return true
		}
	}
	return false
}

func startsAt(sps []narrative.Span, pos int) bool {
	for _, p := range sps {
		if p.Start == pos {
			return true
		}
	}
	return false
}
