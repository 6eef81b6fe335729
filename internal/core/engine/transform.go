package engine

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"narrative/internal/core/ledger"
	"narrative/internal/core/narrative"
	"narrative/internal/core/normalize"
	"narrative/internal/core/rulepack"
)

// candidate is one filtered match waiting for span consumption
type candidate struct {
	c    *rulepack.Compiled
	rank int // position in processing order
	span narrative.Span
	key  string
	stmt int // quarantine target, -1 otherwise
	done bool
}

// transformPhase collects every surviving match of every non-preserve rule,
// then applies them by rule rank and position. Each applied group claims its
// span; later candidates touching a claimed span are dropped
func (r *run) transformPhase() error {
	cands, err := r.collect()
	if err != nil {
		return err
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if a.span.Start != b.span.Start {
			return a.span.Start < b.span.Start
		}
		return a.span.End > b.span.End
	})

	for _, cd := range cands {
		if cd.done {
			continue
		}
		cd.done = true
		if held, ok := r.consumed.First(cd.span); ok {
			r.log.Debug().Str("rule_id", cd.c.Rule.ID).Int("start", cd.span.Start).
				Int("held_start", held.Start).Msg("match dropped, span consumed")
			continue
		}
		group, span := r.grow(cd, cands)
		if applyHook != nil {
			applyHook(group, cands, r.consumed.Overlaps)
		}
		if err := r.apply(group, span); err != nil {
			return err
		}
	}
	return nil
}

// collect runs the per-match filters: protected ranges, exemptions, context
func (r *run) collect() ([]*candidate, error) {
	var out []*candidate
	blocked := map[string]bool{}

	for rank, c := range r.e.rules {
		if err := r.checkCtx(); err != nil {
			return nil, err
		}
		allowed := c.ContextAllows(r.seg.HasContext)
		key := mergeKey(c)

		add := func(sp narrative.Span, stmt int) {
			out = append(out, &candidate{c: c, rank: rank, span: sp, key: key, stmt: stmt})
		}

		if c.Rule.Match.Kind == rulepack.MatchFlag {
			for _, i := range r.flaggedStatements(c) {
				sp := r.sts[i].Span()
				if r.blockedQuarantine(c, i, blocked) || r.protected.Overlaps(sp) || !allowed {
					continue
				}
				add(sp, i)
			}
			continue
		}

		for _, sp := range r.textMatches(c) {
			if r.protected.Overlaps(sp) || r.exempt(c, sp) || !allowed {
				continue
			}
			if c.Rule.Action != rulepack.ActionQuarantine {
				add(sp, -1)
				continue
			}
			i := r.statementAt(sp)
			if i < 0 || r.blockedQuarantine(c, i, blocked) {
				continue
			}
			add(r.sts[i].Span(), i)
		}
	}
	return out, nil
}

// blockedQuarantine reports a quarantine that would swallow protected text.
// Protection wins; the block is reported once per rule and statement
func (r *run) blockedQuarantine(c *rulepack.Compiled, i int, seen map[string]bool) bool {
	if c.Rule.Action != rulepack.ActionQuarantine {
		return false
	}
	st := r.sts[i]
	held, ok := r.protected.First(st.Span())
	if !ok {
		return false
	}
	if k := c.Rule.ID + "\x00" + st.ID; !seen[k] {
		seen[k] = true
		msg := fmt.Sprintf("quarantine of %s blocked by protected [%d,%d)", st.ID, held.Start, held.End)
		r.diag(narrative.DiagQuarantineBlocked, narrative.SeverityWarning, c.Rule.ID, st.ID, msg)
		r.log.Warn().Str("rule_id", c.Rule.ID).Str("statement_id", st.ID).Msg("quarantine blocked by protected range")
	}
	return true
}

// mergeKey groups rules with the same outcome. Flag and quarantine
// decisions are never merged across rules
func mergeKey(c *rulepack.Compiled) string {
	switch a := c.Rule.Action; a {
	case rulepack.ActionRemove:
		return string(a)
	case rulepack.ActionReplace, rulepack.ActionReframe:
		return string(a) + "\x00" + normalize.Key(c.Rule.Replacement)
	default:
		return string(a) + "\x00" + c.Rule.ID
	}
}

// applyHook sees each group just before it is applied; nil outside tests
var applyHook func(group, cands []*candidate, consumed func(narrative.Span) bool)

// grow merges into lead the unprocessed candidates of other rules with the
// same outcome that overlap or abut the group, at most one per rule. A
// candidate that a pending higher-ranked rule with another outcome still
// competes for is left to that contest. It returns the group, lead first,
// and the merged span
func (r *run) grow(lead *candidate, cands []*candidate) ([]*candidate, narrative.Span) {
	group := []*candidate{lead}
	span := lead.span
	if !lead.c.Rule.Action.Mutates() {
		return group, span
	}
	rules := map[string]bool{lead.c.Rule.ID: true}
	for changed := true; changed; {
		changed = false
		for _, o := range cands {
			if o.done || o.key != lead.key || rules[o.c.Rule.ID] || !r.touches(span, o.span) {
				continue
			}
			u := span.Union(o.span)
			if r.consumed.Overlaps(u) || r.protected.Overlaps(u) || r.contested(lead, o, span, u, cands) {
				continue
			}
			o.done = true
			group = append(group, o)
			rules[o.c.Rule.ID] = true
			span = u
			changed = true
		}
	}
	return group, span
}

// contested reports a pending candidate ranked above o, with another
// outcome, that the merge into u would take bytes from. Candidates already
// overlapping the group lose to it regardless
func (r *run) contested(lead, o *candidate, span, u narrative.Span, cands []*candidate) bool {
	for _, p := range cands {
		if p.done || p.key == lead.key || p.rank >= o.rank {
			continue
		}
		if p.span.Overlaps(u) && !p.span.Overlaps(span) && !r.consumed.Overlaps(p.span) {
			return true
		}
	}
	return false
}

// apply writes the group's single decision and claims its span
func (r *run) apply(group []*candidate, span narrative.Span) error {
	lead := group[0]
	c := lead.c
	d := ledger.Decision{
		SegmentID: r.seg.ID,
		StartChar: span.Start,
		EndChar:   span.End,
		Action:    c.Rule.Action,
		RuleID:    c.Rule.ID,
		Reason:    reason(c),
	}
	for _, m := range group[1:] {
		d.Merged = append(d.Merged, m.c.Rule.ID)
	}

	matched := r.seg.Text[span.Start:span.End]
	switch c.Rule.Action {
	case rulepack.ActionReplace:
		d.Text = shapeCase(matched, normalize.Inserted(c.Rule.Replacement))
	case rulepack.ActionReframe:
		d.Text = reframe(matched, c.Rule.Replacement)
	case rulepack.ActionQuarantine:
		d.OwnerID = r.sts[lead.stmt].ID
	}
	if d.OwnerID == "" {
		d.OwnerID = r.owner(span)
	}

	if _, err := r.led.Append(ledger.WriterEngine, d); err != nil {
		return err
	}
	r.consumed.Add(span)

	if c.Rule.Action == rulepack.ActionQuarantine {
		st := &r.sts[lead.stmt]
		st.IsAberrated = true
		st.AttributedText = nil
		st.AberrationNote = d.Reason
	}
	r.log.Debug().Str("rule_id", c.Rule.ID).Str("action", string(c.Rule.Action)).
		Int("start", span.Start).Int("end", span.End).Strs("merged", d.Merged).Msg("rule applied")
	return nil
}

// reframe fills the template with the matched text, kept verbatim
func reframe(matched, template string) string {
	parts := strings.Split(normalize.Inserted(template), rulepack.MatchPlaceholder)
	if allUpper(matched) {
		for i := range parts {
			parts[i] = strings.ToUpper(parts[i])
		}
	} else {
		parts[0] = shapeCase(matched, parts[0])
	}
	return strings.Join(parts, matched)
}

// shapeCase carries the match's capitalization onto inserted text:
// an all-caps match gives all-caps text, a capitalized one a capital first letter
func shapeCase(matched, text string) string {
	first, _ := utf8.DecodeRuneInString(matched)
	if !unicode.IsUpper(first) || text == "" {
		return text
	}
	if allUpper(matched) {
		return strings.ToUpper(text)
	}
	r, sz := utf8.DecodeRuneInString(text)
	return string(unicode.ToUpper(r)) + text[sz:]
}

func allUpper(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 1
}
