package engine

import (
	"testing"

	"narrative/internal/core/narrative"
	"narrative/internal/core/rulepack"
	kit "narrative/internal/platform/testkit"
)

// FuzzApply checks span consumption and protection over arbitrary text:
// rule decisions never share a byte, none cuts a protected range, no merged
// member takes bytes a higher-ranked pending rule still competes for, and
// the rendered output is stable across runs
func FuzzApply(f *testing.F) {
	for _, seed := range []string{
		"He grabbed my arm and twisted it because he wanted to hurt me.",
		"thug cop",
		`He yelled "STOP RIGHT THERE!" and the cop clearly laughed`,
		"They always protect their own, massive cover-up",
		"badge 7731 said the cops literally obviously lied, case no. 22-114",
		"> quoted pig\nthen the thug cop left",
		"a  totally , , unusual assault",
		"“you pig” he said and I ran",
		"",
	} {
		f.Add(seed)
	}
	rs := rulepack.MustDefault()

	f.Fuzz(func(t *testing.T, text string) {
		kit.Swap(t, &applyHook, func(group, cands []*candidate, consumed func(narrative.Span) bool) {
			if p, m, bad := overtaken(group, cands, consumed); bad {
				t.Fatalf("%s merged %s [%d,%d) ahead of pending %s [%d,%d) in %q",
					group[0].c.Rule.ID, m.c.Rule.ID, m.span.Start, m.span.End,
					p.c.Rule.ID, p.span.Start, p.span.End, text)
			}
		})
		first := runSegment(t, rs, text)
		again := runSegment(t, rs, text)
		if first.text != again.text {
			t.Fatalf("render not stable: %q vs %q", first.text, again.text)
		}

		var protected []ledgerSpan
		for _, d := range first.all {
			if d.Action == rulepack.ActionPreserve {
				protected = append(protected, ledgerSpan{d.StartChar, d.EndChar, d.RuleID})
			}
		}
		var applied []ledgerSpan
		for _, d := range first.engine {
			if d.Action == rulepack.ActionPreserve {
				continue
			}
			sp := ledgerSpan{d.StartChar, d.EndChar, d.RuleID}
			for _, p := range protected {
				if sp.overlaps(p) {
					t.Fatalf("%s [%d,%d) cuts protected %s [%d,%d) in %q", sp.rule, sp.start, sp.end, p.rule, p.start, p.end, text)
				}
			}
			for _, o := range applied {
				if sp.overlaps(o) {
					t.Fatalf("%s and %s both claim bytes of %q", sp.rule, o.rule, text)
				}
			}
			applied = append(applied, sp)
		}

		for _, st := range first.sts {
			if st.IsAberrated && st.AttributedText != nil {
				t.Fatalf("aberrated %s has attributed text", st.ID)
			}
		}
	})
}

type ledgerSpan struct {
	start, end int
	rule       string
}

func (a ledgerSpan) overlaps(b ledgerSpan) bool { return a.start < b.end && b.start < a.end }

// overtaken finds a merged member m and a pending surviving candidate p
// with another outcome ranked above m that overlaps m, where no group member ranked above p
// already claims p's bytes
func overtaken(group, cands []*candidate, consumed func(narrative.Span) bool) (*candidate, *candidate, bool) {
	for _, m := range group[1:] {
		for _, p := range cands {
			if p.done || p.key == group[0].key || p.rank >= m.rank || consumed(p.span) || !p.span.Overlaps(m.span) {
				continue
			}
			beaten := false
			for _, q := range group {
				if q.rank < p.rank && q.span.Overlaps(p.span) {
					beaten = true
				}
			}
			if !beaten {
				return p, m, true
			}
		}
	}
	return nil, nil, false
}
