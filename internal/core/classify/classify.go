// Package classify assigns each atomic statement its epistemic type,
// confidence and semantic flags, and records quoted spans in the ledger so
// the rule engine leaves them alone. It never edits statement text
package classify

import (
	"sort"

	"narrative/internal/core/langhint"
	"narrative/internal/core/ledger"
	"narrative/internal/core/lexmatch"
	"narrative/internal/core/narrative"
	"narrative/internal/core/normalize"
	"narrative/internal/core/rulepack"
	perr "narrative/internal/platform/errors"
	"narrative/internal/platform/logger"
)

type lexFlag struct {
	flag string
	idx  *lexmatch.Index
}

// Classifier is immutable once built and safe for concurrent use
type Classifier struct {
	lexicon []lexFlag
}

// New builds a classifier over a flag vocabulary (flag -> terms)
func New(lexicon map[string][]string) *Classifier {
	flags := make([]string, 0, len(lexicon))
	for f := range lexicon {
		flags = append(flags, f)
	}
	sort.Strings(flags)

	c := &Classifier{lexicon: make([]lexFlag, 0, len(flags))}
	for _, f := range flags {
		c.lexicon = append(c.lexicon, lexFlag{flag: f, idx: lexmatch.New(lexicon[f])})
	}
	return c
}

// ForRuleSet builds a classifier over the rule set's lexicon
func ForRuleSet(rs *rulepack.RuleSet) *Classifier { return New(rs.Lexicon) }

// Flags lists the lexicon flags this classifier can set, sorted
func (c *Classifier) Flags() []string {
	out := make([]string, len(c.lexicon))
	for i, lf := range c.lexicon {
		out[i] = lf.flag
	}
	return out
}

// Classify fills the epistemic fields of sts in place and writes one
// classifier preserve decision per quotation zone of the segment. Statements
// must belong to seg and be in text order
func (c *Classifier) Classify(seg narrative.Segment, sts []narrative.Statement, led *ledger.Ledger) ([]narrative.Diagnostic, error) {
	if led == nil {
		return nil, perr.InvalidArgf("classify: nil ledger")
	}
	for i := range sts {
		st := &sts[i]
		if st.SegmentID != seg.ID || st.StartChar < 0 || st.StartChar > st.EndChar || st.EndChar > len(seg.Text) {
			return nil, perr.WithField(perr.InvalidArgf("classify: statement %q does not index segment %q", st.ID, seg.ID), "statements")
		}
	}

	zones := normalize.DetectZones(seg.Text)
	if err := recordQuotes(seg, sts, zones, led); err != nil {
		return nil, err
	}

	var diags []narrative.Diagnostic
	counts := map[narrative.EpistemicType]int{}
	for i := range sts {
		st := &sts[i]
		c.flagLexicon(st)
		if msg := tier(st, sts[:i], zones); msg != "" {
			diags = append(diags, narrative.Diagnostic{
				Kind:        narrative.DiagAmbiguity,
				Severity:    narrative.SeverityInfo,
				SegmentID:   seg.ID,
				StatementID: st.ID,
				Message:     msg,
			})
		}
		counts[st.EpistemicType]++
	}

	logger.Named("classify").Debug().
		Str("segment_id", seg.ID).
		Int("statements", len(sts)).
		Int("quotes", len(zones)).
		Int("ambiguous", len(diags)).
		Int("interpretations", counts[narrative.EpistemicInterpretation]).
		Msg("segment classified")
	return diags, nil
}

// recordQuotes protects every quotation zone. The owner is the statement
// holding the zone, or the segment when no single statement does
func recordQuotes(seg narrative.Segment, sts []narrative.Statement, zones []normalize.ZoneSpan, led *ledger.Ledger) error {
	for _, z := range zones {
		owner := seg.ID
		for _, st := range sts {
			if st.Span().Contains(z.Span()) {
				owner = st.ID
				break
			}
		}
		reason := "direct quotation"
		if z.Type == normalize.ZoneBlockQuote {
			reason = "block quotation"
		}
		_, err := led.Append(ledger.WriterClassifier, ledger.Decision{
			OwnerID:   owner,
			SegmentID: seg.ID,
			StartChar: z.Start,
			EndChar:   z.End,
			Action:    rulepack.ActionPreserve,
			RuleID:    ledger.ClassifierRuleID,
			Reason:    reason,
		})
		if err != nil {
			return perr.WithOp(err, "classify.recordQuotes")
		}
	}
	return nil
}

func (c *Classifier) flagLexicon(st *narrative.Statement) {
	for _, lf := range c.lexicon {
		if lf.idx.Contains(st.Text) {
			st.AddFlag(lf.flag)
		}
	}
}

// tier runs the cascade, first match wins. It returns a non-empty message
// when the statement was downgraded as ambiguous
func tier(st *narrative.Statement, earlier []narrative.Statement, zones []normalize.ZoneSpan) string {
	sp := st.Span()
	for _, z := range zones {
		if z.Span().Overlaps(sp) {
			assign(st, narrative.EpistemicQuote, ConfidenceQuote)
			return ""
		}
	}

	if h := langhint.Detect(st.Text); h.Script != "" && h.Script != "Latin" {
		assign(st, narrative.EpistemicClaim, ConfidenceAmbiguous)
		return "predominantly " + h.Script + " script, marker lexicons do not apply"
	}

	ws := normalize.Words(st.Text)
	if m, at, ok := find(ws, interpretationMarkers); ok {
		assign(st, narrative.EpistemicInterpretation, ConfidenceInterpretation)
		if m.mental && thirdParty(ws, at, earlier, st.DerivedFrom) {
			st.AddFlag(narrative.FlagIntentAttribution)
		}
		return ""
	}
	if observed(ws) {
		assign(st, narrative.EpistemicObservation, ConfidenceObservation)
		return ""
	}

	switch _, _, hedged := find(ws, hedges); {
	case len(ws) == 0:
		assign(st, narrative.EpistemicClaim, ConfidenceAmbiguous)
		return "statement has no words"
	case hedged:
		assign(st, narrative.EpistemicClaim, ConfidenceAmbiguous)
		return "hedged statement matched no marker tier"
	}
	assign(st, narrative.EpistemicClaim, ConfidenceClaim)
	return ""
}

func assign(st *narrative.Statement, typ narrative.EpistemicType, conf float64) {
	st.EpistemicType = typ
	st.Confidence = conf
}

// find returns the earliest marker occurrence; at one position the marker
// listed first wins
func find(ws []normalize.Word, ms []marker) (marker, int, bool) {
	for i := range ws {
		for _, m := range ms {
			if matchAt(ws, i, m.words) {
				return m, i, true
			}
		}
	}
	return marker{}, 0, false
}

func matchAt(ws []normalize.Word, i int, seq []string) bool {
	if i+len(seq) > len(ws) {
		return false
	}
	for k, w := range seq {
		if ws[i+k].Lower != w {
			return false
		}
	}
	return true
}

// thirdParty reports whether the marker at ws[at] attributes a mental state
// to someone other than the narrator. Without a subject in the statement the
// subject of the statement it derives from is used
func thirdParty(ws []normalize.Word, at int, earlier []narrative.Statement, derived []string) bool {
	if subj, ok := subjectBefore(ws, at); ok {
		return !narrator[subj]
	}
	if len(derived) == 0 {
		return false
	}
	for _, e := range earlier {
		if e.ID != derived[0] {
			continue
		}
		ews := normalize.Words(e.Text)
		if subj, ok := subjectBefore(ews, firstNonAdverb(ews)+1); ok {
			return !narrator[subj]
		}
	}
	return false
}

var narrator = set("i", "we", "me", "us", "myself", "ourselves", "i'm", "we're", "i'd", "we'd")

func subjectBefore(ws []normalize.Word, at int) (string, bool) {
	for j := min(at, len(ws)) - 1; j >= 0; j-- {
		if !adverbs[ws[j].Lower] {
			return ws[j].Lower, true
		}
	}
	return "", false
}

func firstNonAdverb(ws []normalize.Word) int {
	for i, w := range ws {
		if !adverbs[w.Lower] {
			return i
		}
	}
	return len(ws)
}

// observed reports a first-person subject followed by an observation verb,
// or a first-person state contraction ("I'm shaking")
func observed(ws []normalize.Word) bool {
	for i, w := range ws {
		switch {
		case w.Lower == "i'm" || w.Lower == "we're":
			return true
		case !firstPerson[w.Lower]:
			continue
		}
		for j := i + 1; j < len(ws); j++ {
			if adverbs[ws[j].Lower] {
				continue
			}
			if observationVerbs[ws[j].Lower] {
				return true
			}
			break
		}
	}
	return false
}
