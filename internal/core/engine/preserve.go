package engine

import (
	"fmt"

	"narrative/internal/core/ledger"
	"narrative/internal/core/narrative"
	"narrative/internal/core/rulepack"
)

// preservePhase fixes the segment's protected ranges: the classifier's
// quotation ranges first, then every preserve rule in declaration order.
// An earlier range always wins; a later one that cuts it is a conflict
func (r *run) preservePhase() error {
	for _, sp := range r.led.Protected(r.seg.ID) {
		r.protect(sp, ledger.ClassifierRuleID)
	}

	for _, c := range r.e.preserve {
		if err := r.checkCtx(); err != nil {
			return err
		}
		for _, sp := range r.textMatches(c) {
			if !r.protect(sp, c.Rule.ID) {
				continue
			}
			_, err := r.led.Append(ledger.WriterEngine, ledger.Decision{
				OwnerID:   r.owner(sp),
				SegmentID: r.seg.ID,
				StartChar: sp.Start,
				EndChar:   sp.End,
				Action:    rulepack.ActionPreserve,
				RuleID:    c.Rule.ID,
				Reason:    reason(c),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// protect records sp unless an earlier range already covers or cuts it
func (r *run) protect(sp narrative.Span, ruleID string) bool {
	held, ok := r.protected.First(sp)
	switch {
	case !ok:
		r.protected.Add(sp)
		return true
	case held.Contains(sp):
		return false
	}

	msg := fmt.Sprintf("preserve [%d,%d) overlaps protected [%d,%d), earlier range kept", sp.Start, sp.End, held.Start, held.End)
	r.diag(narrative.DiagConflict, narrative.SeverityWarning, ruleID, "", msg)
	r.log.Warn().
		Str("rule_id", ruleID).
		Int("start", sp.Start).
		Int("end", sp.End).
		Int("held_start", held.Start).
		Int("held_end", held.End).
		Msg("preserve conflict")
	return false
}
