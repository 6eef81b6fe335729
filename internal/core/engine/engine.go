// Package engine applies a rule set to one segment. Preserve rules run first
// and fix the segment's protected ranges; the remaining rules run in priority
// order and claim the text they change, so no byte is rewritten twice
package engine

import (
	"context"

	"narrative/internal/core/ledger"
	"narrative/internal/core/lexmatch"
	"narrative/internal/core/narrative"
	"narrative/internal/core/normalize"
	"narrative/internal/core/rulepack"
	perr "narrative/internal/platform/errors"
	"narrative/internal/platform/logger"
)

// Engine is built once per rule set; immutable and safe for concurrent use
type Engine struct {
	rs       *rulepack.RuleSet
	preserve []*rulepack.Compiled
	rules    []*rulepack.Compiled

	// keyword automata by rule declaration index
	keywords map[int]*lexmatch.Index
}

// New prepares rs for matching. Disabled rules are skipped
func New(rs *rulepack.RuleSet) *Engine {
	e := &Engine{
		rs:       rs,
		preserve: rs.Active(true),
		rules:    rs.Active(false),
		keywords: make(map[int]*lexmatch.Index),
	}
	for _, c := range rs.Compiled {
		if !c.Disabled && c.Rule.Match.Kind == rulepack.MatchKeyword {
			e.keywords[c.Index] = lexmatch.New(c.Keys)
		}
	}
	return e
}

// RuleSet returns the rule set the engine serves
func (e *Engine) RuleSet() *rulepack.RuleSet { return e.rs }

// run is the state of one segment pass
type run struct {
	e     *Engine
	ctx   context.Context
	seg   narrative.Segment
	sts   []narrative.Statement
	led   *ledger.Ledger
	words []normalize.Word
	log   logger.Logger

	protected narrative.SpanSet
	consumed  narrative.SpanSet
	diags     []narrative.Diagnostic
}

// Apply runs both phases over seg. Decisions go to led; quarantined
// statements in sts are marked aberrated. The classifier must already have
// written its decisions for seg
func (e *Engine) Apply(ctx context.Context, seg narrative.Segment, sts []narrative.Statement, led *ledger.Ledger) ([]narrative.Diagnostic, error) {
	if led == nil {
		return nil, perr.InvalidArgf("engine: nil ledger")
	}
	r := &run{
		e:     e,
		ctx:   ctx,
		seg:   seg,
		sts:   sts,
		led:   led,
		words: normalize.Words(seg.Text),
		log:   logger.C(ctx).With().Str("component", "engine").Str("segment_id", seg.ID).Logger(),
	}
	if err := r.preservePhase(); err != nil {
		return nil, err
	}
	if err := r.transformPhase(); err != nil {
		return nil, err
	}
	r.log.Debug().
		Int("protected", r.protected.Len()).
		Int("consumed", r.consumed.Len()).
		Int("diagnostics", len(r.diags)).
		Msg("segment ruled")
	return r.diags, nil
}

func (r *run) checkCtx() error {
	if err := r.ctx.Err(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeTimeout, "engine: request abandoned")
	}
	return nil
}

// owner returns the id of the statement holding sp, or the segment id
func (r *run) owner(sp narrative.Span) string {
	if i := r.statementOf(sp); i >= 0 {
		return r.sts[i].ID
	}
	return r.seg.ID
}

// statementOf returns the index of the statement containing sp, or -1
func (r *run) statementOf(sp narrative.Span) int {
	for i := range r.sts {
		if r.sts[i].Span().Contains(sp) {
			return i
		}
	}
	return -1
}

// statementAt returns the index of the first statement overlapping sp, or -1
func (r *run) statementAt(sp narrative.Span) int {
	for i := range r.sts {
		if r.sts[i].Span().Overlaps(sp) {
			return i
		}
	}
	return -1
}

func (r *run) diag(kind narrative.DiagnosticKind, sev narrative.Severity, ruleID, stmtID, msg string) {
	r.diags = append(r.diags, narrative.Diagnostic{
		Kind:        kind,
		Severity:    sev,
		SegmentID:   r.seg.ID,
		StatementID: stmtID,
		RuleID:      ruleID,
		Message:     msg,
	})
}

func reason(c *rulepack.Compiled) string {
	if c.Rule.Reason != "" {
		return c.Rule.Reason
	}
	return string(c.Rule.Action) + " by rule " + c.Rule.ID
}
