// Package pipeline runs one transformation request end to end:
// decompose, classify, rule engine, render. A pipeline is bound to one
// immutable rule set and may serve concurrent requests
package pipeline

import (
	"context"
	"fmt"
	"time"

	"narrative/internal/core/classify"
	"narrative/internal/core/decompose"
	"narrative/internal/core/engine"
	"narrative/internal/core/ledger"
	"narrative/internal/core/narrative"
	"narrative/internal/core/render"
	"narrative/internal/core/rulepack"
	"narrative/internal/core/version"
	perr "narrative/internal/platform/errors"
	"narrative/internal/platform/logger"
	"narrative/internal/platform/validate"
)

// Request is one transformation request: ordered segments from the external
// segmenter, each with optional context tags
type Request struct {
	ID       string              `json:"id" validate:"max=128"`
	Segments []narrative.Segment `json:"segments" validate:"dive"`
}

// SegmentText is the rendered text of one segment
type SegmentText struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Result is the structured outcome of one request
type Result struct {
	RequestID       string                 `json:"request_id"`
	RuleSet         string                 `json:"rule_set"`
	Build           version.BuildInfo      `json:"build"`
	Statements      []narrative.Statement  `json:"statements"`
	Decisions       []ledger.Decision      `json:"decisions"`
	Segments        []SegmentText          `json:"segments"`
	Text            string                 `json:"text"`
	Diagnostics     []narrative.Diagnostic `json:"diagnostics"`
	NoPolicyApplied bool                   `json:"no_policy_applied"`
	Elapsed         time.Duration          `json:"elapsed_ns"`
}

// Stage names a pipeline step, reported to observers
type Stage string

const (
	StageDecompose Stage = "decompose"
	StageClassify  Stage = "classify"
	StageEngine    Stage = "engine"
	StageRender    Stage = "render"
)

// Observer is told when each stage starts; the returned func is called when
// it ends. The service layer hangs spans and timings off it
type Observer func(ctx context.Context, stage Stage) (context.Context, func(err error))

// Pipeline is immutable once built
type Pipeline struct {
	rs       *rulepack.RuleSet
	dec      *decompose.Decomposer
	cls      *classify.Classifier
	eng      *engine.Engine
	observe  Observer
	maxBytes int
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithDecomposer replaces the default lexical decomposer
func WithDecomposer(d *decompose.Decomposer) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.dec = d
		}
	}
}

// WithObserver installs a stage observer
func WithObserver(o Observer) Option { return func(p *Pipeline) { p.observe = o } }

// WithMaxSegmentBytes rejects requests holding a longer segment; 0 means no limit
func WithMaxSegmentBytes(n int) Option { return func(p *Pipeline) { p.maxBytes = n } }

// New binds a pipeline to rs
func New(rs *rulepack.RuleSet, opts ...Option) *Pipeline {
	p := &Pipeline{
		rs:  rs,
		dec: decompose.New(),
		cls: classify.ForRuleSet(rs),
		eng: engine.New(rs),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// RuleSet returns the rule set the pipeline serves
func (p *Pipeline) RuleSet() *rulepack.RuleSet { return p.rs }

// Run transforms one request. On a context deadline or cancellation the
// partial ledger is dropped and a Timeout error is returned with no result
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	began := time.Now()
	if err := p.validate(req); err != nil {
		return nil, err
	}
	ctx = logger.WithRequest(ctx, req.ID, p.rs.Version)
	log := logger.C(ctx)

	segs := req.Segments
	stmts := make([][]narrative.Statement, len(segs))
	led := ledger.New()
	res := &Result{
		RequestID: req.ID,
		RuleSet:   p.rs.Version,
		Build:     version.Info(),
	}
	res.Diagnostics = append(res.Diagnostics, p.rs.Failures...)

	err := p.stage(ctx, StageDecompose, func(ctx context.Context) error {
		for i, sg := range segs {
			if err := ctx.Err(); err != nil {
				return err
			}
			stmts[i] = p.dec.Decompose(sg)
		}
		return nil
	})
	if err == nil {
		err = p.stage(ctx, StageClassify, func(ctx context.Context) error {
			for i, sg := range segs {
				if err := ctx.Err(); err != nil {
					return err
				}
				diags, err := p.cls.Classify(sg, stmts[i], led)
				if err != nil {
					return err
				}
				res.Diagnostics = append(res.Diagnostics, diags...)
			}
			return nil
		})
	}
	if err == nil {
		err = p.stage(ctx, StageEngine, func(ctx context.Context) error {
			for i, sg := range segs {
				diags, err := p.eng.Apply(ctx, sg, stmts[i], led)
				if err != nil {
					return err
				}
				res.Diagnostics = append(res.Diagnostics, diags...)
			}
			return nil
		})
	}
	if err != nil {
		return nil, p.fail(ctx, err)
	}

	snap := led.Freeze()
	err = p.stage(ctx, StageRender, func(ctx context.Context) error {
		parts := make([]string, len(segs))
		for i, sg := range segs {
			if err := ctx.Err(); err != nil {
				return err
			}
			ds := snap.ForSegment(sg.ID)
			render.Attribute(sg, stmts[i], ds)
			parts[i] = render.Segment(sg, stmts[i], ds)
			res.Segments = append(res.Segments, SegmentText{ID: sg.ID, Text: parts[i]})
			res.Statements = append(res.Statements, stmts[i]...)
		}
		res.Text = render.Join(parts)
		return nil
	})
	if err != nil {
		return nil, p.fail(ctx, err)
	}

	res.Decisions = snap.All()
	if !snap.ByRule() {
		res.NoPolicyApplied = true
		res.Diagnostics = append(res.Diagnostics, narrative.Diagnostic{
			Kind:     narrative.DiagNoPolicyApplied,
			Severity: narrative.SeverityInfo,
			Message:  "no rule matched; output equals input apart from quoted text",
		})
	}
	res.Elapsed = time.Since(began)

	log.Debug().
		Int("segments", len(segs)).
		Int("statements", len(res.Statements)).
		Int("decisions", len(res.Decisions)).
		Int("diagnostics", len(res.Diagnostics)).
		Dur("elapsed", res.Elapsed).
		Msg("request transformed")
	return res, nil
}

func (p *Pipeline) stage(ctx context.Context, s Stage, fn func(context.Context) error) error {
	if p.observe == nil {
		return fn(ctx)
	}
	sctx, done := p.observe(ctx, s)
	err := fn(sctx)
	done(err)
	return err
}

// fail maps context errors to Timeout; anything else is returned as is
func (p *Pipeline) fail(ctx context.Context, err error) error {
	log := logger.C(ctx)
	if ctx.Err() == nil && !perr.IsCode(err, perr.ErrorCodeTimeout) {
		log.Error().Err(err).Msg("request failed")
		return err
	}
	log.Warn().Err(err).Msg("request abandoned, partial ledger dropped")
	if perr.IsCode(err, perr.ErrorCodeTimeout) {
		return err
	}
	return perr.Wrap(err, perr.ErrorCodeTimeout, "pipeline: request abandoned")
}

func (p *Pipeline) validate(req Request) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(req.Segments))
	for i, sg := range req.Segments {
		if _, dup := seen[sg.ID]; dup {
			return perr.WithField(perr.InvalidArgf("pipeline: duplicate segment id %q", sg.ID), fmt.Sprintf("segments[%d].id", i))
		}
		seen[sg.ID] = struct{}{}
		if p.maxBytes > 0 && len(sg.Text) > p.maxBytes {
			return perr.WithField(perr.InvalidArgf("pipeline: segment %q is %d bytes, limit %d", sg.ID, len(sg.Text), p.maxBytes), fmt.Sprintf("segments[%d].text", i))
		}
	}
	return nil
}
