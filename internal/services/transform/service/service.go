// Package service implements the transform service
package service

import (
	"context"
	"sync/atomic"
	"time"

	"narrative/internal/core/decompose"
	"narrative/internal/core/narrative"
	"narrative/internal/core/pipeline"
	"narrative/internal/core/rulepack"
	perr "narrative/internal/platform/errors"
	"narrative/internal/platform/logger"
	"narrative/internal/services/transform/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// newRequestID names requests that arrive without an id
var newRequestID = uuid.NewString

// Config for the transform service
type Config struct {
	Workers         int
	Policy          decompose.Policy
	MaxSegmentBytes int

	// RulesPath is the rule file behind Reload; empty serves the embedded pack
	RulesPath string

	// Timeout bounds one request; 0 leaves only the caller's deadline
	Timeout time.Duration
}

// Service implements domain.TransformerPort and domain.RuleSetPort
type Service struct {
	store   *rulepack.Store
	cfg     Config
	metrics *Metrics
	tracer  trace.Tracer

	// pipeline bound to the serving rule set, rebuilt on every swap
	cur atomic.Pointer[pipeline.Pipeline]
}

// Option configures a Service
type Option func(*Service)

// WithMetrics sets the collectors; defaults to unregistered ones
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracerProvider sets where spans go; defaults to the global provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(TracerName)
		}
	}
}

// New constructs the service over store, which must already serve a rule set
func New(store *rulepack.Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, perr.InvalidArgf("transform: nil rule store")
	}
	rs, err := store.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Policy == "" {
		cfg.Policy = decompose.PolicySplit
	}
	s := &Service{
		store:   store,
		cfg:     cfg,
		metrics: NewMetrics(nil),
		tracer:  otel.GetTracerProvider().Tracer(TracerName),
	}
	for _, o := range opts {
		o(s)
	}
	s.cur.Store(s.build(rs))
	store.OnSwap(func(_, next *rulepack.RuleSet) {
		s.cur.Store(s.build(next))
	})
	return s, nil
}

func (s *Service) build(rs *rulepack.RuleSet) *pipeline.Pipeline {
	return pipeline.New(rs,
		pipeline.WithDecomposer(decompose.New(decompose.WithPolicy(s.cfg.Policy))),
		pipeline.WithObserver(stageObserver(s.tracer)),
		pipeline.WithMaxSegmentBytes(s.cfg.MaxSegmentBytes),
	)
}

// Metrics returns the service collectors
func (s *Service) Metrics() *Metrics { return s.metrics }

// RuleSet implements domain.RuleSetPort
func (s *Service) RuleSet() (*rulepack.RuleSet, error) { return s.store.Load() }

// Reload implements domain.RuleSetPort
func (s *Service) Reload() (*rulepack.RuleSet, error) {
	if s.cfg.RulesPath == "" {
		return nil, perr.Unavailablef("transform: no rule file configured")
	}
	rs, err := s.store.ReloadFile(s.cfg.RulesPath)
	s.ObserveReload(rs, err)
	return rs, err
}

// ObserveReload records a reload attempt made outside Reload, e.g. by a watcher
func (s *Service) ObserveReload(rs *rulepack.RuleSet, err error) {
	s.metrics.reload(err)
	log := logger.Named("transform")
	if err != nil {
		log.Warn().Err(err).Msg("rule reload rejected")
		return
	}
	log.Info().Str("rule_set", rs.Version).Msg("serving new rule set")
}

// Transform implements domain.TransformerPort
func (s *Service) Transform(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if req.ID == "" {
		req.ID = newRequestID()
	}
	p := s.cur.Load()

	ctx, span := s.tracer.Start(ctx, "transform.Request", trace.WithAttributes(
		attribute.String("request.id", req.ID),
		attribute.String("rule_set", p.RuleSet().Version),
		attribute.Int("segments", len(req.Segments)),
	))
	defer span.End()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	began := time.Now()
	res, err := p.Run(ctx, req)
	s.metrics.observe(res, err, time.Since(began))
	if err != nil {
		fail(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("decisions", len(res.Decisions)),
		attribute.Bool("no_policy_applied", res.NoPolicyApplied),
	)
	return res, nil
}

// TransformBatch implements domain.TransformerPort. At most Workers requests
// run at once; each gets its own timeout and its own ledger
func (s *Service) TransformBatch(ctx context.Context, reqs []domain.Request) []domain.Item {
	items := make([]domain.Item, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, req := range reqs {
		if req.ID == "" {
			req.ID = newRequestID()
		}
		g.Go(func() error {
			res, err := s.Transform(ctx, req)
			items[i] = item(i, req.ID, res, err)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, it := range items {
		if !it.OK() {
			failed++
		}
	}
	logger.Named("transform").Debug().
		Int("requests", len(reqs)).
		Int("failed", failed).
		Int("workers", s.cfg.Workers).
		Msg("batch transformed")
	return items
}

func item(i int, id string, res *domain.Result, err error) domain.Item {
	it := domain.Item{Index: i, RequestID: id, Result: res, Err: err}
	if perr.IsCode(err, perr.ErrorCodeTimeout) {
		it.Diagnostics = []narrative.Diagnostic{{
			Kind:     narrative.DiagTimeout,
			Severity: narrative.SeverityError,
			Message:  err.Error(),
		}}
	}
	return it
}
