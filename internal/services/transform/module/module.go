// Package module implements the transform module
package module

import (
	"context"

	"narrative/internal/core/decompose"
	"narrative/internal/core/rulepack"
	"narrative/internal/modkit"
	mmodule "narrative/internal/modkit/module"
	"narrative/internal/platform/logger"
	"narrative/internal/services/transform/domain"
	"narrative/internal/services/transform/service"
)

// Name is the module and registry name
const Name = "transform"

// Ports exposed by the transform module
type Ports struct {
	Transformer domain.TransformerPort
	RuleSets    domain.RuleSetPort
}

// Module implements modkit.Module
type Module struct {
	deps    modkit.Deps
	built   modkit.Built
	opts    Options
	store   *rulepack.Store
	svc     *service.Service
	watcher *rulepack.Watcher
	ports   Ports
}

var _ modkit.Module = (*Module)(nil)

// New constructs the transform module. The rule set is loaded from
// CORE_TRANSFORM_RULES_PATH when set, else from the embedded default pack;
// a file that fails to load fails construction
func New(deps modkit.Deps, overrides Options, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName(Name),
	}, opts...)...)

	cfg := FromConfig(deps.Cfg).merge(overrides)

	var (
		rs  *rulepack.RuleSet
		err error
	)
	if cfg.RulesPath != "" {
		rs, err = rulepack.LoadFile(cfg.RulesPath)
	} else {
		rs, err = rulepack.Default()
	}
	if err != nil {
		return nil, err
	}
	store := rulepack.NewStore(rs)

	svcOpts := []service.Option{service.WithMetrics(service.NewMetrics(deps.Metrics))}
	if deps.Tracer != nil {
		svcOpts = append(svcOpts, service.WithTracerProvider(deps.Tracer))
	}
	svc, err := service.New(store, service.Config{
		RulesPath:       cfg.RulesPath,
		Workers:         cfg.Workers,
		Timeout:         cfg.Timeout,
		Policy:          decompose.ParsePolicy(cfg.SharedSubject),
		MaxSegmentBytes: cfg.MaxSegmentBytes,
	}, svcOpts...)
	if err != nil {
		return nil, err
	}

	m := &Module{
		deps:  deps,
		built: b,
		opts:  cfg,
		store: store,
		svc:   svc,
		ports: Ports{Transformer: svc, RuleSets: svc},
	}
	mmodule.Register(b.Name, m.ports)

	logger.Named(Name).Info().
		Str("rule_set", rs.Version).
		Int("rules", len(rs.Rules)).
		Int("disabled", len(rs.Failures)).
		Int("workers", cfg.Workers).
		Dur("timeout", cfg.Timeout).
		Str("shared_subject", cfg.SharedSubject).
		Msg("transform module ready")
	return m, nil
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.built.Name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Service returns the underlying service
func (m *Module) Service() *service.Service { return m.svc }

// Start begins watching the rule file when CORE_TRANSFORM_WATCH is set
func (m *Module) Start(ctx context.Context) error {
	if m.opts.Watch && m.opts.RulesPath != "" && m.watcher == nil {
		w, err := rulepack.NewWatcher(m.store, m.opts.RulesPath,
			rulepack.WithReloadHook(m.svc.ObserveReload),
		)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		m.watcher = w
	}
	m.built.OnStart()
	return nil
}

// Stop ends the rule watcher, if any
func (m *Module) Stop() {
	if m.watcher != nil {
		m.watcher.Stop()
		m.watcher = nil
	}
	m.built.OnStop()
}
