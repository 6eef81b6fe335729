package modkit

import (
	"context"
	"testing"
)

// stub module that satisfies Module and records calls
type stub struct {
	started bool
	stopped bool
	ports   any
}

func (s *stub) Start(context.Context) error {
	s.started = true
	return nil
}

func (s *stub) Stop()        { s.stopped = true }
func (s *stub) Ports() any   { return s.ports }
func (s *stub) Name() string { return "stub" }

// compile-time assertion: stub implements Module
var _ Module = (*stub)(nil)

func TestModule_Lifecycle(t *testing.T) {
	t.Parallel()

	m := &stub{ports: 42}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Stop()

	if !m.started || !m.stopped {
		t.Fatalf("expected Start and Stop to be recorded, got started=%v stopped=%v", m.started, m.stopped)
	}
	if got := m.Ports(); got != 42 {
		t.Fatalf("unexpected Ports value: got=%v want=42", got)
	}
}

func TestBuilder_TypeSignatureAndUse(t *testing.T) {
	t.Parallel()

	// A minimal Builder that ignores deps/options and returns a stub
	var b Builder = func(_ Deps, _ ...Option) Module {
		return &stub{ports: "ok"}
	}

	m := b(Deps{})
	if m == nil {
		t.Fatal("builder returned nil module")
	}

	if p := m.Ports(); p != "ok" {
		t.Fatalf("unexpected Ports value from built module: got=%v want=ok", p)
	}
}
