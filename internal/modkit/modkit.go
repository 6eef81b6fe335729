package modkit

import (
	"context"

	"narrative/internal/modkit/module"
)

// Module is the common surface for service modules: a name, a port set for
// cross wiring, and a lifecycle for background work such as rule watchers
// keep this tiny so modules stay decoupled
type Module interface {
	module.Module

	// Start begins background work; it must not block
	Start(ctx context.Context) error
	// Stop ends background work and waits for it
	Stop()
}

// Builder constructs a Module from shared deps and options
// modules typically expose New(deps Deps, opts ...Option) Module and may delegate to this pattern
type Builder func(Deps, ...Option) Module
