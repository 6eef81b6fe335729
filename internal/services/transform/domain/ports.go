package domain

import (
	"context"

	"narrative/internal/core/rulepack"
)

// TransformerPort runs requests against the serving rule set
type TransformerPort interface {
	// Transform runs one request under the configured per-request timeout
	Transform(ctx context.Context, req Request) (*Result, error)

	// TransformBatch runs independent requests with bounded concurrency.
	// Items come back in input order; one failed item never fails the batch
	TransformBatch(ctx context.Context, reqs []Request) []Item
}

// RuleSetPort exposes the serving rule set and manual reloads
type RuleSetPort interface {
	// RuleSet returns the serving rule set
	RuleSet() (*rulepack.RuleSet, error)

	// Reload re-reads the configured rule file; the serving set is kept on error
	Reload() (*rulepack.RuleSet, error)
}
