// Package modkit provides module wiring and core deps
package modkit

import (
	"narrative/internal/platform/config"
	"narrative/internal/platform/logger"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	Metrics prometheus.Registerer
	Tracer  trace.TracerProvider
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers fall back to no-op metrics and tracing when those are nil
func (d Deps) ZeroOK() bool { return true }
