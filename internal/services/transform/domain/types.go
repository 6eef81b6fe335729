// Package domain defines the types and ports of the transform service
package domain

import (
	"narrative/internal/core/narrative"
	"narrative/internal/core/pipeline"
)

// Request and Result are the pipeline shapes; the service adds no fields
type (
	Request = pipeline.Request
	Result  = pipeline.Result
)

// Item is the outcome of one request in a batch. Exactly one of Result and
// Err is set. A timed-out item also carries a timeout diagnostic so callers
// that only read diagnostics still see it
type Item struct {
	Index       int                    `json:"index"`
	RequestID   string                 `json:"request_id"`
	Result      *Result                `json:"result,omitempty"`
	Err         error                  `json:"-"`
	Diagnostics []narrative.Diagnostic `json:"diagnostics,omitempty"`
}

// OK reports whether the item produced a result
func (it Item) OK() bool { return it.Err == nil && it.Result != nil }
