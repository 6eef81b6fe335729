// Package ledger is the append-only decision store of one transformation
// request. Exactly two writers exist and they write in a fixed order: the
// classifier first, then the rule engine. The renderer reads a frozen snapshot
package ledger

import (
	"slices"
	"sync"

	"narrative/internal/core/narrative"
	"narrative/internal/core/rulepack"
	perr "narrative/internal/platform/errors"
)

// ClassifierRuleID is the rule id recorded on classifier decisions
const ClassifierRuleID = "classifier"

// Writer identifies a ledger writer
type Writer uint8

const (
	// WriterClassifier writes quotation preserve decisions
	WriterClassifier Writer = iota + 1
	// WriterEngine writes rule decisions
	WriterEngine
)

func (w Writer) String() string {
	switch w {
	case WriterClassifier:
		return "classifier"
	case WriterEngine:
		return "engine"
	default:
		return "unknown"
	}
}

// Decision is one immutable ledger entry.
// Offsets are relative to the owning segment's text
type Decision struct {
	Seq       int             `json:"seq"`
	OwnerID   string          `json:"owner_id"`
	SegmentID string          `json:"segment_id"`
	StartChar int             `json:"start_char"`
	EndChar   int             `json:"end_char"`
	Action    rulepack.Action `json:"action"`
	RuleID    string          `json:"rule_id"`
	Reason    string          `json:"reason"`

	// Text is the resolved inserted text of replace and reframe decisions
	Text string `json:"text,omitempty"`

	// Merged lists further rules folded into this decision by token-group merge
	Merged []string `json:"merged_rule_ids,omitempty"`
}

// Span returns the decision's byte range
func (d Decision) Span() narrative.Span { return narrative.Span{Start: d.StartChar, End: d.EndChar} }

func (d Decision) clone() Decision {
	d.Merged = slices.Clone(d.Merged)
	return d
}

// Ledger collects decisions for one request
type Ledger struct {
	mu      sync.Mutex
	entries []Decision
	stage   Writer
	frozen  bool
}

// New returns an empty ledger
func New() *Ledger { return &Ledger{} }

// Append records d for writer w and returns it with its sequence number.
// A classifier write after the engine started, any write after Freeze, or an
// inverted span is rejected
func (l *Ledger) Append(w Writer, d Decision) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.frozen:
		return Decision{}, perr.OutOfOrderf("ledger: append after freeze")
	case w != WriterClassifier && w != WriterEngine:
		return Decision{}, perr.InvalidArgf("ledger: unknown writer %d", w)
	case w < l.stage:
		return Decision{}, perr.OutOfOrderf("ledger: %s write after %s began", w, l.stage)
	case d.EndChar < d.StartChar || d.StartChar < 0:
		return Decision{}, perr.InvalidArgf("ledger: bad span [%d,%d)", d.StartChar, d.EndChar)
	case w == WriterClassifier && d.RuleID != ClassifierRuleID:
		return Decision{}, perr.InvalidArgf("ledger: classifier decision with rule id %q", d.RuleID)
	}
	l.stage = w
	d.Seq = len(l.entries)
	d = d.clone()
	l.entries = append(l.entries, d)
	return d.clone(), nil
}

// Len returns the number of decisions
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Protected returns the segment's protected ranges in recorded order
func (l *Ledger) Protected(segmentID string) []narrative.Span {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []narrative.Span
	for _, d := range l.entries {
		if d.SegmentID == segmentID && d.Action == rulepack.ActionPreserve {
			out = append(out, d.Span())
		}
	}
	return out
}

// Freeze closes the ledger to writes and returns its snapshot
func (l *Ledger) Freeze() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen = true
	return Snapshot{entries: slices.Clone(l.entries)}
}

// Snapshot is a read-only view of a frozen ledger
type Snapshot struct {
	entries []Decision
}

// All returns a copy of every decision in recorded order
func (s Snapshot) All() []Decision {
	out := make([]Decision, len(s.entries))
	for i, d := range s.entries {
		out[i] = d.clone()
	}
	return out
}

// Len returns the number of decisions
func (s Snapshot) Len() int { return len(s.entries) }

// ForSegment returns the segment's decisions in recorded order
func (s Snapshot) ForSegment(segmentID string) []Decision {
	var out []Decision
	for _, d := range s.entries {
		if d.SegmentID == segmentID {
			out = append(out, d.clone())
		}
	}
	return out
}

// ByRule reports whether any decision came from a rule other than the classifier
func (s Snapshot) ByRule() bool {
	for _, d := range s.entries {
		if d.RuleID != ClassifierRuleID {
			return true
		}
	}
	return false
}
