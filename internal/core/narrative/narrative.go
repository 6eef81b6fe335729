// Package narrative holds the request-scoped types shared by every stage of the
// transformation pipeline: segments, atomic statements, spans and diagnostics
package narrative

import (
	"slices"
	"sort"
)

// ClauseType tells how a statement was joined to its neighbours
type ClauseType string

const (
	// ClauseAtomic is a segment that had no clause boundary
	ClauseAtomic ClauseType = "atomic"
	// ClauseCoordinate is joined by and/or
	ClauseCoordinate ClauseType = "coordinate"
	// ClauseCausal is joined by because/so/since
	ClauseCausal ClauseType = "causal"
	// ClauseTemporal is joined by then/after/before/while
	ClauseTemporal ClauseType = "temporal"
	// ClauseContrastive is joined by but/however/although
	ClauseContrastive ClauseType = "contrastive"
)

// EpistemicType is the evidentiary status of a statement
type EpistemicType string

const (
	EpistemicObservation    EpistemicType = "observation"
	EpistemicClaim          EpistemicType = "claim"
	EpistemicInterpretation EpistemicType = "interpretation"
	EpistemicQuote          EpistemicType = "quote"
	EpistemicUnknown        EpistemicType = "unknown"
)

// Semantic flags set by the classifier
const (
	FlagIntentAttribution     = "intent_attribution"
	FlagLegalCharacterization = "legal_characterization"
	FlagConspiracyClaim       = "conspiracy_claim"
	FlagInvective             = "invective"
)

// Segment is one externally segmented chunk of input. Immutable.
// StartChar/EndChar locate it in the source document; statement and decision
// offsets are relative to Text
type Segment struct {
	ID        string   `json:"id" validate:"required,max=128"`
	Text      string   `json:"text"`
	StartChar int      `json:"start_char" validate:"min=0"`
	EndChar   int      `json:"end_char" validate:"gtefield=StartChar"`
	Context   []string `json:"context,omitempty" validate:"dive,required"`
}

// HasContext reports whether the segment carries the given context tag
func (s Segment) HasContext(tag string) bool { return slices.Contains(s.Context, tag) }

// Statement is an atomic statement produced by the decomposer.
// Offsets are byte offsets into the owning segment's text, [StartChar,EndChar)
type Statement struct {
	ID             string        `json:"id"`
	Text           string        `json:"text"`
	SegmentID      string        `json:"segment_id"`
	StartChar      int           `json:"start_char"`
	EndChar        int           `json:"end_char"`
	ClauseType     ClauseType    `json:"clause_type"`
	Connector      string        `json:"connector,omitempty"`
	EpistemicType  EpistemicType `json:"epistemic_type"`
	Confidence     float64       `json:"confidence"`
	Flags          []string      `json:"flags,omitempty"`
	DerivedFrom    []string      `json:"derived_from,omitempty"`
	IsAberrated    bool          `json:"is_aberrated"`
	AttributedText *string       `json:"attributed_text,omitempty"`
	AberrationNote string        `json:"aberration_reason,omitempty"`
}

// Span returns the statement's byte range
func (s Statement) Span() Span { return Span{Start: s.StartChar, End: s.EndChar} }

// HasFlag reports whether the classifier set flag
func (s Statement) HasFlag(flag string) bool { return slices.Contains(s.Flags, flag) }

// AddFlag sets flag once, keeping Flags sorted so output is stable
func (s *Statement) AddFlag(flag string) {
	if s.HasFlag(flag) {
		return
	}
	s.Flags = append(s.Flags, flag)
	sort.Strings(s.Flags)
}

// Span is a half-open byte range [Start,End)
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span width
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether two spans share at least one byte
func (s Span) Overlaps(o Span) bool { return s.Start < o.End && o.Start < s.End }

// Contains reports whether o lies entirely inside s
func (s Span) Contains(o Span) bool { return s.Start <= o.Start && o.End <= s.End }

// Union returns the smallest span covering both
func (s Span) Union(o Span) Span { return Span{Start: min(s.Start, o.Start), End: max(s.End, o.End)} }

// SpanSet is an ordered set of non-overlapping spans
type SpanSet struct {
	spans []Span
}

// Add inserts sp keeping the set sorted; the caller guarantees no overlap
func (ss *SpanSet) Add(sp Span) {
	i := sort.Search(len(ss.spans), func(i int) bool { return ss.spans[i].Start >= sp.Start })
	ss.spans = slices.Insert(ss.spans, i, sp)
}

// Overlaps reports whether sp intersects any member
func (ss *SpanSet) Overlaps(sp Span) bool {
	_, ok := ss.First(sp)
	return ok
}

// First returns the earliest member intersecting sp
func (ss *SpanSet) First(sp Span) (Span, bool) {
	// members are disjoint and sorted, so ends are sorted too
	i := sort.Search(len(ss.spans), func(i int) bool { return ss.spans[i].End > sp.Start })
	if i < len(ss.spans) && ss.spans[i].Overlaps(sp) {
		return ss.spans[i], true
	}
	return Span{}, false
}

// Spans returns a copy of the members in order
func (ss *SpanSet) Spans() []Span { return slices.Clone(ss.spans) }

// Len returns the member count
func (ss *SpanSet) Len() int { return len(ss.spans) }

// DiagnosticKind names a degraded-but-continued condition
type DiagnosticKind string

const (
	DiagRuleSetError      DiagnosticKind = "rule_set_error"
	DiagConflict          DiagnosticKind = "conflict"
	DiagAmbiguity         DiagnosticKind = "classification_ambiguity"
	DiagRuleCompile       DiagnosticKind = "rule_compile_failure"
	DiagTimeout           DiagnosticKind = "timeout"
	DiagNoPolicyApplied   DiagnosticKind = "no_policy_applied"
	DiagQuarantineBlocked DiagnosticKind = "quarantine_blocked"
)

// Severity of a diagnostic
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one entry of a result's diagnostics list
type Diagnostic struct {
	Kind        DiagnosticKind `json:"kind"`
	Severity    Severity       `json:"severity"`
	SegmentID   string         `json:"segment_id,omitempty"`
	StatementID string         `json:"statement_id,omitempty"`
	RuleID      string         `json:"rule_id,omitempty"`
	Message     string         `json:"message"`
}
