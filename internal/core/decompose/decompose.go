// Package decompose splits a segment into atomic statements at clause
// boundaries. Statement spans plus the discarded gaps between them cover the
// segment text exactly
package decompose

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"narrative/internal/core/narrative"
	"narrative/internal/core/normalize"
	"narrative/internal/platform/logger"
)

// Policy decides what happens to a coordinated verb phrase that shares one
// subject ("he grabbed my arm and twisted it")
type Policy string

const (
	// PolicySplit emits one statement per conjunct
	PolicySplit Policy = "split"
	// PolicyKeep keeps shared-subject conjuncts in one statement
	PolicyKeep Policy = "keep"
)

// ParsePolicy maps a config value to a Policy; anything unknown is split
func ParsePolicy(s string) Policy {
	if strings.EqualFold(strings.TrimSpace(s), string(PolicyKeep)) {
		return PolicyKeep
	}
	return PolicySplit
}

// Decomposer turns segments into statements; safe for concurrent use
type Decomposer struct {
	sensor Sensor
	policy Policy
}

// Option configures a Decomposer
type Option func(*Decomposer)

// WithSensor replaces the default LexicalSensor
func WithSensor(s Sensor) Option {
	return func(d *Decomposer) {
		if s != nil {
			d.sensor = s
		}
	}
}

// WithPolicy sets the shared-subject policy
func WithPolicy(p Policy) Option { return func(d *Decomposer) { d.policy = p } }

// New returns a Decomposer with the lexical sensor and the split policy
func New(opts ...Option) *Decomposer {
	d := &Decomposer{sensor: LexicalSensor{}, policy: PolicySplit}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Policy returns the configured shared-subject policy
func (d *Decomposer) Policy() Policy { return d.policy }

// Decompose returns the segment's statements in text order. A segment
// without a usable boundary yields one atomic statement; a blank segment
// yields none
func (d *Decomposer) Decompose(seg narrative.Segment) []narrative.Statement {
	text := seg.Text
	if strings.TrimSpace(text) == "" {
		return nil
	}
	bs := d.accept(seg, d.sensor.Boundaries(text))

	// pieces between gaps, trimmed of outer blanks
	type piece struct {
		start, end int
		b          *Boundary // boundary before this piece
	}
	pieces := make([]piece, 0, len(bs)+1)
	from := 0
	var prev *Boundary
	for i := range bs {
		pieces = append(pieces, piece{start: from, end: bs[i].Start, b: prev})
		prev = &bs[i]
		from = bs[i].End
	}
	pieces = append(pieces, piece{start: from, end: len(text), b: prev})

	out := make([]narrative.Statement, 0, len(pieces))
	for k, p := range pieces {
		start, end := trimSpan(text, p.start, p.end)
		st := narrative.Statement{
			ID:            fmt.Sprintf("%s:%d", seg.ID, k+1),
			Text:          text[start:end],
			SegmentID:     seg.ID,
			StartChar:     start,
			EndChar:       end,
			ClauseType:    narrative.ClauseAtomic,
			EpistemicType: narrative.EpistemicUnknown,
		}
		switch {
		case p.b != nil:
			st.ClauseType = p.b.Type
			st.Connector = p.b.Connector
			// coordinate conjuncts with their own subject stand alone
			if p.b.Type != narrative.ClauseCoordinate || p.b.SharedSubject {
				st.DerivedFrom = []string{out[k-1].ID}
			}
		case len(bs) > 0:
			st.ClauseType = bs[0].Type
		}
		out = append(out, st)
	}
	return out
}

// accept drops boundaries that are out of order, overlap, would leave an empty
// statement, cut a quotation, or that the shared-subject policy keeps whole
func (d *Decomposer) accept(seg narrative.Segment, in []Boundary) []Boundary {
	if len(in) == 0 {
		return nil
	}
	text := seg.Text
	zones := normalize.DetectZones(text)
	log := logger.Named("decompose")

	out := make([]Boundary, 0, len(in))
	last := 0
	for _, b := range in {
		reason := ""
		switch {
		case b.Start < last || b.End <= b.Start || b.End > len(text):
			reason = "out of order or out of range"
		case blank(text[last:b.Start]) || blank(text[b.End:]):
			reason = "empty statement"
		case cutsZone(zones, b):
			reason = "inside quotation"
		case d.policy == PolicyKeep && b.Type == narrative.ClauseCoordinate && b.SharedSubject:
			reason = "shared subject kept"
		}
		if reason != "" {
			log.Debug().Str("segment_id", seg.ID).Int("start", b.Start).Int("end", b.End).
				Str("connector", b.Connector).Str("reason", reason).Msg("boundary dropped")
			continue
		}
		out = append(out, b)
		last = b.End
	}
	return out
}

func cutsZone(zs []normalize.ZoneSpan, b Boundary) bool {
	for _, z := range zs {
		if b.Start < z.End && z.Start < b.End {
			return true
		}
	}
	return false
}

func blank(s string) bool {
	return strings.TrimFunc(s, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsPunct(r) }) == ""
}

func trimSpan(text string, start, end int) (int, int) {
	for start < end {
		r, sz := utf8.DecodeRuneInString(text[start:])
		if !unicode.IsSpace(r) {
			break
		}
		start += sz
	}
	for end > start {
		r, sz := utf8.DecodeLastRuneInString(text[:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= sz
	}
	return start, end
}
