package decompose

import (
	"unicode"
	"unicode/utf8"

	"narrative/internal/core/narrative"
	"narrative/internal/core/normalize"
)

// Boundary is one clause boundary reported by a Sensor. [Start,End) is the
// discarded gap: the connector words plus the blanks and pause punctuation
// around them. Connector is the connector as written ("and then")
type Boundary struct {
	Start, End int
	Connector  string
	Type       narrative.ClauseType
	// SharedSubject marks a coordinate boundary whose right conjunct has no
	// subject of its own ("grabbed my arm and twisted it")
	SharedSubject bool
}

// Sensor supplies clause structure for one segment text. Implementations
// must be deterministic; boundaries are validated by the Decomposer
type Sensor interface {
	Boundaries(text string) []Boundary
}

// SensorFunc adapts a function to Sensor
type SensorFunc func(text string) []Boundary

// Boundaries implements Sensor
func (f SensorFunc) Boundaries(text string) []Boundary { return f(text) }

// LexicalSensor finds boundaries from connector lexicons and word shape.
// It never looks inside quotation zones
type LexicalSensor struct{}

// Boundaries implements Sensor
func (LexicalSensor) Boundaries(text string) []Boundary {
	ws := normalize.Words(text)
	if len(ws) < 3 {
		return nil
	}
	zones := normalize.DetectZones(text)

	// candidate connector positions, outside quotations and never first or last
	var cands []int
	for i := 1; i < len(ws)-1; i++ {
		if _, ok := connectors[ws[i].Lower]; !ok || normalize.InZone(zones, ws[i].Start) {
			continue
		}
		cands = append(cands, i)
	}

	var out []Boundary
	prevEnd := 0 // word index where the current left clause starts
	for k := 0; k < len(cands); k++ {
		i := cands[k]
		if i < prevEnd {
			continue // consumed as the tail of a two-word connector
		}
		c := connectors[ws[i].Lower]
		last, typ := i, c.typ

		if prepositionalAfter[ws[i].Lower][ws[i+1].Lower] {
			continue
		}
		// "and then" reads as one temporal connector, "but then" stays contrastive
		if (ws[i].Lower == "and" || ws[i].Lower == "but") && ws[i+1].Lower == "then" {
			if i+2 >= len(ws) {
				continue
			}
			last = i + 1
			if ws[i].Lower == "and" {
				typ = narrative.ClauseTemporal
			}
		}

		// the right clause runs to the next candidate connector
		rightEnd := len(ws)
		for _, j := range cands[k+1:] {
			if j > last+1 {
				rightEnd = j
				break
			}
		}
		left, right := ws[prevEnd:i], ws[last+1:rightEnd]
		hasSubject := subjectLike(right[0].Lower) || properNoun(text, right[0])

		switch {
		case c.needSubject && !hasSubject:
			continue
		case c.needVerbs && (!anyVerb(left) || !anyVerb(right)):
			continue
		}

		start := trimGapLeft(text, ws[i].Start)
		end := ws[last+1].Start
		if normalize.InZone(zones, start) || normalize.InZone(zones, end-1) {
			continue
		}
		out = append(out, Boundary{
			Start:         start,
			End:           end,
			Connector:     text[ws[i].Start:ws[last].End],
			Type:          typ,
			SharedSubject: typ == narrative.ClauseCoordinate && !hasSubject,
		})
		prevEnd = last + 1
	}
	return out
}

// trimGapLeft extends a gap left over blanks and pause punctuation
func trimGapLeft(text string, pos int) int {
	for pos > 0 {
		r, sz := utf8.DecodeLastRuneInString(text[:pos])
		if !unicode.IsSpace(r) && r != ',' && r != ';' {
			break
		}
		pos -= sz
	}
	return pos
}

func anyVerb(ws []normalize.Word) bool {
	for _, w := range ws {
		if verbLike(w.Lower) {
			return true
		}
	}
	return false
}

// properNoun treats a capitalized word that is not sentence-initial as a name
func properNoun(text string, w normalize.Word) bool {
	r, _ := utf8.DecodeRuneInString(text[w.Start:])
	return unicode.IsUpper(r) && w.Lower != "i"
}
