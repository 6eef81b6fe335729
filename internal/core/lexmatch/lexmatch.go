// Package lexmatch finds whole-word, case-insensitive occurrences of many
// literal terms in one pass. Offsets index the original text
package lexmatch

import (
	"sort"

	"narrative/internal/core/normalize"
)

// Hit is one occurrence of term ID over [Start,End) in the original text
type Hit struct {
	ID         int
	Start, End int
}

// Index is an immutable compiled term set; safe for concurrent use
type Index struct {
	ac    *automaton
	terms []string
}

// New compiles terms; ids are slice positions. Terms are normalized with
// normalize.Key; blank terms never match
func New(terms []string) *Index {
	ac := newAutomaton()
	keys := make([]string, len(terms))
	for i, t := range terms {
		keys[i] = normalize.Key(t)
		ac.add(keys[i], i)
	}
	ac.build()
	return &Index{ac: ac, terms: keys}
}

// Term returns the normalized term for id
func (x *Index) Term(id int) string { return x.terms[id] }

// Len returns the number of terms
func (x *Index) Len() int { return len(x.terms) }

// FindAll returns every whole-word occurrence, overlapping ones included,
// ordered by start then longest first then id
func (x *Index) FindAll(text string) []Hit {
	if text == "" || len(x.terms) == 0 {
		return nil
	}
	folded := foldSpace(normalize.Fold(text))
	var out []Hit
	x.ac.scan(folded, func(end, id int) bool {
		start := end - x.ac.lens[id]
		if normalize.BoundaryOK(text, start, end) {
			out = append(out, Hit{ID: id, Start: start, End: end})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End > b.End
		}
		return a.ID < b.ID
	})
	return out
}

// Contains reports whether any term occurs in text
func (x *Index) Contains(text string) bool {
	found := false
	if text == "" || len(x.terms) == 0 {
		return false
	}
	x.ac.scan(foldSpace(normalize.Fold(text)), func(end, id int) bool {
		start := end - x.ac.lens[id]
		found = normalize.BoundaryOK(text, start, end)
		return !found
	})
	return found
}

// foldSpace maps ASCII blanks to ' ' so "protect\ttheir own" meets its term
func foldSpace(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c == '\t' || c == '\n' || c == '\r' {
			b[i] = ' '
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}
