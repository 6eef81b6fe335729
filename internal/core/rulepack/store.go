package rulepack

import (
	"sync"
	"sync/atomic"

	perr "narrative/internal/platform/errors"
)

// Store holds the serving rule set. Readers take a pointer once per request
// and keep it; Swap publishes a new set without touching the old one, so an
// in-flight request always sees one consistent rule set
type Store struct {
	cur atomic.Pointer[RuleSet]

	mu   sync.Mutex
	subs []func(prev, next *RuleSet)
}

// NewStore returns a store serving rs (may be nil until the first Swap)
func NewStore(rs *RuleSet) *Store {
	s := &Store{}
	if rs != nil {
		s.cur.Store(rs)
	}
	return s
}

// Load returns the serving rule set or an Unavailable error
func (s *Store) Load() (*RuleSet, error) {
	rs := s.cur.Load()
	if rs == nil {
		return nil, perr.Unavailablef("rulepack: no rule set loaded")
	}
	return rs, nil
}

// Swap publishes next and notifies subscribers; returns the previous set
func (s *Store) Swap(next *RuleSet) (*RuleSet, error) {
	if next == nil {
		return nil, perr.InvalidArgf("rulepack: swap to nil rule set")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cur.Swap(next)
	for _, fn := range s.subs {
		fn(prev, next)
	}
	return prev, nil
}

// ReloadFile parses path and swaps it in. On any error the serving set is kept
func (s *Store) ReloadFile(path string) (*RuleSet, error) {
	rs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := s.Swap(rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// OnSwap registers fn to run after every successful swap, under the swap lock
func (s *Store) OnSwap(fn func(prev, next *RuleSet)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}
