// Package rulepack loads, validates and compiles the immutable rule set.
// A RuleSet value never changes after Parse returns; reloads build a new one
// and swap it into a Store
package rulepack

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"sort"
	"strings"

	"narrative/internal/core/narrative"
	"narrative/internal/core/normalize"
	perr "narrative/internal/platform/errors"
	"narrative/internal/platform/logger"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var embedded []byte

// RuleSet is a validated, compiled rule set
type RuleSet struct {
	Name    string
	Version string // name@content-hash

	// Rules in declaration order; Compiled is 1:1 with Rules
	Rules    []Rule
	Compiled []*Compiled

	// Lexicon maps a classifier flag to its normalized terms, sorted
	Lexicon map[string][]string

	// Failures lists rules disabled because a pattern failed to compile
	Failures []narrative.Diagnostic
}

// Default returns the embedded rule set
func Default() (*RuleSet, error) { return Parse(embedded) }

// MustDefault is Default for callers that cannot proceed without it
func MustDefault() *RuleSet {
	rs, err := Default()
	if err != nil {
		panic(err)
	}
	return rs
}

// LoadFile reads and parses a rule set file
func LoadFile(path string) (*RuleSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeRuleSet, "rulepack: read %s", path)
	}
	rs, err := Parse(b)
	if err != nil {
		return nil, perr.WithOp(err, "rulepack.LoadFile")
	}
	return rs, nil
}

// Parse decodes, validates and compiles a rule set document. YAML is the
// native format; JSON parses as its subset. Unknown keys are rejected.
// Every error carries perr.ErrorCodeRuleSet
func Parse(data []byte) (*RuleSet, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, perr.RuleSetf("rulepack: empty document")
		}
		return nil, perr.Wrap(err, perr.ErrorCodeRuleSet, "rulepack: decode")
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	rs := &RuleSet{
		Name:    f.Name,
		Version: f.Name + "@" + hex.EncodeToString(sum[:6]),
		Rules:   f.Rules,
		Lexicon: normalizeLexicon(f.Lexicon),
	}
	rs.Compiled, rs.Failures = compileAll(rs.Rules)

	log := logger.Named("rulepack")
	for _, d := range rs.Failures {
		log.Error().Str("rule_id", d.RuleID).Str("rule_set", rs.Version).Msg(d.Message)
	}
	log.Debug().Str("rule_set", rs.Version).Int("rules", len(rs.Rules)).
		Int("disabled", len(rs.Failures)).Msg("rule set loaded")
	return rs, nil
}

// Rule returns the rule with id, if any
func (rs *RuleSet) Rule(id string) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Active returns enabled compiled rules for one phase, in processing order:
// preserve rules by declaration, the rest by priority desc then declaration
func (rs *RuleSet) Active(preserve bool) []*Compiled {
	var out []*Compiled
	for _, c := range rs.Compiled {
		if c.Disabled || (c.Rule.Action == ActionPreserve) != preserve {
			continue
		}
		out = append(out, c)
	}
	if !preserve {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rule.Priority > out[j].Rule.Priority })
	}
	return out
}

func normalizeLexicon(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for flag, terms := range in {
		flag = strings.ToLower(strings.TrimSpace(flag))
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			k := normalize.Key(t)
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out[flag] = append(out[flag], k)
		}
		sort.Strings(out[flag])
	}
	return out
}
