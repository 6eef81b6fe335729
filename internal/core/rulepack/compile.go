package rulepack

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"narrative/internal/core/narrative"
	"narrative/internal/core/normalize"

	gocache "github.com/patrickmn/go-cache"
)

// Compiled is a rule prepared for matching
type Compiled struct {
	Rule  Rule
	Index int // declaration order

	// Keys holds normalized keyword or flag patterns
	Keys []string
	// Regexps holds phrase and regex patterns, 1:1 with Rule.Match.Patterns
	Regexps []*regexp.Regexp

	// exemption word sequences, normalized; preceding ones in reading order
	Following [][]string
	Preceding [][]string

	Disabled bool
}

// ContextAllows applies the segment-level context predicates
func (c *Compiled) ContextAllows(has func(tag string) bool) bool {
	cond := c.Rule.Condition
	if cond == nil {
		return true
	}
	for _, tag := range cond.ContextIncludes {
		if !has(tag) {
			return false
		}
	}
	for _, tag := range cond.ContextExcludes {
		if has(tag) {
			return false
		}
	}
	return true
}

// patterns caches compiled expressions across reloads; a rule file edit that
// touches one rule recompiles one pattern. No janitor goroutine: expired
// entries are swept on each compile pass
var patterns = gocache.New(30*time.Minute, 0)

// CachedPatterns reports how many compiled expressions are cached
func CachedPatterns() int { return patterns.ItemCount() }

func compileAll(rules []Rule) ([]*Compiled, []narrative.Diagnostic) {
	patterns.DeleteExpired()

	out := make([]*Compiled, len(rules))
	var failures []narrative.Diagnostic
	for i := range rules {
		c, err := compileRule(rules[i], i)
		if err != nil {
			c.Disabled = true
			failures = append(failures, narrative.Diagnostic{
				Kind:     narrative.DiagRuleCompile,
				Severity: narrative.SeverityError,
				RuleID:   rules[i].ID,
				Message:  err.Error(),
			})
		}
		out[i] = c
	}
	return out, failures
}

func compileRule(r Rule, idx int) (*Compiled, error) {
	c := &Compiled{Rule: r, Index: idx}
	if r.Condition != nil {
		c.Following = wordSeqs(r.Condition.ExemptFollowing)
		c.Preceding = wordSeqs(r.Condition.ExemptPreceding)
	}

	for _, p := range r.Match.Patterns {
		switch r.Match.Kind {
		case MatchKeyword:
			k := normalize.Key(p)
			if k == "" {
				return c, fmt.Errorf("rule %q: keyword %q is blank", r.ID, p)
			}
			c.Keys = append(c.Keys, k)
		case MatchFlag:
			c.Keys = append(c.Keys, strings.ToLower(strings.TrimSpace(p)))
		case MatchPhrase:
			expr, err := phraseExpr(p)
			if err != nil {
				return c, fmt.Errorf("rule %q: %w", r.ID, err)
			}
			re, err := cachedCompile(expr)
			if err != nil {
				return c, fmt.Errorf("rule %q: phrase %q: %w", r.ID, p, err)
			}
			c.Regexps = append(c.Regexps, re)
		case MatchRegex:
			re, err := cachedCompile(p)
			if err != nil {
				return c, fmt.Errorf("rule %q: regex %q: %w", r.ID, p, err)
			}
			c.Regexps = append(c.Regexps, re)
		}
	}
	return c, nil
}

// phraseExpr turns "wanted  to" into (?i)wanted\s+to
func phraseExpr(p string) (string, error) {
	words := strings.Fields(normalize.Key(p))
	if len(words) == 0 {
		return "", fmt.Errorf("phrase %q has no words", p)
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return `(?i)` + strings.Join(words, `\s+`), nil
}

func cachedCompile(expr string) (*regexp.Regexp, error) {
	if v, ok := patterns.Get(expr); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	patterns.SetDefault(expr, re)
	return re, nil
}

func wordSeqs(in []string) [][]string {
	var out [][]string
	for _, s := range in {
		if ws := strings.Fields(normalize.Key(s)); len(ws) > 0 {
			out = append(out, ws)
		}
	}
	return out
}
