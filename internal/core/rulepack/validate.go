package rulepack

import (
	"fmt"
	"sort"
	"strings"

	perr "narrative/internal/platform/errors"
	"narrative/internal/platform/validate"
)

// Validate checks a decoded document: struct tags first, then the cross-field
// rules tags cannot express. The first failure wins and carries the offending
// field path, e.g. "rules[3].replacement"
func Validate(f *File) error {
	if err := validate.Struct(f); err != nil {
		e, _ := perr.As(err)
		field := ""
		if e != nil {
			field = e.Field()
		}
		return perr.WithField(perr.Wrapf(err, perr.ErrorCodeRuleSet, "rulepack: invalid %s", f.Name), field)
	}

	flags := make([]string, 0, len(f.Lexicon))
	for flag := range f.Lexicon {
		flags = append(flags, flag)
	}
	sort.Strings(flags)
	for _, flag := range flags {
		terms := f.Lexicon[flag]
		if strings.TrimSpace(flag) == "" {
			return ruleSetErr("lexicon", "lexicon flag name is empty")
		}
		for i, t := range terms {
			if strings.TrimSpace(t) == "" {
				return ruleSetErr(fmt.Sprintf("lexicon.%s[%d]", flag, i), "lexicon term is empty")
			}
		}
	}

	seen := make(map[string]int, len(f.Rules))
	for i, r := range f.Rules {
		at := func(field string) string { return fmt.Sprintf("rules[%d].%s", i, field) }
		if j, dup := seen[r.ID]; dup {
			return ruleSetErr(at("id"), "duplicate rule id %q (first declared at rules[%d])", r.ID, j)
		}
		seen[r.ID] = i

		switch r.Action {
		case ActionReplace, ActionReframe:
			if strings.TrimSpace(r.Replacement) == "" {
				return ruleSetErr(at("replacement"), "rule %q: %s needs a replacement", r.ID, r.Action)
			}
			if r.Action == ActionReplace && strings.Contains(r.Replacement, MatchPlaceholder) {
				return ruleSetErr(at("replacement"), "rule %q: %s is only expanded by reframe", r.ID, MatchPlaceholder)
			}
		default:
			if r.Replacement != "" {
				return ruleSetErr(at("replacement"), "rule %q: %s takes no replacement", r.ID, r.Action)
			}
		}

		if r.Match.Kind == MatchFlag && r.Action != ActionFlag && r.Action != ActionQuarantine {
			return ruleSetErr(at("match.kind"), "rule %q: flag matches only drive flag or quarantine", r.ID)
		}
	}
	return nil
}

func ruleSetErr(field, format string, a ...any) error {
	return perr.WithField(perr.RuleSetf("rulepack: "+format, a...), field)
}
