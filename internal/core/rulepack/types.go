package rulepack

// Action is what a rule does to the text it matches
type Action string

const (
	ActionRemove     Action = "remove"
	ActionReplace    Action = "replace"
	ActionReframe    Action = "reframe"
	ActionPreserve   Action = "preserve"
	ActionFlag       Action = "flag"
	ActionQuarantine Action = "quarantine"
)

// Mutates reports whether the action changes rendered text inside its span
func (a Action) Mutates() bool {
	return a == ActionRemove || a == ActionReplace || a == ActionReframe
}

// MatchKind selects how patterns are matched
type MatchKind string

const (
	// MatchKeyword is a whole-word, case-insensitive literal
	MatchKeyword MatchKind = "keyword"
	// MatchPhrase is a word sequence with flexible whitespace, case-insensitive
	MatchPhrase MatchKind = "phrase"
	// MatchRegex is an RE2 expression over the original text
	MatchRegex MatchKind = "regex"
	// MatchFlag selects statements carrying a classifier flag
	MatchFlag MatchKind = "flag"
)

// MatchPlaceholder is replaced by the matched text in reframe templates
const MatchPlaceholder = "{match}"

// Match is a rule's single match spec
type Match struct {
	Kind     MatchKind `yaml:"kind" json:"kind" validate:"required,oneof=keyword phrase regex flag"`
	Patterns []string  `yaml:"patterns" json:"patterns" validate:"required,min=1,dive,required"`
}

// Condition holds declarative exemptions and context predicates.
// ContextIncludes needs every tag present; ContextExcludes needs none present
type Condition struct {
	ContextIncludes []string `yaml:"context_includes,omitempty" json:"context_includes,omitempty" validate:"dive,required"`
	ContextExcludes []string `yaml:"context_excludes,omitempty" json:"context_excludes,omitempty" validate:"dive,required"`
	ExemptFollowing []string `yaml:"exempt_following,omitempty" json:"exempt_following,omitempty" validate:"dive,required"`
	ExemptPreceding []string `yaml:"exempt_preceding,omitempty" json:"exempt_preceding,omitempty" validate:"dive,required"`
}

// Rule is one declared rule; immutable once loaded
type Rule struct {
	ID          string     `yaml:"id" json:"id" validate:"required,max=128"`
	Priority    int        `yaml:"priority" json:"priority"`
	Match       *Match     `yaml:"match" json:"match" validate:"required"`
	Condition   *Condition `yaml:"condition,omitempty" json:"condition,omitempty"`
	Action      Action     `yaml:"action" json:"action" validate:"required,oneof=remove replace reframe preserve flag quarantine"`
	Replacement string     `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	Reason      string     `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// File is the on-disk rule set document
type File struct {
	Version int                 `yaml:"version" json:"version" validate:"eq=1"`
	Name    string              `yaml:"name" json:"name" validate:"required,max=64"`
	Lexicon map[string][]string `yaml:"lexicon,omitempty" json:"lexicon,omitempty"`
	Rules   []Rule              `yaml:"rules" json:"rules" validate:"dive"`
}
