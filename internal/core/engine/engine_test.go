package engine

import (
	"context"
	"testing"

	"narrative/internal/core/classify"
	"narrative/internal/core/decompose"
	"narrative/internal/core/ledger"
	"narrative/internal/core/narrative"
	"narrative/internal/core/render"
	"narrative/internal/core/rulepack"
	perr "narrative/internal/platform/errors"
	kit "narrative/internal/platform/testkit"
)

func mustParse(t testing.TB, doc string) *rulepack.RuleSet {
	t.Helper()
	rs, err := rulepack.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return rs
}

type outcome struct {
	sts    []narrative.Statement
	all    []ledger.Decision // classifier and engine
	engine []ledger.Decision
	diags  []narrative.Diagnostic
	text   string
}

// runSegment takes one segment through decompose, classify, engine and render
func runSegment(t testing.TB, rs *rulepack.RuleSet, text string, tags ...string) outcome {
	t.Helper()
	sg := narrative.Segment{ID: "s", Text: text, EndChar: len(text), Context: tags}
	sts := decompose.New().Decompose(sg)
	led := ledger.New()
	if _, err := classify.ForRuleSet(rs).Classify(sg, sts, led); err != nil {
		t.Fatalf("classify: %v", err)
	}
	diags, err := New(rs).Apply(context.Background(), sg, sts, led)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	snap := led.Freeze()
	out := outcome{sts: sts, all: snap.All(), diags: diags, text: render.Segment(sg, sts, snap.ForSegment("s"))}
	for _, d := range out.all {
		if d.RuleID != ledger.ClassifierRuleID {
			out.engine = append(out.engine, d)
		}
	}
	return out
}

func ruleIDs(ds []ledger.Decision) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.RuleID)
	}
	return out
}

func TestApply_OverlapAppliesHigherPriorityOnce(t *testing.T) {
	rs := mustParse(t, `
version: 1
name: b
rules:
  - id: thug-cop
    priority: 100
    match: {kind: phrase, patterns: [thug cop]}
    action: replace
    replacement: officer
  - id: cop
    priority: 60
    match: {kind: keyword, patterns: [cop]}
    action: replace
    replacement: officer
`)
	out := runSegment(t, rs, "thug cop")
	if len(out.engine) != 1 {
		t.Fatalf("want exactly one decision, got %+v", out.engine)
	}
	d := out.engine[0]
	kit.MustEqual(t, "thug-cop", d.RuleID)
	kit.MustEqual(t, []string{"cop"}, d.Merged)
	kit.MustEqual(t, narrative.Span{Start: 0, End: 8}, d.Span())
	kit.MustEqual(t, "officer", out.text)
}

func TestApply_TokenGroupMerge(t *testing.T) {
	halves := `
version: 1
name: halves
rules:
  - {id: thug, priority: 50, match: {kind: keyword, patterns: [thug]}, action: replace, replacement: officer}
  - {id: cop, priority: 40, match: {kind: keyword, patterns: [cop]}, action: replace, replacement: Officer}
`
	out := runSegment(t, mustParse(t, halves), "the thug cop left")
	if len(out.engine) != 1 {
		t.Fatalf("halves with one outcome must merge, got %+v", out.engine)
	}
	kit.MustEqual(t, []string{"cop"}, out.engine[0].Merged)
	kit.MustEqual(t, "the officer left", out.text)

	// a rule never merges with itself
	out = runSegment(t, mustParse(t, halves), "cop cop")
	kit.MustEqual(t, []string{"cop", "cop"}, ruleIDs(out.engine))
	kit.MustEqual(t, "Officer Officer", out.text)

	// different outcomes stay separate decisions
	out = runSegment(t, mustParse(t, `
version: 1
name: split
rules:
  - {id: thug, priority: 50, match: {kind: keyword, patterns: [thug]}, action: remove}
  - {id: cop, priority: 40, match: {kind: keyword, patterns: [cop]}, action: replace, replacement: officer}
`), "thug cop")
	kit.MustEqual(t, []string{"thug", "cop"}, ruleIDs(out.engine))
	kit.MustEqual(t, "officer", out.text)
}

func TestApply_MergeYieldsToHigherPriorityRule(t *testing.T) {
	rs := mustParse(t, `
version: 1
name: contest
rules:
  - {id: thug, priority: 100, match: {kind: keyword, patterns: [thug]}, action: replace, replacement: officer}
  - {id: cop-car, priority: 80, match: {kind: phrase, patterns: [cop car]}, action: replace, replacement: patrol vehicle}
  - {id: cop, priority: 60, match: {kind: keyword, patterns: [cop]}, action: replace, replacement: officer}
`)
	out := runSegment(t, rs, "the thug cop car arrived")
	kit.MustEqual(t, []string{"thug", "cop-car"}, ruleIDs(out.engine))
	if len(out.engine[0].Merged) != 0 {
		t.Fatalf("thug must not pull in cop ahead of cop-car: %+v", out.engine[0])
	}
	kit.MustEqual(t, "the officer patrol vehicle arrived", out.text)

	// with nothing ranked between them the halves still merge
	out = runSegment(t, rs, "the thug cop arrived")
	kit.MustEqual(t, []string{"thug"}, ruleIDs(out.engine))
	kit.MustEqual(t, []string{"cop"}, out.engine[0].Merged)
	kit.MustEqual(t, "the officer arrived", out.text)
}

func TestApply_ExemptionsAndIntent(t *testing.T) {
	rs := mustParse(t, `
version: 1
name: c
rules:
  - id: wanted-to
    priority: 50
    match: {kind: phrase, patterns: [wanted to]}
    condition:
      exempt_following: [go, get, home]
      exempt_preceding: [we]
    action: reframe
    replacement: appeared to
`)
	out := runSegment(t, rs, "I just wanted to get home")
	if len(out.all) != 0 {
		t.Fatalf("want zero decisions, got %+v", out.all)
	}
	kit.MustEqual(t, "I just wanted to get home", out.text)

	out = runSegment(t, rs, "We wanted to stay")
	if len(out.engine) != 0 {
		t.Fatalf("preceding exemption ignored: %+v", out.engine)
	}

	out = runSegment(t, rs, "He wanted  to hurt me")
	kit.MustEqual(t, []string{"wanted-to"}, ruleIDs(out.engine))
	kit.MustEqual(t, "He appeared to hurt me", out.text)
}

func TestApply_QuotedSpeechProtected(t *testing.T) {
	rs := mustParse(t, `
version: 1
name: d
rules:
  - {id: stop, priority: 10, match: {kind: keyword, patterns: [stop]}, action: replace, replacement: halt}
  - {id: there, priority: 5, match: {kind: regex, patterns: ['(?i)there']}, action: remove}
`)
	text := `He yelled "STOP RIGHT THERE!"`
	out := runSegment(t, rs, text)
	if len(out.engine) != 0 {
		t.Fatalf("rule fired inside quotation: %+v", out.engine)
	}
	kit.MustEqual(t, []string{ledger.ClassifierRuleID}, ruleIDs(out.all))
	kit.MustEqual(t, text, out.text)
}

func TestApply_ConspiracyStatementQuarantined(t *testing.T) {
	out := runSegment(t, rulepack.MustDefault(), "They always protect their own, massive cover-up")
	if len(out.sts) != 1 || !out.sts[0].IsAberrated {
		t.Fatalf("statement not aberrated: %+v", out.sts)
	}
	st := out.sts[0]
	if st.AttributedText != nil {
		t.Fatal("aberrated statement carries attributed text")
	}
	kit.MustContain(t, st.AberrationNote, "conspiracy")
	kit.MustEqual(t, []string{"quarantine-conspiracy"}, ruleIDs(out.engine))
	kit.MustEqual(t, st.ID, out.engine[0].OwnerID)
	kit.MustEqual(t, "", out.text)
}

func TestApply_QuarantineBlockedByProtection(t *testing.T) {
	out := runSegment(t, rulepack.MustDefault(), `He said "you pig"`)
	if out.sts[0].IsAberrated {
		t.Fatal("quarantine swallowed a protected quotation")
	}
	if len(out.diags) != 1 || out.diags[0].Kind != narrative.DiagQuarantineBlocked {
		t.Fatalf("want one quarantine_blocked diagnostic, got %+v", out.diags)
	}
	kit.MustEqual(t, `He said "you pig"`, out.text)
}

func TestApply_QuarantineByKeyword(t *testing.T) {
	rs := mustParse(t, `
version: 1
name: q
rules:
  - {id: scum, priority: 10, match: {kind: keyword, patterns: [scum, liars]}, action: quarantine, reason: invective}
`)
	out := runSegment(t, rs, "He hit me and they are scum and liars")
	kit.MustEqual(t, []string{"scum"}, ruleIDs(out.engine))
	kit.MustEqual(t, "He hit me", out.text)
	if !out.sts[len(out.sts)-1].IsAberrated {
		t.Fatalf("last statement not aberrated: %+v", out.sts)
	}
}

func TestApply_PriorityConsumption(t *testing.T) {
	rs := mustParse(t, `
version: 1
name: p
rules:
  - {id: lo, priority: 10, match: {kind: keyword, patterns: [me]}, action: replace, replacement: them}
  - {id: hi, priority: 90, match: {kind: keyword, patterns: [hit me]}, action: remove}
  - {id: tie-a, priority: 10, match: {kind: keyword, patterns: [door]}, action: replace, replacement: gate}
  - {id: tie-b, priority: 10, match: {kind: keyword, patterns: [the door]}, action: remove}
`)
	out := runSegment(t, rs, "He hit me at the door")
	kit.MustEqual(t, []string{"hi", "tie-a"}, ruleIDs(out.engine))
	kit.MustEqual(t, "He at the gate", out.text)
}

func TestApply_Context(t *testing.T) {
	rs := mustParse(t, `
version: 1
name: ctx
rules:
  - id: legal
    priority: 80
    match: {kind: keyword, patterns: [assault]}
    condition: {context_excludes: [charge_description]}
    action: reframe
    replacement: "alleged {match}"
  - id: only-trial
    priority: 10
    match: {kind: keyword, patterns: [judge]}
    condition: {context_includes: [trial, courtroom]}
    action: flag
`)
	out := runSegment(t, rs, "Assault by the judge")
	kit.MustEqual(t, []string{"legal"}, ruleIDs(out.engine))
	kit.MustEqual(t, "Alleged Assault by the judge", out.text)

	out = runSegment(t, rs, "Assault by the judge", "charge_description", "trial")
	kit.MustEqual(t, 0, len(out.engine))

	out = runSegment(t, rs, "Assault by the judge", "charge_description", "trial", "courtroom")
	kit.MustEqual(t, []string{"only-trial"}, ruleIDs(out.engine))
	kit.MustEqual(t, "Assault by the judge", out.text)
}

func TestApply_PreservePhase(t *testing.T) {
	rs := mustParse(t, `
version: 1
name: keep
rules:
  - {id: badge, match: {kind: regex, patterns: ['badge \d+']}, action: preserve}
  - {id: number-today, match: {kind: regex, patterns: ['\d+ today']}, action: preserve}
  - {id: digits, match: {kind: regex, patterns: ['\d+']}, action: preserve}
  - {id: drop-badge, priority: 99, match: {kind: keyword, patterns: [badge, today]}, action: remove}
`)
	out := runSegment(t, rs, "badge 42 today")
	kit.MustEqual(t, []string{"badge", "drop-badge"}, ruleIDs(out.all))
	if len(out.diags) != 1 || out.diags[0].Kind != narrative.DiagConflict || out.diags[0].RuleID != "number-today" {
		t.Fatalf("want one conflict for number-today, got %+v", out.diags)
	}
	// today is not protected: the losing preserve rule recorded nothing
	kit.MustEqual(t, "badge 42", out.text)
}

func TestApply_Owners(t *testing.T) {
	out := runSegment(t, rulepack.MustDefault(), "He clearly hit me and the cop ran")
	owners := map[string]string{}
	for _, d := range out.engine {
		owners[d.RuleID] = d.OwnerID
	}
	kit.MustEqual(t, map[string]string{"remove-certainty": "s:1", "replace-cop": "s:2"}, owners)
	kit.MustEqual(t, "He hit me and the officer ran", out.text)
}

func TestApply_DisabledRuleSkipped(t *testing.T) {
	rs := mustParse(t, `
version: 1
name: broken
rules:
  - {id: bad, priority: 90, match: {kind: regex, patterns: ['(']}, action: remove}
  - {id: good, priority: 10, match: {kind: keyword, patterns: [cop]}, action: replace, replacement: officer}
`)
	if len(rs.Failures) != 1 {
		t.Fatalf("want one compile failure, got %+v", rs.Failures)
	}
	out := runSegment(t, rs, "the cop (left)")
	kit.MustEqual(t, []string{"good"}, ruleIDs(out.engine))
}

func TestApply_Errors(t *testing.T) {
	e := New(rulepack.MustDefault())
	sg := narrative.Segment{ID: "s", Text: "the cop ran", EndChar: 11}
	sts := decompose.New().Decompose(sg)

	if _, err := e.Apply(context.Background(), sg, sts, nil); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("nil ledger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Apply(ctx, sg, sts, ledger.New()); !perr.IsCode(err, perr.ErrorCodeTimeout) {
		t.Fatalf("cancelled context: %v", err)
	}
}

func TestApply_Deterministic(t *testing.T) {
	rs := rulepack.MustDefault()
	text := "The cop clearly wanted to hurt me and the cops literally covered it up, badge 7731 saw it"
	first := runSegment(t, rs, text)
	for i := 0; i < 20; i++ {
		again := runSegment(t, rs, text)
		kit.MustEqual(t, first.all, again.all)
		kit.MustEqual(t, first.text, again.text)
	}
}

func TestShapeCase(t *testing.T) {
	tests := []struct{ matched, text, want string }{
		{"cop", "officer", "officer"},
		{"Cop", "officer", "Officer"},
		{"COPS", "officers", "OFFICERS"},
		{"I", "we", "We"},
		{"Cop", "", ""},
	}
	for _, tt := range tests {
		kit.MustEqual(t, tt.want, shapeCase(tt.matched, tt.text))
	}
	kit.MustEqual(t, "ALLEGED ASSAULT", reframe("ASSAULT", "alleged {match}"))
	kit.MustEqual(t, "{x} Battery, allegedly", reframe("Battery", "{x} {match}, allegedly"))
}
