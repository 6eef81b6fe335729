package classify

import "strings"

// Tier confidences. Fixed, never learned
const (
	ConfidenceQuote          = 0.95
	ConfidenceObservation    = 0.85
	ConfidenceInterpretation = 0.80
	ConfidenceClaim          = 0.70
	ConfidenceAmbiguous      = 0.50
)

type marker struct {
	words []string
	// mental marks a mental-state marker; certainty adverbs are not one
	mental bool
}

func seq(s string, mental bool) marker { return marker{words: strings.Fields(s), mental: mental} }

// intent and certainty markers, longest first where they share a prefix
var interpretationMarkers = []marker{
	seq("wanted to", true),
	seq("wants to", true),
	seq("intended to", true),
	seq("intends to", true),
	seq("meant to", true),
	seq("tried to", true),
	seq("trying to", true),
	seq("on purpose", true),
	seq("deliberately", true),
	seq("purposely", true),
	seq("believe", true),
	seq("believes", true),
	seq("clearly", false),
	seq("obviously", false),
}

// adverbs skipped when looking for the subject of a marker or verb
var adverbs = set(
	"just", "really", "only", "simply", "actually", "clearly", "obviously",
	"deliberately", "purposely", "probably", "then", "also", "still", "even",
	"never", "always", "suddenly", "immediately", "finally", "all",
)

var firstPerson = set("i", "we")

// sensory, experiential, speech-act and involuntary-reaction verbs that make
// a first-person statement an observation
var observationVerbs = set(
	"saw", "see", "seen", "watched", "noticed", "heard", "hear", "felt", "feel",
	"smelled", "tasted",
	"was", "were", "am", "got",
	"said", "told", "yelled", "screamed", "shouted", "asked", "called", "cried",
	"begged", "pleaded", "whispered", "answered", "replied",
	"flinched", "froze", "gasped", "winced", "shook", "trembled", "fell",
	"fainted", "panicked", "blacked",
)

// hedges that leave an otherwise unmarked statement ambiguous
var hedges = []marker{
	seq("maybe", false),
	seq("perhaps", false),
	seq("probably", false),
	seq("possibly", false),
	seq("might", false),
	seq("i think", false),
	seq("i guess", false),
	seq("i suppose", false),
	seq("seemed", false),
	seq("kind of", false),
	seq("sort of", false),
	seq("not sure", false),
}

func set(ws ...string) map[string]bool {
	m := make(map[string]bool, len(ws))
	for _, w := range ws {
		m[w] = true
	}
	return m
}
