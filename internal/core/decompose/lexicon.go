package decompose

import (
	"strings"

	"narrative/internal/core/narrative"
)

type connector struct {
	typ narrative.ClauseType
	// needSubject: only a boundary when a subject-like word follows
	// ("so fast", "before noon", "while walking" stay whole)
	needSubject bool
	// needVerbs: only a boundary when both sides carry a verb-like word
	// ("salt and pepper" stays whole)
	needVerbs bool
}

var connectors = map[string]connector{
	"and":      {typ: narrative.ClauseCoordinate, needVerbs: true},
	"or":       {typ: narrative.ClauseCoordinate, needVerbs: true},
	"but":      {typ: narrative.ClauseContrastive, needVerbs: true},
	"because":  {typ: narrative.ClauseCausal},
	"so":       {typ: narrative.ClauseCausal, needSubject: true},
	"since":    {typ: narrative.ClauseCausal, needSubject: true},
	"then":     {typ: narrative.ClauseTemporal, needSubject: true},
	"after":    {typ: narrative.ClauseTemporal, needSubject: true},
	"before":   {typ: narrative.ClauseTemporal, needSubject: true},
	"while":    {typ: narrative.ClauseTemporal, needSubject: true},
	"however":  {typ: narrative.ClauseContrastive},
	"although": {typ: narrative.ClauseContrastive, needSubject: true},
}

// words that turn a following connector word into a modifier of one predicate
var prepositionalAfter = map[string]map[string]bool{
	"because": {"of": true},
}

var subjectWords = set(
	"i", "you", "he", "she", "it", "we", "they",
	"someone", "somebody", "everyone", "everybody", "nobody", "no-one", "one",
	"the", "a", "an", "my", "your", "his", "her", "its", "our", "their",
	"this", "that", "these", "those", "another", "both", "each",
	"officer", "officers", "police",
)

var auxiliaries = set(
	"is", "was", "were", "are", "am", "be", "been", "being",
	"has", "had", "have", "do", "did", "does",
	"will", "would", "can", "could", "should", "shall", "may", "might", "must",
)

// irregular and short verbs the -ed heuristic misses
var commonVerbs = set(
	"go", "goes", "went", "run", "runs", "ran", "hit", "hits", "take", "took",
	"say", "says", "said", "tell", "told", "see", "saw", "seen", "feel", "felt",
	"come", "came", "get", "got", "put", "throw", "threw", "keep", "kept",
	"leave", "left", "make", "made", "hold", "held", "begin", "began", "stand",
	"stood", "fall", "fell", "sit", "sat", "shoot", "shot", "strike", "struck",
	"hear", "heard", "know", "knew", "think", "thought", "find", "found",
	"give", "gave", "drive", "drove", "fight", "fought", "catch", "caught",
	"bring", "brought", "hurt", "cut", "beat", "lie", "lay", "lied",
	"protect", "protects", "want", "wants", "try", "tries", "yell", "yells",
	"grab", "grabs", "push", "pushes", "pull", "pulls", "twist", "twists",
	"scream", "screams", "shout", "shouts", "walk", "walks", "ask", "asks",
	"refuse", "refused", "stop", "stops", "cry", "cries", "hide", "hid",
	"call", "calls", "search", "searches", "wait", "waits",
)

func set(ws ...string) map[string]bool {
	m := make(map[string]bool, len(ws))
	for _, w := range ws {
		m[w] = true
	}
	return m
}

func subjectLike(w string) bool { return subjectWords[w] }

func verbLike(w string) bool {
	w = strings.TrimSuffix(w, "n't")
	w = strings.TrimSuffix(w, "n’t")
	switch {
	case auxiliaries[w], commonVerbs[w]:
		return true
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		return true
	}
	return false
}
