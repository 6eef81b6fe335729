package decompose

import (
	"testing"

	"narrative/internal/core/narrative"
)

func TestLexicalSensor_Boundaries(t *testing.T) {
	text := "He grabbed my arm and twisted it because he wanted to hurt me."
	bs := LexicalSensor{}.Boundaries(text)
	if len(bs) != 2 {
		t.Fatalf("want 2 boundaries, got %+v", bs)
	}
	if bs[0].Type != narrative.ClauseCoordinate || !bs[0].SharedSubject || text[bs[0].Start:bs[0].End] != " and " {
		t.Fatalf("first boundary %+v", bs[0])
	}
	if bs[1].Type != narrative.ClauseCausal || bs[1].SharedSubject || bs[1].Connector != "because" {
		t.Fatalf("second boundary %+v", bs[1])
	}
}

func TestLexicalSensor_However(t *testing.T) {
	text := "I complied; however, he struck me."
	bs := LexicalSensor{}.Boundaries(text)
	if len(bs) != 1 || bs[0].Type != narrative.ClauseContrastive {
		t.Fatalf("boundaries %+v", bs)
	}
	if got := text[bs[0].Start:bs[0].End]; got != "; however, " {
		t.Fatalf("gap = %q", got)
	}
}

func TestVerbLike(t *testing.T) {
	for _, w := range []string{"grabbed", "was", "didn't", "couldn’t", "went"} {
		if !verbLike(w) {
			t.Fatalf("verbLike(%q) = false", w)
		}
	}
	for _, w := range []string{"red", "arm", "pepper", "bed"} {
		if verbLike(w) {
			t.Fatalf("verbLike(%q) = true", w)
		}
	}
}
