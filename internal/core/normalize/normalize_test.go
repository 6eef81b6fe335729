package normalize

import (
	"testing"

	"narrative/internal/core/narrative"
)

func TestKey_Table(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{name: "identity ascii", in: "cover-up", out: "cover-up"},
		{name: "case fold", in: "Protect Their OWN", out: "protect their own"},
		{name: "collapse and trim", in: "  wanted \t to  ", out: "wanted to"},
		{name: "zero widths removed", in: "th\u200bug", out: "thug"},
		{name: "nfc composes", in: "cafe\u0301", out: "caf\u00e9"},
		{name: "invalid utf8 dropped", in: string([]byte{0xff, 'c', 'o', 'p'}), out: "cop"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Key(tc.in)
			if got != tc.out {
				t.Fatalf("Key(%q) = %q, want %q", tc.in, got, tc.out)
			}
			if again := Key(got); again != got {
				t.Fatalf("Key not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestFold_PreservesOffsets(t *testing.T) {
	for _, in := range []string{
		"He Yelled STOP",
		"ÉCOLE Ünter",
		"İstanbul", // lowercase of U+0130 is wider in some mappings
		"ẞ straße",
		string([]byte{'A', 0xff, 'B'}),
	} {
		got := Fold(in)
		if len(got) != len(in) {
			t.Fatalf("Fold(%q) changed length %d -> %d", in, len(in), len(got))
		}
	}
	if got := Fold("He Yelled STOP"); got != "he yelled stop" {
		t.Fatalf("Fold ascii = %q", got)
	}
	if got := Fold("ÉCOLE"); got != "école" {
		t.Fatalf("Fold latin = %q", got)
	}
	s := "already lower"
	if got := Fold(s); got != s {
		t.Fatalf("Fold clean = %q", got)
	}
}

func TestInserted(t *testing.T) {
	if got := Inserted("ｏｆｆｉｃｅｒ"); got != "officer" {
		t.Fatalf("width fold = %q", got)
	}
	if got := Inserted("described  as\n{x}"); got != "described as {x}" {
		t.Fatalf("collapse = %q", got)
	}
	if got := Inserted(" appeared to "); got != " appeared to " {
		t.Fatalf("edges must survive, got %q", got)
	}
	if got := Inserted("a\x00b\u0085c"); got != "abc" {
		t.Fatalf("controls = %q", got)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct{ in, out string }{
		{"plain text", "plain text"},
		{"keep\nnew\tlines\r", "keep\nnew\tlines\r"},
		{"nul\x00del\x7f", "nuldel"},
		{"c1\u0085x", "c1x"},
		{string([]byte{'o', 0xc3, 'k'}), "ok"},
	}
	for _, tc := range tests {
		if got := Sanitize(tc.in); got != tc.out {
			t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestDetectZones(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []narrative.Span
	}{
		{name: "none", in: "He left.", want: nil},
		{name: "straight", in: `He yelled "STOP RIGHT THERE!"`, want: []narrative.Span{{Start: 10, End: 29}}},
		{name: "two pairs", in: `"a" and "b"`, want: []narrative.Span{{Start: 0, End: 3}, {Start: 8, End: 11}}},
		{name: "curly", in: "She said “go” twice", want: []narrative.Span{{Start: 9, End: 17}}},
		{name: "unterminated", in: `He said "wait`, want: []narrative.Span{{Start: 8, End: 13}}},
		{name: "block quote line", in: "intro\n> quoted line\nafter", want: []narrative.Span{{Start: 6, End: 19}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := QuoteSpans(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("QuoteSpans(%q) = %v, want %v", tc.in, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("span %d = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestInZone(t *testing.T) {
	zs := DetectZones(`x "yz" w`)
	if !InZone(zs, 2) || !InZone(zs, 5) {
		t.Fatalf("quote marks belong to the zone: %v", zs)
	}
	if InZone(zs, 6) || InZone(zs, 0) {
		t.Fatalf("outside bytes reported in zone: %v", zs)
	}
}
