package lexmatch

// Aho-Corasick automaton over bytes. Patterns and text are folded UTF-8, so a
// byte automaton matches multi-byte runes without decoding. Each node keeps a
// dense 256-way transition row: lexicons are small and scans are hot

const none = -1

type acNode struct {
	next   [256]int32
	fail   int32
	output []int32 // pattern ids ending here, suffix matches included
}

type automaton struct {
	nodes []acNode
	lens  []int // pattern byte length by id
}

func newNode() acNode {
	var n acNode
	for i := range n.next {
		n.next[i] = none
	}
	return n
}

func newAutomaton() *automaton {
	return &automaton{nodes: []acNode{newNode()}}
}

// add inserts pat under id; empty patterns are ignored
func (a *automaton) add(pat string, id int) {
	for len(a.lens) <= id {
		a.lens = append(a.lens, 0)
	}
	a.lens[id] = len(pat)
	if pat == "" {
		return
	}
	state := int32(0)
	for i := 0; i < len(pat); i++ {
		b := pat[i]
		nxt := a.nodes[state].next[b]
		if nxt == none {
			nxt = int32(len(a.nodes))
			a.nodes[state].next[b] = nxt
			a.nodes = append(a.nodes, newNode())
		}
		state = nxt
	}
	a.nodes[state].output = append(a.nodes[state].output, int32(id))
}

// build computes failure links breadth first and merges outputs along them
func (a *automaton) build() {
	queue := make([]int32, 0, len(a.nodes))
	for b := range 256 {
		if s := a.nodes[0].next[b]; s != none {
			a.nodes[s].fail = 0
			queue = append(queue, s)
		}
	}
	for qi := 0; qi < len(queue); qi++ {
		r := queue[qi]
		for b := range 256 {
			s := a.nodes[r].next[b]
			if s == none {
				continue
			}
			queue = append(queue, s)
			f := a.nodes[r].fail
			for f != 0 && a.nodes[f].next[b] == none {
				f = a.nodes[f].fail
			}
			if nxt := a.nodes[f].next[b]; nxt != none && nxt != s {
				a.nodes[s].fail = nxt
			} else {
				a.nodes[s].fail = 0
			}
			a.nodes[s].output = append(a.nodes[s].output, a.nodes[a.nodes[s].fail].output...)
		}
	}
}

// scan calls fn(end, id) for every occurrence; end is exclusive.
// Returning false stops the scan
func (a *automaton) scan(text string, fn func(end, id int) bool) {
	state := int32(0)
	for i := 0; i < len(text); i++ {
		b := text[i]
		for state != 0 && a.nodes[state].next[b] == none {
			state = a.nodes[state].fail
		}
		if nxt := a.nodes[state].next[b]; nxt != none {
			state = nxt
		}
		for _, id := range a.nodes[state].output {
			if !fn(i+1, int(id)) {
				return
			}
		}
	}
}
