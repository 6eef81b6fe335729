package modkit

import "testing"

func TestWithName(t *testing.T) {
	t.Parallel()
	var c buildCfg
	WithName("transform")(&c)
	if c.name != "transform" {
		t.Fatalf("expected name=transform got=%q", c.name)
	}
}

func TestWithPorts_GenericStoresConcreteType(t *testing.T) {
	t.Parallel()

	type Ports struct {
		Hello string
		N     int
	}

	var c buildCfg
	WithPorts(Ports{Hello: "world", N: 7})(&c)

	ps, ok := c.ports.(Ports)
	if !ok {
		t.Fatalf("expected ports of type Ports got %T", c.ports)
	}
	if ps.Hello != "world" || ps.N != 7 {
		t.Fatalf("unexpected ports value: %+v", ps)
	}
}

func TestWithHooks_Accumulate(t *testing.T) {
	t.Parallel()

	var c buildCfg
	WithOnStart(func() {})(&c)
	WithOnStart(func() {})(&c)
	WithOnStop(func() {})(&c)

	if len(c.onStart) != 2 || len(c.onStop) != 1 {
		t.Fatalf("expected 2 start and 1 stop hooks got=%d/%d", len(c.onStart), len(c.onStop))
	}
}
