package modkit

// Built is a plain struct with the fields modules care about
type Built struct {
	Name  string
	Ports any

	// lifecycle hooks set via options; never nil
	OnStart func()
	OnStop  func()
}

// Build applies Option funcs to an internal buildCfg and returns a plain struct
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	return Built{
		Name:    c.name,
		Ports:   c.ports,
		OnStart: chain(c.onStart),
		OnStop:  chain(c.onStop),
	}
}

// chain copies fns so later option mutation cannot leak into a built module
func chain(fns []func()) func() {
	fns = append([]func(){}, fns...)
	return func() {
		for _, fn := range fns {
			fn()
		}
	}
}
