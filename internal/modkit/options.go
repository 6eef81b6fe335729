package modkit

// Option mutates build configuration for a module
type Option func(*buildCfg)

// buildCfg is internal wiring state for options
type buildCfg struct {
	name    string
	ports   any
	onStart []func()
	onStop  []func()
}

// WithName sets a module name used in logs and registry
func WithName(name string) Option {
	return func(c *buildCfg) { c.name = name }
}

// WithPorts injects cross module ports declared by another module
// the concrete type is owned by the importing module
func WithPorts[T any](p T) Option {
	return func(c *buildCfg) { c.ports = p }
}

// WithOnStart registers a hook run after the module started, in order
func WithOnStart(fn func()) Option {
	return func(c *buildCfg) { c.onStart = append(c.onStart, fn) }
}

// WithOnStop registers a hook run after the module stopped, in order
func WithOnStop(fn func()) Option {
	return func(c *buildCfg) { c.onStop = append(c.onStop, fn) }
}
