package module

import (
	"sort"
	"sync"
)

// process-wide port registry filled while main composes modules;
// New functions register themselves so commands can look ports up by name
var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register stores the port set of a module; a later call for the same name wins
func Register(name string, ports any) {
	mu.Lock()
	defer mu.Unlock()
	reg[name] = ports
}

// PortsAs returns the port set registered under name when it is a T
func PortsAs[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	out, ok2 := v.(T)
	return out, ok && ok2
}

// Names lists registered module names, sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Reset empties the registry; tests only
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	reg = map[string]any{}
}
