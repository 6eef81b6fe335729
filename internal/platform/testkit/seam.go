package testkit

import "testing"

// Swap replaces a package-level seam (function variable, flag, clock) for the
// duration of the test and restores it on cleanup. Tests using it must not run in parallel
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}
