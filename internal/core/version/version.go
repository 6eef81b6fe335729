// Package version stamps build information onto transformation results
package version

import (
	"runtime/debug"
	"sync"
)

// BuildInfo identifies the binary that produced a result
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// String renders "service version (commit)"
func (b BuildInfo) String() string {
	return b.Service + " " + b.Version + " (" + b.Commit + ")"
}

// Info returns the build information. Link-time values win:
// -ldflags "-X narrative/internal/core/version.version=v0.1.0
// -X narrative/internal/core/version.commit=abcd -X narrative/internal/core/version.date=2026-10-01".
// Without them the commit and date come from the module's vcs stamp when present
var Info = sync.OnceValue(func() BuildInfo { return resolve(debug.ReadBuildInfo()) })

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func resolve(bi *debug.BuildInfo, ok bool) BuildInfo {
	out := BuildInfo{Service: "narrative", Version: version, Commit: commit, Date: date}
	if !ok || bi == nil {
		return out
	}
	if out.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		out.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && out.Commit == "none":
			out.Commit = s.Value
			if len(out.Commit) > 12 {
				out.Commit = out.Commit[:12]
			}
		case s.Key == "vcs.time" && out.Date == "unknown":
			out.Date = s.Value
		}
	}
	return out
}
