// Command narrative-rulecheck validates rule files and prints each one's
// processing order, so a pack can be checked before it is deployed
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"narrative/internal/core/narrative"
	"narrative/internal/core/rulepack"
	perr "narrative/internal/platform/errors"
)

type ruleLine struct {
	ID       string          `json:"id"`
	Phase    string          `json:"phase"`
	Priority int             `json:"priority"`
	Kind     string          `json:"kind"`
	Action   rulepack.Action `json:"action"`
}

type report struct {
	Path     string                 `json:"path"`
	Name     string                 `json:"name,omitempty"`
	Version  string                 `json:"version,omitempty"`
	Order    []ruleLine             `json:"order,omitempty"`
	Disabled []narrative.Diagnostic `json:"disabled,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Code     string                 `json:"code,omitempty"`
	Field    string                 `json:"field,omitempty"`
}

func must(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	var (
		useDefault = flag.Bool("default", false, "check the embedded default pack")
		pretty     = flag.Bool("pretty", true, "pretty-print JSON")
		strict     = flag.Bool("strict", false, "treat disabled rules as failures")
	)
	flag.Parse()

	paths := flag.Args()
	if *useDefault {
		paths = append([]string{""}, paths...)
	}
	if len(paths) == 0 {
		must(fmt.Errorf("usage: narrative-rulecheck [-default] [rules.yaml ...]"))
	}

	reports := make([]report, 0, len(paths))
	bad := 0
	for _, p := range paths {
		r := check(p)
		if r.Error != "" || (*strict && len(r.Disabled) > 0) {
			bad++
		}
		reports = append(reports, r)
	}

	var (
		enc []byte
		err error
	)
	if *pretty {
		enc, err = json.MarshalIndent(reports, "", "  ")
	} else {
		enc, err = json.Marshal(reports)
	}
	must(err)
	_, err = os.Stdout.Write(append(enc, '\n'))
	must(err)

	if bad > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "%d of %d rule files failed\n", bad, len(paths))
		os.Exit(1)
	}
}

// check loads one file; an empty path means the embedded pack
func check(path string) report {
	var (
		rs  *rulepack.RuleSet
		err error
	)
	r := report{Path: path}
	if path == "" {
		r.Path = "(embedded)"
		rs, err = rulepack.Default()
	} else {
		rs, err = rulepack.LoadFile(path)
	}
	if err != nil {
		r.Error = err.Error()
		if e, ok := perr.As(err); ok {
			r.Code = e.Code().String()
			r.Field = e.Field()
		}
		return r
	}
	r.Name = rs.Name
	r.Version = rs.Version
	r.Disabled = rs.Failures
	r.Order = append(lines(rs.Active(true), "preserve"), lines(rs.Active(false), "transform")...)
	return r
}

func lines(cs []*rulepack.Compiled, phase string) []ruleLine {
	out := make([]ruleLine, 0, len(cs))
	for _, c := range cs {
		out = append(out, ruleLine{
			ID:       c.Rule.ID,
			Phase:    phase,
			Priority: c.Rule.Priority,
			Kind:     string(c.Rule.Match.Kind),
			Action:   c.Rule.Action,
		})
	}
	return out
}
