// Command narrative-transform runs transformation requests read as JSON
// (one request object or an array of them) and writes the results as JSON
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"strconv"

	"narrative/internal/core/narrative"
	"narrative/internal/modkit"
	"narrative/internal/modkit/module"
	"narrative/internal/platform/config"
	perr "narrative/internal/platform/errors"
	"narrative/internal/platform/logger"
	transformdom "narrative/internal/services/transform/domain"
	transformmod "narrative/internal/services/transform/module"
)

func mustSetEnv(k, v string) {
	if v != "" {
		_ = os.Setenv(k, v)
	}
}

// output is one batch entry as written to stdout
type output struct {
	Index       int                    `json:"index"`
	RequestID   string                 `json:"request_id"`
	Result      *transformdom.Result   `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Code        string                 `json:"code,omitempty"`
	Diagnostics []narrative.Diagnostic `json:"diagnostics,omitempty"`
}

func main() {
	var (
		in       = flag.String("in", "-", "input file, - for stdin")
		text     = flag.Bool("text", false, "treat input as plain narrative text, one segment")
		rules    = flag.String("rules", "", "rule file (default: embedded pack)")
		workers  = flag.Int("workers", 0, "batch concurrency (>=1)")
		shared   = flag.String("shared-subject", "", "shared-subject coordination: split|keep")
		maxBytes = flag.Int("max-segment-bytes", 0, "reject longer segments (0 = config default)")
		pretty   = flag.Bool("pretty", false, "indent JSON output")
	)
	flag.Parse()

	logger.Init(logger.FromEnv())
	l := logger.Get()

	// Pass CLI flags into CORE_TRANSFORM_* so the module can read its own config
	mustSetEnv("CORE_TRANSFORM_RULES_PATH", *rules)
	mustSetEnv("CORE_TRANSFORM_SHARED_SUBJECT", *shared)
	if *workers > 0 {
		mustSetEnv("CORE_TRANSFORM_WORKERS", strconv.Itoa(*workers))
	}
	if *maxBytes > 0 {
		mustSetEnv("CORE_TRANSFORM_MAX_SEGMENT_BYTES", strconv.Itoa(*maxBytes))
	}

	raw, err := readInput(*in)
	if err != nil {
		l.Fatal().Err(err).Str("in", *in).Msg("read input failed")
	}
	reqs, err := decode(raw, *text)
	if err != nil {
		l.Fatal().Err(err).Msg("decode input failed")
	}

	deps := modkit.Deps{Cfg: config.New(), Log: *l}
	tm, err := transformmod.New(deps, transformmod.Options{})
	if err != nil {
		l.Fatal().Err(err).Msg("transform module failed")
	}
	if err := tm.Start(context.Background()); err != nil {
		l.Fatal().Err(err).Msg("transform module start failed")
	}
	defer tm.Stop()

	ports := module.MustPortsOf[transformdom.TransformerPort](tm)
	items := ports.TransformBatch(context.Background(), reqs)

	out := make([]output, len(items))
	failed := 0
	for i, it := range items {
		out[i] = output{Index: it.Index, RequestID: it.RequestID, Result: it.Result, Diagnostics: it.Diagnostics}
		if it.Err != nil {
			failed++
			out[i].Error = it.Err.Error()
			out[i].Code = perr.CodeOf(it.Err).String()
		}
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		l.Fatal().Err(err).Msg("write output failed")
	}
	if failed > 0 {
		l.Warn().Int("failed", failed).Int("requests", len(items)).Msg("some requests failed")
		tm.Stop()
		os.Exit(1)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// decode accepts a request object, an array of requests, or plain text
func decode(raw []byte, text bool) ([]transformdom.Request, error) {
	if text {
		s := string(raw)
		return []transformdom.Request{{
			Segments: []narrative.Segment{{ID: "seg-1", Text: s, EndChar: len(s)}},
		}}, nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var reqs []transformdom.Request
		if err := json.Unmarshal(raw, &reqs); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "decode request array")
		}
		return reqs, nil
	}
	var req transformdom.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "decode request")
	}
	return []transformdom.Request{req}, nil
}
