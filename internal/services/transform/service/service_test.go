package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"narrative/internal/core/narrative"
	"narrative/internal/core/rulepack"
	perr "narrative/internal/platform/errors"
	kit "narrative/internal/platform/testkit"
	"narrative/internal/services/transform/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func request(id string, texts ...string) domain.Request {
	req := domain.Request{ID: id}
	off := 0
	for i, t := range texts {
		req.Segments = append(req.Segments, narrative.Segment{
			ID:        fmt.Sprintf("s%d", i+1),
			Text:      t,
			StartChar: off,
			EndChar:   off + len(t),
		})
		off += len(t) + 1
	}
	return req
}

func newService(t *testing.T, cfg Config, opts ...Option) *Service {
	t.Helper()
	svc, err := New(rulepack.NewStore(rulepack.MustDefault()), cfg, opts...)
	require.NoError(t, err)
	return svc
}

func TestNew_RequiresServingRuleSet(t *testing.T) {
	_, err := New(nil, Config{})
	require.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument), "nil store: %v", err)

	_, err = New(rulepack.NewStore(nil), Config{})
	require.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable), "empty store: %v", err)
}

func TestTransform_AssignsRequestID(t *testing.T) {
	kit.Swap(t, &newRequestID, func() string { return "generated-id" })
	svc := newService(t, Config{})

	res, err := svc.Transform(context.Background(), request("", "The cop ran."))
	require.NoError(t, err)
	require.Equal(t, "generated-id", res.RequestID)
	require.Equal(t, "The officer ran.", res.Text)

	res, err = svc.Transform(context.Background(), request("caller-id", "The cop ran."))
	require.NoError(t, err)
	require.Equal(t, "caller-id", res.RequestID)
}

func TestTransform_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := newService(t, Config{}, WithMetrics(NewMetrics(reg)))
	ctx := context.Background()

	_, err := svc.Transform(ctx, request("r1", "The cop ran."))
	require.NoError(t, err)
	_, err = svc.Transform(ctx, request("r2", "They always protect their own, massive cover-up"))
	require.NoError(t, err)
	_, err = svc.Transform(ctx, request("r3", "x", "y"))
	require.NoError(t, err)
	_, err = svc.Transform(ctx, domain.Request{ID: "bad", Segments: []narrative.Segment{{Text: "x", EndChar: 1}}})
	require.Error(t, err)

	m := svc.Metrics()
	require.Equal(t, 3.0, testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeError)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues(string(rulepack.ActionReplace))))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Quarantines))
	require.Equal(t, 1, testutil.CollectAndCount(m.Duration))

	n, err := testutil.GatherAndCount(reg, "narrative_transform_requests_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestTransform_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	svc := newService(t, Config{}, WithTracerProvider(tp))
	_, err := svc.Transform(context.Background(), request("r1", "He clearly hit me."))
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 5)
	root := spans[len(spans)-1]
	require.Equal(t, "transform.Request", root.Name())

	var stages []string
	for _, s := range spans[:4] {
		stages = append(stages, s.Name())
		require.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID())
	}
	require.Equal(t, []string{"pipeline.decompose", "pipeline.classify", "pipeline.engine", "pipeline.render"}, stages)
}

func TestTransform_ErrorMarksSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	svc := newService(t, Config{}, WithTracerProvider(tp))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Transform(ctx, request("r1", "He hit me"))
	require.True(t, perr.IsCode(err, perr.ErrorCodeTimeout), "got %v", err)

	spans := rec.Ended()
	require.NotEmpty(t, spans)
	root := spans[len(spans)-1]
	require.Equal(t, "transform.Request", root.Name())
	require.Equal(t, codes.Error, root.Status().Code)
}

func TestTransformBatch_OrderAndIsolation(t *testing.T) {
	var n atomic.Int64
	kit.Swap(t, &newRequestID, func() string { return fmt.Sprintf("gen-%d", n.Add(1)) })
	svc := newService(t, Config{Workers: 3})

	reqs := []domain.Request{
		request("", "The cop ran."),
		request("", "He clearly hit me."),
		{Segments: []narrative.Segment{{ID: "a", Text: "x", EndChar: 1}, {ID: "a", Text: "y", EndChar: 1}}},
		request("", "They always protect their own, massive cover-up"),
		request("", "I just wanted to get home"),
	}
	items := svc.TransformBatch(context.Background(), reqs)
	require.Len(t, items, len(reqs))

	for i, it := range items {
		require.Equal(t, i, it.Index)
		require.Equal(t, fmt.Sprintf("gen-%d", i+1), it.RequestID)
	}
	require.Equal(t, "The officer ran.", items[0].Result.Text)
	require.Equal(t, "He hit me.", items[1].Result.Text)
	require.False(t, items[2].OK())
	require.True(t, perr.IsCode(items[2].Err, perr.ErrorCodeInvalidArgument))
	require.Empty(t, items[2].Diagnostics)
	require.Equal(t, "", items[3].Result.Text)
	require.True(t, items[4].Result.NoPolicyApplied)

	// ledgers are per request
	for _, d := range items[0].Result.Decisions {
		require.Equal(t, "s1", d.SegmentID)
		require.NotEqual(t, "remove-certainty", d.RuleID)
	}
}

func TestTransformBatch_TimedOutItems(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := newService(t, Config{Workers: 2}, WithMetrics(NewMetrics(reg)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := svc.TransformBatch(ctx, []domain.Request{
		request("a", "He hit me"),
		request("b", "The cop ran."),
	})
	for _, it := range items {
		require.Nil(t, it.Result)
		require.True(t, perr.IsCode(it.Err, perr.ErrorCodeTimeout), "got %v", it.Err)
		require.Len(t, it.Diagnostics, 1)
		require.Equal(t, narrative.DiagTimeout, it.Diagnostics[0].Kind)
		require.Equal(t, narrative.SeverityError, it.Diagnostics[0].Severity)
	}
	require.Equal(t, 2.0, testutil.ToFloat64(svc.Metrics().Requests.WithLabelValues(OutcomeTimeout)))
}

func TestTransformBatch_Empty(t *testing.T) {
	svc := newService(t, Config{})
	require.Empty(t, svc.TransformBatch(context.Background(), nil))
}

func TestReload_SwapsPipeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	write := func(doc string) {
		t.Helper()
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	}
	write("version: 1\nname: plain\nrules: []\n")
	first, err := rulepack.LoadFile(path)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	svc, err := New(rulepack.NewStore(first), Config{RulesPath: path}, WithMetrics(NewMetrics(reg)))
	require.NoError(t, err)

	ctx := context.Background()
	res, err := svc.Transform(ctx, request("r1", "The cop ran."))
	require.NoError(t, err)
	require.Equal(t, "The cop ran.", res.Text)
	require.Equal(t, first.Version, res.RuleSet)

	write(`version: 1
name: cops
rules:
  - id: replace-cop
    match: {kind: keyword, patterns: [cop]}
    action: replace
    replacement: officer
`)
	next, err := svc.Reload()
	require.NoError(t, err)
	require.Equal(t, "cops", next.Name)

	res, err = svc.Transform(ctx, request("r2", "The cop ran."))
	require.NoError(t, err)
	require.Equal(t, "The officer ran.", res.Text)
	require.Equal(t, next.Version, res.RuleSet)

	write("version: 1\nname: broken\nrules: [{id: x}]\n")
	_, err = svc.Reload()
	require.True(t, perr.IsCode(err, perr.ErrorCodeRuleSet), "got %v", err)
	cur, err := svc.RuleSet()
	require.NoError(t, err)
	require.Equal(t, "cops", cur.Name)

	m := svc.Metrics()
	require.Equal(t, 1.0, testutil.ToFloat64(m.Reloads.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Reloads.WithLabelValues("rejected")))
}

func TestReload_WithoutFile(t *testing.T) {
	svc := newService(t, Config{})
	_, err := svc.Reload()
	require.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable), "got %v", err)
}
