package service

import (
	"context"

	"narrative/internal/core/pipeline"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of transform spans
const TracerName = "narrative/transform"

// stageObserver opens one child span per pipeline stage
func stageObserver(tr trace.Tracer) pipeline.Observer {
	return func(ctx context.Context, stage pipeline.Stage) (context.Context, func(error)) {
		ctx, span := tr.Start(ctx, "pipeline."+string(stage),
			trace.WithAttributes(attribute.String("pipeline.stage", string(stage))),
		)
		return ctx, func(err error) {
			fail(span, err)
			span.End()
		}
	}
}

func fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
