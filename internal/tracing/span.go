package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to dispatch and invoke spans.
var (
	AttrTag        = attribute.Key("metacall.tag")
	AttrFunction   = attribute.Key("metacall.function")
	AttrAsync      = attribute.Key("metacall.async")
	AttrHandleID   = attribute.Key("metacall.handle_id")
	AttrDurationMs = attribute.Key("metacall.duration_ms")
)

// StartDispatch opens the top-level span for one metacall/metacall_await
// call.
func StartDispatch(ctx context.Context, function string, async bool) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "metacall.dispatch",
		trace.WithAttributes(AttrFunction.String(function), AttrAsync.Bool(async)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartInvoke opens the child span wrapping one adapter's Invoke/Await
// call.
func StartInvoke(ctx context.Context, tag, function string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "adapter.invoke",
		trace.WithAttributes(AttrTag.String(tag), AttrFunction.String(function)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// End marks the span's final status and ends it. err may be nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
