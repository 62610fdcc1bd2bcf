package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
)

// TracerName is the instrumentation scope of taskcore spans.
const TracerName = "github.com/platinummonkey/taskcore"

// StartSpan starts a span from the global tracer provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, with its application error code and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("app.error_code", string(apperrors.CodeOf(err))))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
