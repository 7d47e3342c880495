package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of application spans
const TracerName = "crm-backend"

// StartSpan starts an internal span named name.
//
//	ctx, span := telemetry.StartSpan(ctx, "ingestion.reconcile")
//	defer span.End()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddEvent adds a timestamped annotation to the span in ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// Span attribute keys.
const (
	SpanAttrTenantID      = "crm.tenant_id"
	SpanAttrIntegrationID = "crm.integration_id"
	SpanAttrLeadID        = "crm.lead_id"
	SpanAttrEventType     = "crm.event_type"
	SpanAttrMode          = "crm.resolution_mode"
	SpanAttrTestMode      = "crm.test_mode"
)
