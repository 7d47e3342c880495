package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// IngestionMetrics counts webhook outcomes. All methods are safe on a nil
// receiver so callers need no enabled check.
type IngestionMetrics struct {
	requests        *Counter
	duration        *Histogram
	resolutions     *Counter
	cascadeFailures *Counter
	auditFailures   *Counter
	guardDegraded   *Counter
}

// NewIngestionMetrics registers the ingestion instruments on meter.
func NewIngestionMetrics(meter metric.Meter) (*IngestionMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &IngestionMetrics{}
	var err error
	if m.requests, err = NewCounter(meter,
		"crm_ingestion_requests_total",
		"Inbound webhook calls by outcome",
		"{request}"); err != nil {
		return nil, err
	}
	if m.duration, err = NewHistogram(meter,
		"crm_ingestion_duration_seconds",
		"Inbound webhook processing time",
		"s", WebhookDurationBuckets); err != nil {
		return nil, err
	}
	if m.resolutions, err = NewCounter(meter,
		"crm_ingestion_resolutions_total",
		"Payload field resolutions by mode",
		"{resolution}"); err != nil {
		return nil, err
	}
	if m.cascadeFailures, err = NewCounter(meter,
		"crm_ingestion_cascade_failures_total",
		"Failed lead side-effect steps",
		"{failure}"); err != nil {
		return nil, err
	}
	if m.auditFailures, err = NewCounter(meter,
		"crm_ingestion_audit_failures_total",
		"Audit entries that could not be stored",
		"{failure}"); err != nil {
		return nil, err
	}
	if m.guardDegraded, err = NewCounter(meter,
		"crm_ingestion_guard_degraded_total",
		"Calls that proceeded without the per-phone guard",
		"{request}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRequest records one finished webhook call.
func (m *IngestionMetrics) RecordRequest(ctx context.Context, status, eventType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.Inc(ctx, AttrStatus.String(status), AttrEventType.String(eventType))
	m.duration.RecordDuration(ctx, elapsed, AttrStatus.String(status))
}

// RecordResolution records which resolution mode produced a draft.
func (m *IngestionMetrics) RecordResolution(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.resolutions.Inc(ctx, AttrMode.String(mode))
}

// RecordCascadeFailure records a failed side-effect step.
func (m *IngestionMetrics) RecordCascadeFailure(ctx context.Context, step string) {
	if m == nil {
		return
	}
	m.cascadeFailures.Inc(ctx, AttrStep.String(step))
}

// RecordAuditFailure records an audit write that was lost.
func (m *IngestionMetrics) RecordAuditFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.auditFailures.Inc(ctx)
}

// RecordGuardDegraded records a call that ran without the guard.
func (m *IngestionMetrics) RecordGuardDegraded(ctx context.Context) {
	if m == nil {
		return
	}
	m.guardDegraded.Inc(ctx)
}

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = &MetricsError{Op: "NewIngestionMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
