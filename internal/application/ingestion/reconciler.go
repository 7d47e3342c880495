package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/ingestion"
	"github.com/crm/backend/internal/domain/integration"
	"github.com/crm/backend/internal/domain/lead"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Observation block titles
const (
	createdTitle  = "Lead criado via integração"
	receivedTitle = "Novos dados recebidos via integração"
)

// DefaultPlaceholderName names leads that arrive without name, phone or email
const DefaultPlaceholderName = "Lead sem nome"

// Outcome is the result of reconciling one draft
type Outcome struct {
	Action Action
	Lead   *lead.Lead
	// Steps is only set on create
	Steps []StepResult
}

// ReconcilerConfig configures a Reconciler
type ReconcilerConfig struct {
	Leads   lead.LeadRepository
	Cascade *Cascade
	// Locker serializes the dedup read and the create per tenant and phone.
	// Nil means no serialization.
	Locker shared.Locker
	// GuardTTL and GuardWait bound the per-phone lock
	GuardTTL        time.Duration
	GuardWait       time.Duration
	PlaceholderName string
	// Location stamps observation blocks
	Location *time.Location
	Now      func() time.Time
}

// Reconciler decides between creating a lead and appending to an existing
// one. Only the phone deduplicates; a draft without phone always creates.
// The phone is normalized whatever transform the mapping applied, so the
// same number arriving through different integrations meets the same lead.
type Reconciler struct {
	leads       lead.LeadRepository
	cascade     *Cascade
	locker      shared.Locker
	guardTTL    time.Duration
	guardWait   time.Duration
	placeholder string
	location    *time.Location
	now         func() time.Time
	metrics     *telemetry.IngestionMetrics
}

// NewReconciler creates a Reconciler
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	r := &Reconciler{
		leads:       cfg.Leads,
		cascade:     cfg.Cascade,
		locker:      cfg.Locker,
		guardTTL:    cfg.GuardTTL,
		guardWait:   cfg.GuardWait,
		placeholder: cfg.PlaceholderName,
		location:    cfg.Location,
		now:         cfg.Now,
	}
	if r.locker == nil {
		r.locker = shared.NopLocker{}
	}
	if r.guardTTL <= 0 {
		r.guardTTL = 30 * time.Second
	}
	if r.placeholder == "" {
		r.placeholder = DefaultPlaceholderName
	}
	if r.location == nil {
		r.location = time.UTC
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// SetMetrics sets the metrics collector
func (r *Reconciler) SetMetrics(m *telemetry.IngestionMetrics) {
	r.metrics = m
}

// Reconcile creates or updates the lead described by draft. raw is the body
// as received and goes verbatim into the observations.
func (r *Reconciler) Reconcile(ctx context.Context, cfg *integration.Config, draft *ingestion.Draft, raw string) (*Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingestion.reconcile",
		attribute.String(telemetry.SpanAttrTenantID, cfg.TenantID.String()))
	defer span.End()

	now := r.now()
	phone := ingestion.NormalizePhone(draft.Phone())

	release := func() {}
	if phone != "" {
		release = r.guard(ctx, cfg.TenantID, phone)
		defer release()

		existing, err := r.leads.FindOldestByPhone(ctx, cfg.TenantID, phone)
		switch {
		case err == nil:
			release()
			return r.update(ctx, cfg, existing, raw, now)
		case !errors.Is(err, lead.ErrLeadNotFound):
			telemetry.RecordError(span, err)
			return nil, ingestion.WrapError(ingestion.KindDownstreamWrite, "failed to look up lead", err)
		}
	}

	created, err := r.create(ctx, cfg, draft, phone, raw, now)
	release()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.SpanAttrLeadID, created.ID.String()))

	steps := r.cascade.Run(ctx, CascadeInput{Config: cfg, Lead: created, Draft: draft, Now: now})
	return &Outcome{Action: ActionCreated, Lead: created, Steps: steps}, nil
}

func (r *Reconciler) update(ctx context.Context, cfg *integration.Config, existing *lead.Lead, raw string, now time.Time) (*Outcome, error) {
	block := lead.ObservationBlock(now.In(r.location), cfg.Name, receivedTitle, raw)
	if err := r.leads.AppendObservation(ctx, cfg.TenantID, existing.ID, block); err != nil {
		return nil, ingestion.WrapError(ingestion.KindDownstreamWrite, "failed to update lead", err)
	}
	existing.AppendObservation(block)
	return &Outcome{Action: ActionUpdated, Lead: existing}, nil
}

func (r *Reconciler) create(ctx context.Context, cfg *integration.Config, draft *ingestion.Draft, phone, raw string, now time.Time) (*lead.Lead, error) {
	l, err := lead.NewLead(cfg.TenantID, draft.DisplayName(r.placeholder), now)
	if err != nil {
		return nil, ingestion.WrapError(ingestion.KindDownstreamWrite, "failed to build lead", err)
	}
	integrationID := cfg.ID
	l.Phone = phone
	l.Email = draft.Email()
	l.Document = draft.Get(ingestion.FieldDocument)
	l.StageID = cfg.DefaultStageID
	l.IntegrationID = &integrationID
	l.Source = cfg.Name
	l.AppendObservation(lead.ObservationBlock(now.In(r.location), cfg.Name, createdTitle, raw))
	if notes := draft.Get(ingestion.FieldNotes); notes != "" {
		l.AppendObservation(notes)
	}

	if err := r.leads.Create(ctx, l); err != nil {
		return nil, ingestion.WrapError(ingestion.KindDownstreamWrite, "failed to create lead", err)
	}
	return l, nil
}

// guard takes the per-phone lock. When the lock cannot be taken the call
// proceeds unguarded.
func (r *Reconciler) guard(ctx context.Context, tenantID uuid.UUID, phone string) func() {
	release, err := r.locker.Acquire(ctx, guardKey(tenantID, phone), r.guardTTL, r.guardWait)
	if err != nil {
		logger.L(ctx).Warn("Creation guard unavailable, continuing unguarded",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		r.metrics.RecordGuardDegraded(ctx)
		return func() {}
	}
	return release
}

func guardKey(tenantID uuid.UUID, phone string) string {
	return fmt.Sprintf("lead:%s:%s", tenantID, phone)
}
