package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/crm/backend/internal/domain/ingestion"
	"github.com/crm/backend/internal/domain/integration"
	"github.com/crm/backend/internal/domain/lead"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultDiagnosticFieldLimit caps the payload keys echoed on identity rejections
const DefaultDiagnosticFieldLimit = 10

// payloadPreviewRunes caps the raw body echoed on syntax rejections
const payloadPreviewRunes = 120

// Settings tunes the ingestion service
type Settings struct {
	DiagnosticFieldLimit int
	PlaceholderName      string
	Location             *time.Location
	GuardTTL             time.Duration
	GuardWait            time.Duration
}

// ServiceConfig holds the dependencies of the ingestion service
type ServiceConfig struct {
	Configs  integration.ConfigRepository
	Mappings integration.FieldMappingRepository
	Logs     integration.LogRepository
	Leads    lead.LeadRepository
	Cascade  CascadeRepositories
	// Locker guards lead creation per phone; nil disables the guard
	Locker shared.Locker
	// Aliases overrides the built-in alias table
	Aliases  *ingestion.AliasTable
	Settings Settings
	Now      func() time.Time
}

// Service processes inbound webhook calls. Every call ends with exactly one
// audit entry, whatever path it took.
type Service struct {
	auth       *Authenticator
	mappings   integration.FieldMappingRepository
	resolver   *ingestion.MappingResolver
	reconciler *Reconciler
	cascade    *Cascade
	auditor    *Auditor
	validator  *configValidator
	fieldLimit int
	now        func() time.Time
	metrics    *telemetry.IngestionMetrics
}

// NewService creates the ingestion service
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	limit := cfg.Settings.DiagnosticFieldLimit
	if limit <= 0 {
		limit = DefaultDiagnosticFieldLimit
	}

	cascade := NewCascade(cfg.Cascade)
	return &Service{
		auth:     NewAuthenticator(cfg.Configs),
		mappings: cfg.Mappings,
		resolver: ingestion.NewMappingResolver(cfg.Aliases),
		reconciler: NewReconciler(ReconcilerConfig{
			Leads:           cfg.Leads,
			Cascade:         cascade,
			Locker:          cfg.Locker,
			GuardTTL:        cfg.Settings.GuardTTL,
			GuardWait:       cfg.Settings.GuardWait,
			PlaceholderName: cfg.Settings.PlaceholderName,
			Location:        cfg.Settings.Location,
			Now:             now,
		}),
		cascade:    cascade,
		auditor:    NewAuditor(cfg.Logs),
		validator:  newConfigValidator(),
		fieldLimit: limit,
		now:        now,
	}
}

// SetMetrics sets the metrics collector
func (s *Service) SetMetrics(m *telemetry.IngestionMetrics) {
	s.metrics = m
	s.reconciler.SetMetrics(m)
	s.cascade.SetMetrics(m)
	s.auditor.SetMetrics(m)
}

// call accumulates what one request did, for the response and the audit entry
type call struct {
	req    Request
	cfg    *integration.Config
	body   *ingestion.Body
	status integration.LogStatus
	event  integration.EventType
	resp   Response
	err    error
	leadID *uuid.UUID
}

func newCall(req Request) *call {
	c := &call{req: req}
	c.reject(integration.LogStatusError, integration.EventUnexpectedError, ingestion.ErrUnexpected)
	return c
}

func (c *call) reject(status integration.LogStatus, event integration.EventType, err error) {
	var e *ingestion.Error
	if !errors.As(err, &e) {
		e = ingestion.WrapError(ingestion.KindUnexpected, ingestion.ErrUnexpected.Message, err)
	}
	c.status, c.event, c.err = status, event, err
	c.resp = Response{
		Success:        false,
		Error:          e.Message,
		Code:           codeForKind(e.Kind),
		ReceivedFields: e.ReceivedFields,
	}
}

// describeSyntaxError tells the sender how the body was read, where parsing
// stopped and how the body begins
func (c *call) describeSyntaxError(err error) {
	if cause := errors.Unwrap(err); cause != nil {
		c.resp.Message = cause.Error()
	}
	c.resp.PayloadFormat = string(c.body.Format)
	c.resp.PayloadPreview = previewText(c.body.Raw, payloadPreviewRunes)
}

func previewText(raw string, limit int) string {
	raw = strings.TrimSpace(raw)
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit]) + "..."
}

func (c *call) succeed(out *Outcome) {
	leadID := out.Lead.ID
	c.leadID = &leadID
	c.status, c.err = integration.LogStatusSuccess, nil
	c.resp = Response{Success: true, Action: out.Action, LeadID: leadID.String()}
	if out.Action == ActionCreated {
		c.event = integration.EventLeadCreated
		c.resp.Message = "Lead created"
		c.resp.Cascade = out.Steps
	} else {
		c.event = integration.EventLeadUpdated
		c.resp.Message = "Lead updated"
	}
}

// Ingest processes one webhook call and returns the body to send back.
// The response code, if any, selects the HTTP status.
func (s *Service) Ingest(ctx context.Context, req Request) (resp *Response) {
	start := s.now()
	ctx, span := telemetry.StartSpan(ctx, "ingestion.ingest",
		attribute.Bool(telemetry.SpanAttrTestMode, req.TestMode))
	defer span.End()

	c := newCall(req)
	defer func() {
		if p := recover(); p != nil {
			logger.L(ctx).Error("Panic while processing webhook",
				zap.Any("panic", p),
				zap.Stack("stack"))
			c.reject(integration.LogStatusError, integration.EventUnexpectedError,
				ingestion.WrapError(ingestion.KindUnexpected, ingestion.ErrUnexpected.Message, fmt.Errorf("panic: %v", p)))
		}
		resp = s.finish(ctx, span, c, start)
	}()

	s.process(ctx, span, c)
	return &c.resp
}

func (s *Service) process(ctx context.Context, span trace.Span, c *call) {
	cfg, err := s.auth.Authenticate(ctx, c.req.Token)
	if err != nil {
		if ingestion.KindOf(err) == ingestion.KindAuth {
			c.reject(integration.LogStatusRejected, integration.EventAuthFailed, err)
		} else {
			c.reject(integration.LogStatusError, integration.EventUnexpectedError, err)
		}
		return
	}
	c.cfg = cfg
	ctx = logger.WithIntegration(ctx, cfg.TenantID.String(), cfg.ID.String())
	span.SetAttributes(
		attribute.String(telemetry.SpanAttrTenantID, cfg.TenantID.String()),
		attribute.String(telemetry.SpanAttrIntegrationID, cfg.ID.String()),
	)
	if err := s.validator.Config(cfg); err != nil {
		logger.L(ctx).Warn("Integration config failed validation", zap.Error(err))
	}

	body, parseErr := ingestion.NormalizeBody(c.req.ContentType, c.req.Body)
	c.body = body

	if c.req.TestMode {
		s.preview(ctx, c, parseErr)
		return
	}
	if !cfg.IsActive() {
		c.reject(integration.LogStatusRejected, integration.EventIntegrationInactive, ingestion.ErrConfigInactive)
		return
	}
	if parseErr != nil {
		c.reject(integration.LogStatusRejected, integration.EventInvalidPayload, parseErr)
		c.describeSyntaxError(parseErr)
		return
	}

	draft, err := s.resolve(ctx, cfg, body.Payload)
	if err != nil {
		c.reject(integration.LogStatusError, integration.EventUnexpectedError, err)
		return
	}
	if !draft.HasIdentity() {
		missing := ingestion.NewError(ingestion.KindIdentityMissing, ingestion.ErrIdentityMissing.Message)
		missing.ReceivedFields = body.Payload.TopLevelKeys(s.fieldLimit)
		c.reject(integration.LogStatusRejected, integration.EventMissingIdentity, missing)
		return
	}

	out, err := s.reconciler.Reconcile(ctx, cfg, draft, body.Raw)
	if err != nil {
		c.reject(integration.LogStatusError, integration.EventWriteFailed, err)
		return
	}
	c.succeed(out)
}

// preview answers a test call: nothing is written, and when the body parsed
// the response carries the draft a live call would have produced
func (s *Service) preview(ctx context.Context, c *call, parseErr error) {
	c.status, c.event, c.err = integration.LogStatusTest, integration.EventTest, parseErr
	c.resp = Response{Success: true, TestMode: true, Message: "Test call received, nothing was written"}
	if parseErr != nil {
		c.resp.Message = "Test call received, payload could not be parsed"
		return
	}

	draft, err := s.resolve(ctx, c.cfg, c.body.Payload)
	if err != nil {
		logger.L(ctx).Warn("Test call preview unavailable", zap.Error(err))
		return
	}
	c.resp.Preview = draft
}

// resolve loads the integration's mappings and builds the draft. Invalid
// mappings are skipped; an integration whose mappings are all invalid stays
// in explicit mode and resolves nothing.
func (s *Service) resolve(ctx context.Context, cfg *integration.Config, payload ingestion.Value) (*ingestion.Draft, error) {
	mappings, err := s.mappings.FindByIntegration(ctx, cfg.ID)
	if err != nil {
		return nil, ingestion.WrapError(ingestion.KindUnexpected, "failed to load field mappings", err)
	}
	rules, rejected := s.validator.Mappings(mappings)
	for _, e := range rejected {
		logger.L(ctx).Warn("Skipping invalid field mapping", zap.Error(e))
	}

	var draft *ingestion.Draft
	if len(mappings) > 0 && len(rules) == 0 {
		draft = ingestion.NewDraft(ingestion.ModeExplicit)
	} else {
		draft = s.resolver.Resolve(payload, rules)
	}
	s.metrics.RecordResolution(ctx, string(draft.Mode))
	return draft, nil
}

// finish writes the audit entry, records metrics and logs the outcome
func (s *Service) finish(ctx context.Context, span trace.Span, c *call, start time.Time) *Response {
	elapsed := s.now().Sub(start)
	c.resp.RequestID = c.req.RequestID

	entry := integration.NewInboundLog(c.status, c.event).WithConfig(c.cfg)
	entry.Payload = payloadSnapshot(c.body)
	if c.body != nil {
		entry.PayloadFormat = string(c.body.Format)
	}
	if out, err := json.Marshal(c.resp); err == nil {
		entry.Response = out
	}
	if c.err != nil {
		entry.ErrorMessage = c.err.Error()
	}
	entry.LeadID = c.leadID
	entry.ElapsedMs = elapsed.Milliseconds()
	entry.RequestID = c.req.RequestID
	entry.RemoteIP = c.req.RemoteIP
	entry.ContentType = c.req.ContentType

	_ = s.auditor.Write(ctx, entry)
	s.metrics.RecordRequest(ctx, string(c.status), string(c.event), elapsed)

	span.SetAttributes(attribute.String(telemetry.SpanAttrEventType, string(c.event)))
	if c.status == integration.LogStatusError {
		telemetry.RecordError(span, c.err)
	}
	s.logOutcome(ctx, c, elapsed)
	return &c.resp
}

func (s *Service) logOutcome(ctx context.Context, c *call, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("status", string(c.status)),
		zap.String("event_type", string(c.event)),
		zap.Bool("test_mode", c.req.TestMode),
		zap.Duration("elapsed", elapsed),
	}
	if c.cfg != nil {
		fields = append(fields,
			zap.String("tenant_id", c.cfg.TenantID.String()),
			zap.String("integration_id", c.cfg.ID.String()))
	}
	if c.leadID != nil {
		fields = append(fields, zap.String("lead_id", c.leadID.String()))
	}
	for _, step := range c.resp.Cascade {
		if step.Status == StepFailed {
			fields = append(fields, zap.String("cascade_failed_"+string(step.Step), step.Error))
		}
	}
	if c.err != nil {
		fields = append(fields, zap.Error(c.err))
	}

	log := logger.L(ctx)
	switch c.status {
	case integration.LogStatusError:
		log.Error("Webhook failed", fields...)
	case integration.LogStatusRejected:
		log.Warn("Webhook rejected", fields...)
	default:
		log.Info("Webhook processed", fields...)
	}
}
