package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/ingestion"
	"github.com/crm/backend/internal/domain/integration"
	"github.com/crm/backend/internal/domain/lead"
	"github.com/crm/backend/internal/infrastructure/cache"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

type harness struct {
	db       *gorm.DB
	configs  *persistence.GormIntegrationConfigRepository
	mappings *persistence.GormFieldMappingRepository
	logs     *persistence.GormIntegrationLogRepository
	leads    *persistence.GormLeadRepository
	cascade  CascadeRepositories
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, persistence.AutoMigrate(database.DB))
	t.Cleanup(func() { _ = database.Close() })

	db := database.DB
	return &harness{
		db:       db,
		configs:  persistence.NewGormIntegrationConfigRepository(db),
		mappings: persistence.NewGormFieldMappingRepository(db),
		logs:     persistence.NewGormIntegrationLogRepository(db),
		leads:    persistence.NewGormLeadRepository(db),
		cascade: CascadeRepositories{
			Addresses:        persistence.NewGormLeadAddressRepository(db),
			Responsibles:     persistence.NewGormLeadResponsibleRepository(db),
			FollowUps:        persistence.NewGormLeadFollowUpRepository(db),
			ProductInterests: persistence.NewGormLeadProductInterestRepository(db),
			NonPurchaseTags:  persistence.NewGormLeadNonPurchaseTagRepository(db),
		},
	}
}

func (h *harness) serviceConfig() ServiceConfig {
	return ServiceConfig{
		Configs:  h.configs,
		Mappings: h.mappings,
		Logs:     h.logs,
		Leads:    h.leads,
		Cascade:  h.cascade,
		Settings: Settings{Location: time.UTC},
		Now:      func() time.Time { return fixedNow },
	}
}

func (h *harness) service() *Service {
	return NewService(h.serviceConfig())
}

func (h *harness) integration(t *testing.T, mutate func(*integration.Config)) *integration.Config {
	t.Helper()
	cfg, err := integration.NewConfig(uuid.New(), "Landing Page", "tok_"+uuid.NewString())
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, h.configs.Save(context.Background(), cfg))
	return cfg
}

func (h *harness) mapping(t *testing.T, cfg *integration.Config, source, target string, transform ingestion.TransformType) {
	t.Helper()
	m, err := integration.NewFieldMapping(cfg.ID, source, target, transform)
	require.NoError(t, err)
	require.NoError(t, h.mappings.Save(context.Background(), m))
}

func (h *harness) auditEntries(t *testing.T) []integration.Log {
	t.Helper()
	var rows []models.IntegrationLogModel
	require.NoError(t, h.db.Order("created_at ASC").Find(&rows).Error)
	out := make([]integration.Log, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}

func (h *harness) count(t *testing.T, model any, tenantID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Where("tenant_id = ?", tenantID).Count(&n).Error)
	return n
}

func jsonRequest(token, body string) Request {
	return Request{
		Token:       token,
		ContentType: "application/json",
		Body:        []byte(body),
		RequestID:   "req-1",
		RemoteIP:    "203.0.113.7",
	}
}

func TestIngest_CreatesLeadWithAutoDetect(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	svc := h.service()
	ctx := context.Background()

	resp := svc.Ingest(ctx, jsonRequest(cfg.Token, `{"Nome Completo": "Ana", "telefone": "(11) 99999-8888"}`))

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, ActionCreated, resp.Action)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Empty(t, resp.Code)

	leadID, err := uuid.Parse(resp.LeadID)
	require.NoError(t, err)
	created, err := h.leads.FindByIDForTenant(ctx, cfg.TenantID, leadID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", created.Name)
	assert.Equal(t, "5511999998888", created.Phone)
	assert.Equal(t, "Landing Page", created.Source)
	require.NotNil(t, created.IntegrationID)
	assert.Equal(t, cfg.ID, *created.IntegrationID)
	assert.True(t, strings.HasPrefix(created.Observations, "[10/03/2026 14:30:00] Lead criado via integração (Landing Page):\n"))
	assert.Contains(t, created.Observations, `"Nome Completo": "Ana"`)

	entries := h.auditEntries(t)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, integration.LogStatusSuccess, entry.Status)
	assert.Equal(t, integration.EventLeadCreated, entry.EventType)
	assert.Equal(t, integration.DirectionInbound, entry.Direction)
	require.NotNil(t, entry.LeadID)
	assert.Equal(t, leadID, *entry.LeadID)
	require.NotNil(t, entry.TenantID)
	assert.Equal(t, cfg.TenantID, *entry.TenantID)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, "203.0.113.7", entry.RemoteIP)
	assert.Equal(t, "application/json", entry.ContentType)
	assert.Equal(t, "json", entry.PayloadFormat)
	assert.JSONEq(t, `{"Nome Completo": "Ana", "telefone": "(11) 99999-8888"}`, string(entry.Payload))

	var stored Response
	require.NoError(t, json.Unmarshal(entry.Response, &stored))
	assert.True(t, stored.Success)
	assert.Equal(t, resp.LeadID, stored.LeadID)
}

func TestIngest_ExplicitMappingUsesExactPath(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	h.mapping(t, cfg, "customer.full_name", "name", "")
	svc := h.service()
	ctx := context.Background()

	// a top-level "fullname" would win a fuzzy search
	resp := svc.Ingest(ctx, jsonRequest(cfg.Token, `{"fullname": "Wrong", "customer": {"full_name": "Ana"}}`))
	require.True(t, resp.Success, resp.Error)

	leadID := uuid.MustParse(resp.LeadID)
	created, err := h.leads.FindByIDForTenant(ctx, cfg.TenantID, leadID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", created.Name)
	assert.Empty(t, created.Phone)
}

func TestIngest_UpdatesExistingLeadByPhone(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	ctx := context.Background()

	older, err := lead.NewLead(cfg.TenantID, "Ana", fixedNow.Add(-48*time.Hour))
	require.NoError(t, err)
	older.Phone = "5511999998888"
	older.Observations = "cliente antiga"
	require.NoError(t, h.leads.Create(ctx, older))

	newer, err := lead.NewLead(cfg.TenantID, "Ana 2", fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	newer.Phone = "5511999998888"
	require.NoError(t, h.leads.Create(ctx, newer))

	svc := h.service()
	payload := `{"nome": "Ana Souza", "phone": "11 99999-8888"}`
	resp := svc.Ingest(ctx, jsonRequest(cfg.Token, payload))

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, ActionUpdated, resp.Action)
	assert.Equal(t, older.ID.String(), resp.LeadID)
	assert.Empty(t, resp.Cascade)

	updated, err := h.leads.FindByIDForTenant(ctx, cfg.TenantID, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", updated.Name, "existing attributes are never overwritten")
	assert.True(t, strings.HasPrefix(updated.Observations, "cliente antiga"))
	expectedBlock := "[10/03/2026 14:30:00] Novos dados recebidos via integração (Landing Page):\n" + payload
	assert.Equal(t, "cliente antiga\n\n"+expectedBlock, updated.Observations)
	assert.Equal(t, 1, strings.Count(updated.Observations, "Novos dados recebidos"))

	assert.Equal(t, int64(2), h.count(t, &models.LeadModel{}, cfg.TenantID))

	entries := h.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, integration.EventLeadUpdated, entries[0].EventType)
}

func TestIngest_PhoneIsScopedToTenant(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	ctx := context.Background()

	foreign, err := lead.NewLead(uuid.New(), "Other tenant", fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	foreign.Phone = "5511999998888"
	require.NoError(t, h.leads.Create(ctx, foreign))

	resp := h.service().Ingest(ctx, jsonRequest(cfg.Token, `{"phone": "11999998888"}`))
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, ActionCreated, resp.Action)
	assert.NotEqual(t, foreign.ID.String(), resp.LeadID)
}

func TestIngest_WithoutPhoneAlwaysCreates(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	svc := h.service()
	ctx := context.Background()

	first := svc.Ingest(ctx, jsonRequest(cfg.Token, `{"email": "ana@example.com"}`))
	second := svc.Ingest(ctx, jsonRequest(cfg.Token, `{"email": "ana@example.com"}`))

	assert.Equal(t, ActionCreated, first.Action)
	assert.Equal(t, ActionCreated, second.Action)
	assert.NotEqual(t, first.LeadID, second.LeadID)
	assert.Equal(t, int64(2), h.count(t, &models.LeadModel{}, cfg.TenantID))
}

func TestIngest_CreateRunsCascade(t *testing.T) {
	h := newHarness(t)
	firstUser, secondUser := uuid.New(), uuid.New()
	productID, reasonID, stageID := uuid.New(), uuid.New(), uuid.New()
	cfg := h.integration(t, func(c *integration.Config) {
		c.DefaultResponsibleIDs = []uuid.UUID{firstUser, secondUser}
		c.DefaultProductID = &productID
		c.DefaultNonPurchaseReasonID = &reasonID
		c.DefaultStageID = &stageID
		c.FollowUpDays = 3
	})
	svc := h.service()
	ctx := context.Background()

	resp := svc.Ingest(ctx, jsonRequest(cfg.Token, `{
		"name": "Ana",
		"phone": "11999998888",
		"endereco": {"cep": "13010-000", "cidade": "Campinas", "uf": "SP"}
	}`))
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, []StepResult{
		{Step: StepAddress, Status: StepDone},
		{Step: StepResponsibles, Status: StepDone},
		{Step: StepProductInterest, Status: StepDone},
		{Step: StepFollowUp, Status: StepDone},
		{Step: StepNonPurchaseTag, Status: StepDone},
	}, resp.Cascade)

	leadID := uuid.MustParse(resp.LeadID)
	created, err := h.leads.FindByIDForTenant(ctx, cfg.TenantID, leadID)
	require.NoError(t, err)
	require.NotNil(t, created.StageID)
	assert.Equal(t, stageID, *created.StageID)

	addresses, err := h.cascade.Addresses.FindByLead(ctx, cfg.TenantID, leadID)
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.Equal(t, "13010-000", addresses[0].ZipCode)
	assert.Equal(t, "Campinas", addresses[0].City)
	assert.Equal(t, "SP", addresses[0].State)

	responsibles, err := h.cascade.Responsibles.FindByLead(ctx, cfg.TenantID, leadID)
	require.NoError(t, err)
	require.Len(t, responsibles, 2)
	assert.ElementsMatch(t, []uuid.UUID{firstUser, secondUser}, []uuid.UUID{responsibles[0].UserID, responsibles[1].UserID})

	followUps, err := h.cascade.FollowUps.FindByLead(ctx, cfg.TenantID, leadID)
	require.NoError(t, err)
	require.Len(t, followUps, 1)
	assert.Equal(t, firstUser, followUps[0].ResponsibleID)
	assert.True(t, fixedNow.AddDate(0, 0, 3).Equal(followUps[0].DueAt))

	products, err := h.cascade.ProductInterests.FindByLead(ctx, cfg.TenantID, leadID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, productID, products[0].ProductID)

	tags, err := h.cascade.NonPurchaseTags.FindByLead(ctx, cfg.TenantID, leadID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, reasonID, tags[0].ReasonID)
}

func TestIngest_CreateWithAddressLinksExactlyOneAddress(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	h.mapping(t, cfg, "contact.phone", "phone", ingestion.TransformPhoneNormalize)
	h.mapping(t, cfg, "contact.zip", "address_zip_code", "")
	ctx := context.Background()

	resp := h.service().Ingest(ctx, jsonRequest(cfg.Token, `{"contact": {"phone": 11988887777, "zip": "01310-100"}}`))
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, ActionCreated, resp.Action)

	leadID := uuid.MustParse(resp.LeadID)
	addresses, err := h.cascade.Addresses.FindByLead(ctx, cfg.TenantID, leadID)
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.Equal(t, "01310-100", addresses[0].ZipCode)
	assert.Equal(t, int64(1), h.count(t, &models.LeadAddressModel{}, cfg.TenantID))

	// without defaults every other step is skipped
	assert.Equal(t, []StepResult{
		{Step: StepAddress, Status: StepDone},
		{Step: StepResponsibles, Status: StepSkipped},
		{Step: StepProductInterest, Status: StepSkipped},
		{Step: StepFollowUp, Status: StepSkipped},
		{Step: StepNonPurchaseTag, Status: StepSkipped},
	}, resp.Cascade)

	created, err := h.leads.FindByIDForTenant(ctx, cfg.TenantID, leadID)
	require.NoError(t, err)
	assert.Equal(t, "5511988887777", created.Name, "phone stands in for a missing name")
}

func TestIngest_TestModeWritesNothing(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	ctx := context.Background()

	for _, body := range []string{`{"nome": "Ana", "telefone": "11999998888"}`, `{broken`, ``} {
		req := jsonRequest(cfg.Token, body)
		req.TestMode = true
		resp := h.service().Ingest(ctx, req)

		assert.True(t, resp.Success)
		assert.True(t, resp.TestMode)
		assert.Empty(t, resp.Code)
		assert.Empty(t, resp.LeadID)
	}

	assert.Equal(t, int64(0), h.count(t, &models.LeadModel{}, cfg.TenantID))
	entries := h.auditEntries(t)
	require.Len(t, entries, 3)
	payloads := make([]string, 0, len(entries))
	for _, e := range entries {
		assert.Equal(t, integration.LogStatusTest, e.Status)
		assert.Equal(t, integration.EventTest, e.EventType)
		payloads = append(payloads, string(e.Payload))
	}
	assert.Contains(t, payloads, `"{broken"`, "raw text is kept when parsing fails")
}

func TestIngest_TestModePreview(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, func(c *integration.Config) { c.Deactivate() })
	ctx := context.Background()

	req := jsonRequest(cfg.Token, `{"nome": "Ana", "telefone": "11999998888", "cidade": "Campinas"}`)
	req.TestMode = true
	resp := h.service().Ingest(ctx, req)

	require.True(t, resp.Success, "test calls succeed even for inactive integrations")
	require.NotNil(t, resp.Preview)
	assert.Equal(t, ingestion.ModeAutoDetect, resp.Preview.Mode)
	assert.Equal(t, "Ana", resp.Preview.Name())
	assert.Equal(t, "5511999998888", resp.Preview.Phone())
	assert.Equal(t, map[string]string{"city": "Campinas"}, resp.Preview.Address)
	assert.Equal(t, int64(0), h.count(t, &models.LeadModel{}, cfg.TenantID))
}

func TestIngest_InactiveIntegrationRejected(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, func(c *integration.Config) { c.Deactivate() })
	ctx := context.Background()

	for _, body := range []string{`{"nome": "Ana", "telefone": "11999998888"}`, `{broken`, `{"foo": "bar"}`} {
		resp := h.service().Ingest(ctx, jsonRequest(cfg.Token, body))
		assert.False(t, resp.Success)
		assert.Equal(t, CodeIntegrationInactive, resp.Code)
	}

	assert.Equal(t, int64(0), h.count(t, &models.LeadModel{}, cfg.TenantID))
	entries := h.auditEntries(t)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, integration.LogStatusRejected, e.Status)
		assert.Equal(t, integration.EventIntegrationInactive, e.EventType)
		require.NotNil(t, e.IntegrationID)
		assert.Equal(t, cfg.ID, *e.IntegrationID)
	}
}

func TestIngest_UnknownTokenRejected(t *testing.T) {
	h := newHarness(t)
	h.integration(t, nil)
	ctx := context.Background()

	for _, token := range []string{"", "tok_unknown"} {
		req := jsonRequest(token, `{"nome": "Ana"}`)
		req.TestMode = true
		resp := h.service().Ingest(ctx, req)
		assert.False(t, resp.Success)
		assert.Equal(t, CodeUnauthorized, resp.Code)
		assert.False(t, resp.TestMode)
	}

	entries := h.auditEntries(t)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, integration.LogStatusRejected, e.Status)
		assert.Equal(t, integration.EventAuthFailed, e.EventType)
		assert.Nil(t, e.TenantID)
		assert.Nil(t, e.IntegrationID)
	}
}

func TestIngest_InvalidPayloadRejected(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)

	resp := h.service().Ingest(context.Background(), jsonRequest(cfg.Token, `{"nome": "Ana"`))

	assert.False(t, resp.Success)
	assert.Equal(t, CodeInvalidPayload, resp.Code)
	assert.Equal(t, "invalid JSON payload", resp.Error)
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, "json", resp.PayloadFormat)
	assert.Equal(t, `{"nome": "Ana"`, resp.PayloadPreview)

	entries := h.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, integration.EventInvalidPayload, entries[0].EventType)
	assert.JSONEq(t, `"{\"nome\": \"Ana\""`, string(entries[0].Payload))
	assert.NotEmpty(t, entries[0].ErrorMessage)
}

func TestIngest_InvalidFormPayloadDescribesBody(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)

	resp := h.service().Ingest(context.Background(), Request{
		Token:       cfg.Token,
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte("nome=Ana&telefone=%zz"),
	})

	assert.False(t, resp.Success)
	assert.Equal(t, CodeInvalidPayload, resp.Code)
	assert.Equal(t, "form", resp.PayloadFormat)
	assert.Equal(t, "nome=Ana&telefone=%zz", resp.PayloadPreview)
	assert.Contains(t, resp.Message, "telefone")
}

func TestPreviewText(t *testing.T) {
	assert.Equal(t, "short", previewText("  short\n", 10))
	assert.Equal(t, "ação...", previewText("ação completa", 4))
	assert.Equal(t, "", previewText("", 10))
}

func TestIngest_MissingIdentityListsReceivedFields(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	svc := h.service()
	ctx := context.Background()

	resp := svc.Ingest(ctx, jsonRequest(cfg.Token, `{"foo": "bar"}`))
	assert.False(t, resp.Success)
	assert.Equal(t, CodeMissingIdentity, resp.Code)
	assert.Equal(t, []string{"foo"}, resp.ReceivedFields)

	keys := make([]string, 0, 15)
	parts := make([]string, 0, 15)
	for i := range 15 {
		keys = append(keys, fmt.Sprintf("k%02d", i))
		parts = append(parts, fmt.Sprintf(`"k%02d": %d`, i, i))
	}
	resp = svc.Ingest(ctx, jsonRequest(cfg.Token, "{"+strings.Join(parts, ",")+"}"))
	assert.Equal(t, keys[:10], resp.ReceivedFields)

	resp = svc.Ingest(ctx, jsonRequest(cfg.Token, ""))
	assert.Equal(t, CodeMissingIdentity, resp.Code)
	assert.Empty(t, resp.ReceivedFields)

	entries := h.auditEntries(t)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, integration.LogStatusRejected, e.Status)
		assert.Equal(t, integration.EventMissingIdentity, e.EventType)
	}
	assert.Equal(t, int64(0), h.count(t, &models.LeadModel{}, cfg.TenantID))
}

func TestIngest_InvalidMappingsAreSkipped(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	h.mapping(t, cfg, "contact.name", "name", "")
	// written directly, bypassing the constructor checks
	require.NoError(t, h.mappings.Save(context.Background(), &integration.FieldMapping{
		ID: uuid.New(), IntegrationID: cfg.ID, SourceField: "contact.city", TargetField: "address_", Position: 1,
	}))

	resp := h.service().Ingest(context.Background(), jsonRequest(cfg.Token, `{"contact": {"name": "Ana", "city": "Campinas"}}`))
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, StepSkipped, resp.Cascade[0].Status)
}

func TestIngest_CascadeFailureDoesNotFailCreate(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	cfg := h.integration(t, func(c *integration.Config) {
		c.DefaultResponsibleIDs = []uuid.UUID{userID}
		c.FollowUpDays = 1
	})
	sc := h.serviceConfig()
	sc.Cascade.Addresses = failingAddressRepo{}
	svc := NewService(sc)

	reader := sdkmetric.NewManualReader()
	metrics, err := telemetry.NewIngestionMetrics(telemetry.NewMeterProviderWithReader(reader, zap.NewNop()).Meter("test"))
	require.NoError(t, err)
	svc.SetMetrics(metrics)

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.WithContext(context.Background(), zap.New(core))

	resp := svc.Ingest(ctx, jsonRequest(cfg.Token, `{"nome": "Ana", "cidade": "Campinas"}`))
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, ActionCreated, resp.Action)
	require.Len(t, resp.Cascade, 5)
	assert.Equal(t, StepFailed, resp.Cascade[0].Status)
	assert.Contains(t, resp.Cascade[0].Error, "disk full")
	assert.Equal(t, StepDone, resp.Cascade[1].Status)
	assert.Equal(t, StepDone, resp.Cascade[3].Status)

	assert.Equal(t, 1, logs.FilterMessage("Cascade step failed").Len())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var failures int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "crm_ingestion_cascade_failures_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				step, _ := dp.Attributes.Value(telemetry.AttrStep)
				assert.Equal(t, "address", step.AsString())
				failures += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), failures)

	entries := h.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, integration.EventLeadCreated, entries[0].EventType)
	assert.Contains(t, string(entries[0].Response), `"status":"failed"`)
}

func TestIngest_WriteFailure(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	sc := h.serviceConfig()
	sc.Leads = failingLeadRepo{LeadRepository: h.leads}

	resp := NewService(sc).Ingest(context.Background(), jsonRequest(cfg.Token, `{"nome": "Ana"}`))

	assert.False(t, resp.Success)
	assert.Equal(t, CodeWriteFailed, resp.Code)
	assert.Equal(t, "failed to create lead", resp.Error)
	assert.NotContains(t, resp.Error, "constraint")

	entries := h.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, integration.LogStatusError, entries[0].Status)
	assert.Equal(t, integration.EventWriteFailed, entries[0].EventType)
	assert.Contains(t, entries[0].ErrorMessage, "constraint")
}

func TestIngest_PanicIsAudited(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	sc := h.serviceConfig()
	sc.Mappings = panickingMappingRepo{}

	resp := NewService(sc).Ingest(context.Background(), jsonRequest(cfg.Token, `{"nome": "Ana"}`))

	assert.False(t, resp.Success)
	assert.Equal(t, CodeInternal, resp.Code)
	assert.Equal(t, "req-1", resp.RequestID)

	entries := h.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, integration.LogStatusError, entries[0].Status)
	assert.Equal(t, integration.EventUnexpectedError, entries[0].EventType)
	assert.Contains(t, entries[0].ErrorMessage, "boom")
	require.NotNil(t, entries[0].TenantID)
	assert.Equal(t, cfg.TenantID, *entries[0].TenantID)
}

func TestIngest_AuditFailureKeepsResponse(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	sc := h.serviceConfig()
	sc.Logs = failingLogRepo{}

	core, logs := observer.New(zapcore.ErrorLevel)
	ctx := logger.WithContext(context.Background(), zap.New(core))

	resp := NewService(sc).Ingest(ctx, jsonRequest(cfg.Token, `{"nome": "Ana"}`))

	require.True(t, resp.Success)
	assert.Equal(t, ActionCreated, resp.Action)
	assert.Equal(t, 1, logs.FilterMessage("Failed to write integration audit log").Len())
	assert.Equal(t, int64(1), h.count(t, &models.LeadModel{}, cfg.TenantID))
}

func TestIngest_GuardSerializesConcurrentCreates(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	locker := cache.NewInMemoryLocker()
	t.Cleanup(func() { _ = locker.Close() })

	sc := h.serviceConfig()
	sc.Locker = locker
	sc.Settings.GuardTTL = 10 * time.Second
	sc.Settings.GuardWait = 10 * time.Second
	svc := NewService(sc)

	const n = 8
	var wg sync.WaitGroup
	actions := make(chan Action, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := svc.Ingest(context.Background(), jsonRequest(cfg.Token, `{"nome": "Ana", "telefone": "11999998888"}`))
			actions <- resp.Action
		}()
	}
	wg.Wait()
	close(actions)

	counts := map[Action]int{}
	for a := range actions {
		counts[a]++
	}
	assert.Equal(t, map[Action]int{ActionCreated: 1, ActionUpdated: n - 1}, counts)
	assert.Equal(t, int64(1), h.count(t, &models.LeadModel{}, cfg.TenantID))
}

func TestIngest_GuardTimeoutDegrades(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	locker := cache.NewInMemoryLocker()
	t.Cleanup(func() { _ = locker.Close() })

	release, err := locker.Acquire(context.Background(), guardKey(cfg.TenantID, "5511999998888"), time.Minute, 0)
	require.NoError(t, err)
	defer release()

	sc := h.serviceConfig()
	sc.Locker = locker
	sc.Settings.GuardWait = 10 * time.Millisecond

	core, logs := observer.New(zapcore.WarnLevel)
	ctx := logger.WithContext(context.Background(), zap.New(core))
	resp := NewService(sc).Ingest(ctx, jsonRequest(cfg.Token, `{"telefone": "11999998888"}`))

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, ActionCreated, resp.Action)
	assert.Equal(t, 1, logs.FilterMessage("Creation guard unavailable, continuing unguarded").Len())
}

func TestIngest_FormPayload(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)

	resp := h.service().Ingest(context.Background(), Request{
		Token:       cfg.Token,
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte("nome=Ana+Maria&whatsapp=%2811%29+99999-8888&nome=Ignored"),
	})
	require.True(t, resp.Success, resp.Error)

	created, err := h.leads.FindByIDForTenant(context.Background(), cfg.TenantID, uuid.MustParse(resp.LeadID))
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", created.Name)
	assert.Equal(t, "5511999998888", created.Phone)

	entries := h.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "form", entries[0].PayloadFormat)
	assert.JSONEq(t, `{"nome": "Ana Maria", "whatsapp": "(11) 99999-8888"}`, string(entries[0].Payload))
}

func TestIngest_FormPayloadWithDottedKeys(t *testing.T) {
	h := newHarness(t)
	cfg := h.integration(t, nil)
	h.mapping(t, cfg, "customer.name", "name", "")
	h.mapping(t, cfg, "customer.phone", "phone", ingestion.TransformPhoneNormalize)

	resp := h.service().Ingest(context.Background(), Request{
		Token:       cfg.Token,
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte("customer.name=Ana&customer.phone=11999998888"),
	})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, ActionCreated, resp.Action)

	created, err := h.leads.FindByIDForTenant(context.Background(), cfg.TenantID, uuid.MustParse(resp.LeadID))
	require.NoError(t, err)
	assert.Equal(t, "Ana", created.Name)
	assert.Equal(t, "5511999998888", created.Phone)
}

func TestIngest_PhoneDedupIgnoresMappingTransform(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	trimmed := h.integration(t, nil)
	h.mapping(t, trimmed, "name", "name", "")
	h.mapping(t, trimmed, "phone", "phone", ingestion.TransformTrim)
	auto := h.integration(t, func(c *integration.Config) {
		c.TenantID = trimmed.TenantID
	})

	first := svc.Ingest(ctx, jsonRequest(trimmed.Token, `{"name": "Ana", "phone": " (11) 99999-8888 "}`))
	require.True(t, first.Success, first.Error)
	require.Equal(t, ActionCreated, first.Action)

	created, err := h.leads.FindByIDForTenant(ctx, trimmed.TenantID, uuid.MustParse(first.LeadID))
	require.NoError(t, err)
	assert.Equal(t, "5511999998888", created.Phone)

	second := svc.Ingest(ctx, jsonRequest(auto.Token, `{"nome": "Ana Maria", "telefone": "11999998888"}`))
	require.True(t, second.Success, second.Error)
	assert.Equal(t, ActionUpdated, second.Action)
	assert.Equal(t, first.LeadID, second.LeadID)
	assert.Equal(t, int64(1), h.count(t, &models.LeadModel{}, trimmed.TenantID))
}

type failingAddressRepo struct {
	lead.AddressRepository
}

func (failingAddressRepo) Create(context.Context, *lead.Address) error {
	return errors.New("disk full")
}

type failingLeadRepo struct {
	lead.LeadRepository
}

func (failingLeadRepo) Create(context.Context, *lead.Lead) error {
	return errors.New("UNIQUE constraint failed: leads.id")
}

type panickingMappingRepo struct {
	integration.FieldMappingRepository
}

func (panickingMappingRepo) FindByIntegration(context.Context, uuid.UUID) ([]integration.FieldMapping, error) {
	panic("boom")
}

type failingLogRepo struct {
	integration.LogRepository
}

func (failingLogRepo) Create(context.Context, *integration.Log) error {
	return errors.New("connection reset")
}
