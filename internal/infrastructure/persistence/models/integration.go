package models

import (
	"encoding/json"
	"time"

	"github.com/crm/backend/internal/domain/ingestion"
	"github.com/crm/backend/internal/domain/integration"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// IntegrationConfigModel is the persistence model for integration.Config
type IntegrationConfigModel struct {
	TenantModel
	Name                       string                         `gorm:"type:varchar(200);not null"`
	Token                      string                         `gorm:"type:varchar(255);not null;uniqueIndex:idx_integration_configs_token"`
	Status                     integration.Status             `gorm:"type:varchar(20);not null;default:'active'"`
	DefaultStageID             *uuid.UUID                     `gorm:"type:uuid"`
	DefaultResponsibleIDs      datatypes.JSONSlice[uuid.UUID] `gorm:"column:default_responsible_ids"`
	DefaultProductID           *uuid.UUID                     `gorm:"type:uuid"`
	FollowUpDays               int                            `gorm:"not null;default:0"`
	DefaultNonPurchaseReasonID *uuid.UUID                     `gorm:"type:uuid"`
	Settings                   datatypes.JSONMap              `gorm:"column:settings"`
}

// TableName returns the table name for GORM
func (IntegrationConfigModel) TableName() string {
	return "integration_configs"
}

// ToDomain converts the persistence model to a domain Config
func (m *IntegrationConfigModel) ToDomain() *integration.Config {
	cfg := &integration.Config{
		TenantEntity:               m.ToDomainTenantEntity(),
		Name:                       m.Name,
		Token:                      m.Token,
		Status:                     m.Status,
		DefaultStageID:             m.DefaultStageID,
		DefaultResponsibleIDs:      append([]uuid.UUID(nil), m.DefaultResponsibleIDs...),
		DefaultProductID:           m.DefaultProductID,
		FollowUpDays:               m.FollowUpDays,
		DefaultNonPurchaseReasonID: m.DefaultNonPurchaseReasonID,
		Settings:                   map[string]any(m.Settings),
	}
	if cfg.Settings == nil {
		cfg.Settings = make(map[string]any)
	}
	return cfg
}

// FromDomain populates the persistence model from a domain Config
func (m *IntegrationConfigModel) FromDomain(cfg *integration.Config) {
	m.FromDomainTenantEntity(cfg.TenantEntity)
	m.Name = cfg.Name
	m.Token = cfg.Token
	m.Status = cfg.Status
	m.DefaultStageID = cfg.DefaultStageID
	m.DefaultResponsibleIDs = datatypes.JSONSlice[uuid.UUID](cfg.DefaultResponsibleIDs)
	m.DefaultProductID = cfg.DefaultProductID
	m.FollowUpDays = cfg.FollowUpDays
	m.DefaultNonPurchaseReasonID = cfg.DefaultNonPurchaseReasonID
	m.Settings = datatypes.JSONMap(cfg.Settings)
}

// FieldMappingModel is the persistence model for integration.FieldMapping
type FieldMappingModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	IntegrationID uuid.UUID `gorm:"type:uuid;not null;index:idx_field_mappings_integration,priority:1"`
	SourceField   string    `gorm:"type:varchar(255);not null"`
	TargetField   string    `gorm:"type:varchar(100);not null"`
	TransformType string    `gorm:"type:varchar(50)"`
	Position      int       `gorm:"not null;default:0;index:idx_field_mappings_integration,priority:2"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FieldMappingModel) TableName() string {
	return "integration_field_mappings"
}

// ToDomain converts the persistence model to a domain FieldMapping
func (m *FieldMappingModel) ToDomain() integration.FieldMapping {
	return integration.FieldMapping{
		ID:            m.ID,
		IntegrationID: m.IntegrationID,
		SourceField:   m.SourceField,
		TargetField:   m.TargetField,
		TransformType: ingestion.TransformType(m.TransformType),
		Position:      m.Position,
	}
}

// FromDomain populates the persistence model from a domain FieldMapping
func (m *FieldMappingModel) FromDomain(fm *integration.FieldMapping) {
	m.ID = fm.ID
	m.IntegrationID = fm.IntegrationID
	m.SourceField = fm.SourceField
	m.TargetField = fm.TargetField
	m.TransformType = string(fm.TransformType)
	m.Position = fm.Position
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
}

// IntegrationLogModel is the persistence model for integration.Log.
// Rows are inserted once and never updated.
type IntegrationLogModel struct {
	ID            uuid.UUID             `gorm:"type:uuid;primary_key"`
	TenantID      *uuid.UUID            `gorm:"type:uuid;index"`
	IntegrationID *uuid.UUID            `gorm:"type:uuid;index:idx_integration_logs_integration_created,priority:1"`
	Direction     integration.Direction `gorm:"type:varchar(20);not null"`
	Status        integration.LogStatus `gorm:"type:varchar(20);not null;index"`
	EventType     integration.EventType `gorm:"type:varchar(50);not null"`
	Payload       datatypes.JSON        `gorm:"column:payload"`
	PayloadFormat string                `gorm:"type:varchar(20)"`
	Response      datatypes.JSON        `gorm:"column:response"`
	ErrorMessage  string                `gorm:"type:text"`
	LeadID        *uuid.UUID            `gorm:"type:uuid;index"`
	ElapsedMs     int64                 `gorm:"not null;default:0"`
	RequestID     string                `gorm:"type:varchar(64);index"`
	RemoteIP      string                `gorm:"type:varchar(64)"`
	ContentType   string                `gorm:"type:varchar(255)"`
	CreatedAt     time.Time             `gorm:"not null;index:idx_integration_logs_integration_created,priority:2"`
}

// TableName returns the table name for GORM
func (IntegrationLogModel) TableName() string {
	return "integration_logs"
}

// ToDomain converts the persistence model to a domain Log
func (m *IntegrationLogModel) ToDomain() integration.Log {
	return integration.Log{
		ID:            m.ID,
		TenantID:      m.TenantID,
		IntegrationID: m.IntegrationID,
		Direction:     m.Direction,
		Status:        m.Status,
		EventType:     m.EventType,
		Payload:       json.RawMessage(m.Payload),
		PayloadFormat: m.PayloadFormat,
		Response:      json.RawMessage(m.Response),
		ErrorMessage:  m.ErrorMessage,
		LeadID:        m.LeadID,
		ElapsedMs:     m.ElapsedMs,
		RequestID:     m.RequestID,
		RemoteIP:      m.RemoteIP,
		ContentType:   m.ContentType,
		CreatedAt:     m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain Log
func (m *IntegrationLogModel) FromDomain(l *integration.Log) {
	m.ID = l.ID
	m.TenantID = l.TenantID
	m.IntegrationID = l.IntegrationID
	m.Direction = l.Direction
	m.Status = l.Status
	m.EventType = l.EventType
	m.Payload = jsonColumn(l.Payload)
	m.PayloadFormat = l.PayloadFormat
	m.Response = jsonColumn(l.Response)
	m.ErrorMessage = l.ErrorMessage
	m.LeadID = l.LeadID
	m.ElapsedMs = l.ElapsedMs
	m.RequestID = l.RequestID
	m.RemoteIP = l.RemoteIP
	m.ContentType = l.ContentType
	m.CreatedAt = l.CreatedAt
}

// jsonColumn maps an empty document to SQL NULL
func jsonColumn(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}
