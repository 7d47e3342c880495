package integration

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Status represents whether an integration accepts inbound data
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

// Config is an integration as seen by the ingestion engine.
// A token resolves to at most one Config.
type Config struct {
	shared.TenantEntity
	Name   string `validate:"required,max=200"`
	Token  string `validate:"required,min=8,max=255"`
	Status Status `validate:"oneof=active inactive"`
	// DefaultStageID is the pipeline stage new leads start in
	DefaultStageID *uuid.UUID
	// DefaultResponsibleIDs are assigned to every new lead, in order
	DefaultResponsibleIDs []uuid.UUID
	// DefaultProductID is linked as product interest on new leads
	DefaultProductID *uuid.UUID
	// FollowUpDays schedules a follow-up this many days after creation; 0 disables it
	FollowUpDays int `validate:"gte=0,lte=3650"`
	// DefaultNonPurchaseReasonID tags new leads with a non-purchase reason
	DefaultNonPurchaseReasonID *uuid.UUID
	// Settings holds free-form options owned by the configuration UI
	Settings map[string]any
}

// NewConfig creates an active integration config
func NewConfig(tenantID uuid.UUID, name, token string) (*Config, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Integration name cannot be empty")
	}
	if token == "" {
		return nil, ErrInvalidToken
	}
	return &Config{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Name:         name,
		Token:        token,
		Status:       StatusActive,
		Settings:     make(map[string]any),
	}, nil
}

// IsActive reports whether the integration accepts data
func (c *Config) IsActive() bool {
	return c.Status == StatusActive
}

// Deactivate disables the integration
func (c *Config) Deactivate() {
	c.Status = StatusInactive
	c.UpdatedAt = time.Now().UTC()
}

// Activate enables the integration
func (c *Config) Activate() {
	c.Status = StatusActive
	c.UpdatedAt = time.Now().UTC()
}

// FirstResponsible returns the first default responsible, if any
func (c *Config) FirstResponsible() (uuid.UUID, bool) {
	if len(c.DefaultResponsibleIDs) == 0 {
		return uuid.Nil, false
	}
	return c.DefaultResponsibleIDs[0], true
}

// FollowUpEnabled reports whether new leads get a follow-up
func (c *Config) FollowUpEnabled() bool {
	return c.FollowUpDays > 0
}
