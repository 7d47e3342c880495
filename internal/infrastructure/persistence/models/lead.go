package models

import (
	"time"

	"github.com/crm/backend/internal/domain/lead"
	"github.com/google/uuid"
)

// LeadModel is the persistence model for lead.Lead.
// Phone is indexed for dedup lookups but is not unique.
type LeadModel struct {
	TenantModel
	Name          string     `gorm:"type:varchar(255);not null"`
	Phone         string     `gorm:"type:varchar(32);index:idx_leads_phone"`
	Email         string     `gorm:"type:varchar(255)"`
	Document      string     `gorm:"type:varchar(32)"`
	StageID       *uuid.UUID `gorm:"type:uuid"`
	IntegrationID *uuid.UUID `gorm:"type:uuid;index"`
	Source        string     `gorm:"type:varchar(200)"`
	Observations  string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (LeadModel) TableName() string {
	return "leads"
}

// ToDomain converts the persistence model to a domain Lead
func (m *LeadModel) ToDomain() *lead.Lead {
	return &lead.Lead{
		TenantEntity:  m.ToDomainTenantEntity(),
		Name:          m.Name,
		Phone:         m.Phone,
		Email:         m.Email,
		Document:      m.Document,
		StageID:       m.StageID,
		IntegrationID: m.IntegrationID,
		Source:        m.Source,
		Observations:  m.Observations,
	}
}

// FromDomain populates the persistence model from a domain Lead
func (m *LeadModel) FromDomain(l *lead.Lead) {
	m.FromDomainTenantEntity(l.TenantEntity)
	m.Name = l.Name
	m.Phone = l.Phone
	m.Email = l.Email
	m.Document = l.Document
	m.StageID = l.StageID
	m.IntegrationID = l.IntegrationID
	m.Source = l.Source
	m.Observations = l.Observations
}

// LeadAddressModel is the persistence model for lead.Address
type LeadAddressModel struct {
	TenantModel
	LeadID       uuid.UUID `gorm:"type:uuid;not null;index"`
	ZipCode      string    `gorm:"type:varchar(20)"`
	Street       string    `gorm:"type:varchar(255)"`
	Number       string    `gorm:"type:varchar(20)"`
	Neighborhood string    `gorm:"type:varchar(120)"`
	City         string    `gorm:"type:varchar(120)"`
	State        string    `gorm:"type:varchar(60)"`
	Complement   string    `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (LeadAddressModel) TableName() string {
	return "lead_addresses"
}

// ToDomain converts the persistence model to a domain Address
func (m *LeadAddressModel) ToDomain() lead.Address {
	return lead.Address{
		TenantEntity: m.ToDomainTenantEntity(),
		LeadID:       m.LeadID,
		ZipCode:      m.ZipCode,
		Street:       m.Street,
		Number:       m.Number,
		Neighborhood: m.Neighborhood,
		City:         m.City,
		State:        m.State,
		Complement:   m.Complement,
	}
}

// FromDomain populates the persistence model from a domain Address
func (m *LeadAddressModel) FromDomain(a *lead.Address) {
	m.FromDomainTenantEntity(a.TenantEntity)
	m.LeadID = a.LeadID
	m.ZipCode = a.ZipCode
	m.Street = a.Street
	m.Number = a.Number
	m.Neighborhood = a.Neighborhood
	m.City = a.City
	m.State = a.State
	m.Complement = a.Complement
}

// LeadResponsibleModel is the persistence model for lead.Responsible
type LeadResponsibleModel struct {
	TenantModel
	LeadID uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (LeadResponsibleModel) TableName() string {
	return "lead_responsibles"
}

// ToDomain converts the persistence model to a domain Responsible
func (m *LeadResponsibleModel) ToDomain() lead.Responsible {
	return lead.Responsible{
		TenantEntity: m.ToDomainTenantEntity(),
		LeadID:       m.LeadID,
		UserID:       m.UserID,
	}
}

// FromDomain populates the persistence model from a domain Responsible
func (m *LeadResponsibleModel) FromDomain(r *lead.Responsible) {
	m.FromDomainTenantEntity(r.TenantEntity)
	m.LeadID = r.LeadID
	m.UserID = r.UserID
}

// LeadFollowUpModel is the persistence model for lead.FollowUp
type LeadFollowUpModel struct {
	TenantModel
	LeadID        uuid.UUID           `gorm:"type:uuid;not null;index"`
	ResponsibleID uuid.UUID           `gorm:"type:uuid;not null;index"`
	DueAt         time.Time           `gorm:"not null;index"`
	Description   string              `gorm:"type:text"`
	Status        lead.FollowUpStatus `gorm:"type:varchar(20);not null;default:'pending'"`
}

// TableName returns the table name for GORM
func (LeadFollowUpModel) TableName() string {
	return "lead_follow_ups"
}

// ToDomain converts the persistence model to a domain FollowUp
func (m *LeadFollowUpModel) ToDomain() lead.FollowUp {
	return lead.FollowUp{
		TenantEntity:  m.ToDomainTenantEntity(),
		LeadID:        m.LeadID,
		ResponsibleID: m.ResponsibleID,
		DueAt:         m.DueAt,
		Description:   m.Description,
		Status:        m.Status,
	}
}

// FromDomain populates the persistence model from a domain FollowUp
func (m *LeadFollowUpModel) FromDomain(f *lead.FollowUp) {
	m.FromDomainTenantEntity(f.TenantEntity)
	m.LeadID = f.LeadID
	m.ResponsibleID = f.ResponsibleID
	m.DueAt = f.DueAt
	m.Description = f.Description
	m.Status = f.Status
}

// LeadProductInterestModel is the persistence model for lead.ProductInterest
type LeadProductInterestModel struct {
	TenantModel
	LeadID    uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (LeadProductInterestModel) TableName() string {
	return "lead_product_interests"
}

// ToDomain converts the persistence model to a domain ProductInterest
func (m *LeadProductInterestModel) ToDomain() lead.ProductInterest {
	return lead.ProductInterest{
		TenantEntity: m.ToDomainTenantEntity(),
		LeadID:       m.LeadID,
		ProductID:    m.ProductID,
	}
}

// FromDomain populates the persistence model from a domain ProductInterest
func (m *LeadProductInterestModel) FromDomain(p *lead.ProductInterest) {
	m.FromDomainTenantEntity(p.TenantEntity)
	m.LeadID = p.LeadID
	m.ProductID = p.ProductID
}

// LeadNonPurchaseTagModel is the persistence model for lead.NonPurchaseTag
type LeadNonPurchaseTagModel struct {
	TenantModel
	LeadID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ReasonID uuid.UUID `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (LeadNonPurchaseTagModel) TableName() string {
	return "lead_non_purchase_tags"
}

// ToDomain converts the persistence model to a domain NonPurchaseTag
func (m *LeadNonPurchaseTagModel) ToDomain() lead.NonPurchaseTag {
	return lead.NonPurchaseTag{
		TenantEntity: m.ToDomainTenantEntity(),
		LeadID:       m.LeadID,
		ReasonID:     m.ReasonID,
	}
}

// FromDomain populates the persistence model from a domain NonPurchaseTag
func (m *LeadNonPurchaseTagModel) FromDomain(t *lead.NonPurchaseTag) {
	m.FromDomainTenantEntity(t.TenantEntity)
	m.LeadID = t.LeadID
	m.ReasonID = t.ReasonID
}

// All returns every model managed by this service, in creation order
func All() []any {
	return []any{
		&IntegrationConfigModel{},
		&FieldMappingModel{},
		&IntegrationLogModel{},
		&LeadModel{},
		&LeadAddressModel{},
		&LeadResponsibleModel{},
		&LeadFollowUpModel{},
		&LeadProductInterestModel{},
		&LeadNonPurchaseTagModel{},
	}
}
