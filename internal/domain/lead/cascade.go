package lead

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Address is a lead's postal address
type Address struct {
	shared.TenantEntity
	LeadID       uuid.UUID
	ZipCode      string
	Street       string
	Number       string
	Neighborhood string
	City         string
	State        string
	Complement   string
}

// NewAddressFromFields builds an address from resolved address sub-fields
// keyed without their address_ prefix
func NewAddressFromFields(l *Lead, fields map[string]string) *Address {
	return &Address{
		TenantEntity: shared.NewTenantEntity(l.TenantID),
		LeadID:       l.ID,
		ZipCode:      fields["zip_code"],
		Street:       fields["street"],
		Number:       fields["number"],
		Neighborhood: fields["neighborhood"],
		City:         fields["city"],
		State:        fields["state"],
		Complement:   fields["complement"],
	}
}

// Responsible assigns a user to a lead
type Responsible struct {
	shared.TenantEntity
	LeadID uuid.UUID
	UserID uuid.UUID
}

// NewResponsible creates an assignment
func NewResponsible(l *Lead, userID uuid.UUID) *Responsible {
	return &Responsible{
		TenantEntity: shared.NewTenantEntity(l.TenantID),
		LeadID:       l.ID,
		UserID:       userID,
	}
}

// FollowUpStatus tracks a follow-up task
type FollowUpStatus string

const (
	FollowUpPending FollowUpStatus = "pending"
	FollowUpDone    FollowUpStatus = "done"
)

// FollowUp is a scheduled contact with a lead
type FollowUp struct {
	shared.TenantEntity
	LeadID        uuid.UUID
	ResponsibleID uuid.UUID
	DueAt         time.Time
	Description   string
	Status        FollowUpStatus
}

// NewFollowUp schedules a follow-up days after from
func NewFollowUp(l *Lead, responsibleID uuid.UUID, from time.Time, days int, description string) *FollowUp {
	return &FollowUp{
		TenantEntity:  shared.NewTenantEntity(l.TenantID),
		LeadID:        l.ID,
		ResponsibleID: responsibleID,
		DueAt:         from.AddDate(0, 0, days).UTC(),
		Description:   description,
		Status:        FollowUpPending,
	}
}

// ProductInterest links a lead to a product it asked about
type ProductInterest struct {
	shared.TenantEntity
	LeadID    uuid.UUID
	ProductID uuid.UUID
}

// NewProductInterest creates a link
func NewProductInterest(l *Lead, productID uuid.UUID) *ProductInterest {
	return &ProductInterest{
		TenantEntity: shared.NewTenantEntity(l.TenantID),
		LeadID:       l.ID,
		ProductID:    productID,
	}
}

// NonPurchaseTag records why a lead did not buy
type NonPurchaseTag struct {
	shared.TenantEntity
	LeadID   uuid.UUID
	ReasonID uuid.UUID
}

// NewNonPurchaseTag creates a tag
func NewNonPurchaseTag(l *Lead, reasonID uuid.UUID) *NonPurchaseTag {
	return &NonPurchaseTag{
		TenantEntity: shared.NewTenantEntity(l.TenantID),
		LeadID:       l.ID,
		ReasonID:     reasonID,
	}
}
