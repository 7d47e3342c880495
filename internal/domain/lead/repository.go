package lead

import (
	"context"

	"github.com/google/uuid"
)

// LeadRepository persists leads
type LeadRepository interface {
	// FindOldestByPhone returns the earliest created lead with exactly phone
	// in the tenant. Returns ErrLeadNotFound when there is none.
	FindOldestByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*Lead, error)

	// FindByIDForTenant finds a lead by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Lead, error)

	// Create inserts a new lead
	Create(ctx context.Context, l *Lead) error

	// AppendObservation appends block to the stored observations in a single
	// statement, so concurrent appends never lose each other's text
	AppendObservation(ctx context.Context, tenantID, id uuid.UUID, block string) error
}

// AddressRepository persists lead addresses
type AddressRepository interface {
	Create(ctx context.Context, a *Address) error
	FindByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]Address, error)
}

// ResponsibleRepository persists responsible assignments
type ResponsibleRepository interface {
	Create(ctx context.Context, r *Responsible) error
	FindByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]Responsible, error)
}

// FollowUpRepository persists follow-ups
type FollowUpRepository interface {
	Create(ctx context.Context, f *FollowUp) error
	FindByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]FollowUp, error)
}

// ProductInterestRepository persists product interest links
type ProductInterestRepository interface {
	Create(ctx context.Context, p *ProductInterest) error
	FindByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]ProductInterest, error)
}

// NonPurchaseTagRepository persists non-purchase tags
type NonPurchaseTagRepository interface {
	Create(ctx context.Context, t *NonPurchaseTag) error
	FindByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]NonPurchaseTag, error)
}
