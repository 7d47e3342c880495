package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and timestamps. Timestamps are always UTC.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntityAt assigns a fresh ID and stamps both timestamps with now
func NewBaseEntityAt(now time.Time) BaseEntity {
	now = now.UTC()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// TenantEntity is a BaseEntity owned by one tenant. Every read and write of
// a tenant entity is filtered by TenantID.
type TenantEntity struct {
	BaseEntity
	TenantID uuid.UUID
}

// GetTenantID returns the owning tenant
func (e *TenantEntity) GetTenantID() uuid.UUID {
	return e.TenantID
}

// NewTenantEntity creates a tenant entity stamped with the current time
func NewTenantEntity(tenantID uuid.UUID) TenantEntity {
	return NewTenantEntityAt(tenantID, time.Now())
}

// NewTenantEntityAt creates a tenant entity stamped with now
func NewTenantEntityAt(tenantID uuid.UUID, now time.Time) TenantEntity {
	return TenantEntity{BaseEntity: NewBaseEntityAt(now), TenantID: tenantID}
}
