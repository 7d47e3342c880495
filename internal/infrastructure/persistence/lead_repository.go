package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/crm/backend/internal/domain/lead"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLeadRepository implements lead.LeadRepository using GORM
type GormLeadRepository struct {
	db *gorm.DB
}

// NewGormLeadRepository creates a new GormLeadRepository
func NewGormLeadRepository(db *gorm.DB) *GormLeadRepository {
	return &GormLeadRepository{db: db}
}

// FindOldestByPhone returns the first created lead with exactly phone.
// Duplicates may exist; the tie on created_at is broken by id.
func (r *GormLeadRepository) FindOldestByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*lead.Lead, error) {
	if phone == "" {
		return nil, lead.ErrLeadNotFound
	}
	var model models.LeadModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("phone = ?", phone).
		Order("created_at ASC").
		Order("id ASC").
		Limit(1).
		Find(&model).Error; err != nil {
		return nil, err
	}
	if model.ID == uuid.Nil {
		return nil, lead.ErrLeadNotFound
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a lead by ID within a tenant
func (r *GormLeadRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*lead.Lead, error) {
	var model models.LeadModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lead.ErrLeadNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new lead
func (r *GormLeadRepository) Create(ctx context.Context, l *lead.Lead) error {
	var model models.LeadModel
	model.FromDomain(l)
	return r.db.WithContext(ctx).Create(&model).Error
}

// AppendObservation concatenates block onto the stored observations inside the
// UPDATE itself, so two concurrent appends both survive.
func (r *GormLeadRepository) AppendObservation(ctx context.Context, tenantID, id uuid.UUID, block string) error {
	result := r.db.WithContext(ctx).
		Model(&models.LeadModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{
			"observations": gorm.Expr(
				"CASE WHEN observations IS NULL OR observations = '' THEN ? ELSE observations || ? END",
				block, lead.ObservationSeparator+block,
			),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return lead.ErrLeadNotFound
	}
	return nil
}
