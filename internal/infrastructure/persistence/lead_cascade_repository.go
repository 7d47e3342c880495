package persistence

import (
	"context"

	"github.com/crm/backend/internal/domain/lead"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// findByLead loads the rows attached to a lead, oldest first
func findByLead[M any](ctx context.Context, db *gorm.DB, tenantID, leadID uuid.UUID) ([]M, error) {
	var rows []M
	err := db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("lead_id = ?", leadID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// GormLeadAddressRepository implements lead.AddressRepository using GORM
type GormLeadAddressRepository struct {
	db *gorm.DB
}

func NewGormLeadAddressRepository(db *gorm.DB) *GormLeadAddressRepository {
	return &GormLeadAddressRepository{db: db}
}

func (r *GormLeadAddressRepository) Create(ctx context.Context, a *lead.Address) error {
	var model models.LeadAddressModel
	model.FromDomain(a)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *GormLeadAddressRepository) FindByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]lead.Address, error) {
	rows, err := findByLead[models.LeadAddressModel](ctx, r.db, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	out := make([]lead.Address, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// GormLeadResponsibleRepository implements lead.ResponsibleRepository using GORM
type GormLeadResponsibleRepository struct {
	db *gorm.DB
}

func NewGormLeadResponsibleRepository(db *gorm.DB) *GormLeadResponsibleRepository {
	return &GormLeadResponsibleRepository{db: db}
}

func (r *GormLeadResponsibleRepository) Create(ctx context.Context, resp *lead.Responsible) error {
	var model models.LeadResponsibleModel
	model.FromDomain(resp)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *GormLeadResponsibleRepository) FindByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]lead.Responsible, error) {
	rows, err := findByLead[models.LeadResponsibleModel](ctx, r.db, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	out := make([]lead.Responsible, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// GormLeadFollowUpRepository implements lead.FollowUpRepository using GORM
type GormLeadFollowUpRepository struct {
	db *gorm.DB
}

func NewGormLeadFollowUpRepository(db *gorm.DB) *GormLeadFollowUpRepository {
	return &GormLeadFollowUpRepository{db: db}
}

func (r *GormLeadFollowUpRepository) Create(ctx context.Context, f *lead.FollowUp) error {
	var model models.LeadFollowUpModel
	model.FromDomain(f)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *GormLeadFollowUpRepository) FindByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]lead.FollowUp, error) {
	rows, err := findByLead[models.LeadFollowUpModel](ctx, r.db, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	out := make([]lead.FollowUp, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// GormLeadProductInterestRepository implements lead.ProductInterestRepository using GORM
type GormLeadProductInterestRepository struct {
	db *gorm.DB
}

func NewGormLeadProductInterestRepository(db *gorm.DB) *GormLeadProductInterestRepository {
	return &GormLeadProductInterestRepository{db: db}
}

func (r *GormLeadProductInterestRepository) Create(ctx context.Context, p *lead.ProductInterest) error {
	var model models.LeadProductInterestModel
	model.FromDomain(p)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *GormLeadProductInterestRepository) FindByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]lead.ProductInterest, error) {
	rows, err := findByLead[models.LeadProductInterestModel](ctx, r.db, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	out := make([]lead.ProductInterest, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// GormLeadNonPurchaseTagRepository implements lead.NonPurchaseTagRepository using GORM
type GormLeadNonPurchaseTagRepository struct {
	db *gorm.DB
}

func NewGormLeadNonPurchaseTagRepository(db *gorm.DB) *GormLeadNonPurchaseTagRepository {
	return &GormLeadNonPurchaseTagRepository{db: db}
}

func (r *GormLeadNonPurchaseTagRepository) Create(ctx context.Context, t *lead.NonPurchaseTag) error {
	var model models.LeadNonPurchaseTagModel
	model.FromDomain(t)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *GormLeadNonPurchaseTagRepository) FindByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]lead.NonPurchaseTag, error) {
	rows, err := findByLead[models.LeadNonPurchaseTagModel](ctx, r.db, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	out := make([]lead.NonPurchaseTag, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}
