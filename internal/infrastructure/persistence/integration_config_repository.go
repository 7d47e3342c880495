package persistence

import (
	"context"
	"errors"

	"github.com/crm/backend/internal/domain/integration"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormIntegrationConfigRepository implements integration.ConfigRepository using GORM
type GormIntegrationConfigRepository struct {
	db *gorm.DB
}

// NewGormIntegrationConfigRepository creates a new GormIntegrationConfigRepository
func NewGormIntegrationConfigRepository(db *gorm.DB) *GormIntegrationConfigRepository {
	return &GormIntegrationConfigRepository{db: db}
}

// FindByToken finds a config by its token regardless of status
func (r *GormIntegrationConfigRepository) FindByToken(ctx context.Context, token string) (*integration.Config, error) {
	if token == "" {
		return nil, integration.ErrConfigNotFound
	}
	var model models.IntegrationConfigModel
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrConfigNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a config
func (r *GormIntegrationConfigRepository) Save(ctx context.Context, cfg *integration.Config) error {
	var model models.IntegrationConfigModel
	model.FromDomain(cfg)
	return r.db.WithContext(ctx).Save(&model).Error
}

// GormFieldMappingRepository implements integration.FieldMappingRepository using GORM
type GormFieldMappingRepository struct {
	db *gorm.DB
}

// NewGormFieldMappingRepository creates a new GormFieldMappingRepository
func NewGormFieldMappingRepository(db *gorm.DB) *GormFieldMappingRepository {
	return &GormFieldMappingRepository{db: db}
}

// FindByIntegration returns the mappings of an integration in position order.
// Rows sharing a position keep their insertion order.
func (r *GormFieldMappingRepository) FindByIntegration(ctx context.Context, integrationID uuid.UUID) ([]integration.FieldMapping, error) {
	var rows []models.FieldMappingModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("position ASC").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	mappings := make([]integration.FieldMapping, len(rows))
	for i := range rows {
		mappings[i] = rows[i].ToDomain()
	}
	return mappings, nil
}

// Save creates or updates a mapping
func (r *GormFieldMappingRepository) Save(ctx context.Context, m *integration.FieldMapping) error {
	var model models.FieldMappingModel
	model.FromDomain(m)
	return r.db.WithContext(ctx).Save(&model).Error
}
