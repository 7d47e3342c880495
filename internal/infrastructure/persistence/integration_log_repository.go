package persistence

import (
	"context"

	"github.com/crm/backend/internal/domain/integration"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxRecentLogs = 200

// GormIntegrationLogRepository implements integration.LogRepository using GORM.
// Entries are append-only.
type GormIntegrationLogRepository struct {
	db *gorm.DB
}

// NewGormIntegrationLogRepository creates a new GormIntegrationLogRepository
func NewGormIntegrationLogRepository(db *gorm.DB) *GormIntegrationLogRepository {
	return &GormIntegrationLogRepository{db: db}
}

// Create inserts one audit entry
func (r *GormIntegrationLogRepository) Create(ctx context.Context, entry *integration.Log) error {
	var model models.IntegrationLogModel
	model.FromDomain(entry)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindRecent returns up to limit entries of an integration, newest first
func (r *GormIntegrationLogRepository) FindRecent(ctx context.Context, integrationID uuid.UUID, limit int) ([]integration.Log, error) {
	if limit <= 0 || limit > maxRecentLogs {
		limit = maxRecentLogs
	}

	var rows []models.IntegrationLogModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	logs := make([]integration.Log, len(rows))
	for i := range rows {
		logs[i] = rows[i].ToDomain()
	}
	return logs, nil
}
