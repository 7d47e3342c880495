package integration

import (
	"context"

	"github.com/google/uuid"
)

// ConfigRepository reads integration configs
type ConfigRepository interface {
	// FindByToken returns the config owning token whatever its status.
	// Returns ErrConfigNotFound when no config matches.
	FindByToken(ctx context.Context, token string) (*Config, error)

	// Save creates or updates a config
	Save(ctx context.Context, cfg *Config) error
}

// FieldMappingRepository reads field mappings
type FieldMappingRepository interface {
	// FindByIntegration returns the mappings of an integration ordered by position
	FindByIntegration(ctx context.Context, integrationID uuid.UUID) ([]FieldMapping, error)

	// Save creates or updates a mapping
	Save(ctx context.Context, m *FieldMapping) error
}

// LogRepository appends audit entries
type LogRepository interface {
	// Create stores an entry; entries are never updated
	Create(ctx context.Context, entry *Log) error

	// FindRecent returns the latest entries of an integration, newest first
	FindRecent(ctx context.Context, integrationID uuid.UUID, limit int) ([]Log, error)
}
