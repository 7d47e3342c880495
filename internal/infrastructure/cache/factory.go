package cache

import (
	"fmt"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// LockerFactory builds the ingestion guard locker for the configured mode
type LockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// LockerFactoryOption is a functional option for configuring the factory
type LockerFactoryOption func(*LockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether redis mode may fall back to the
// in-memory locker when Redis is unreachable. Default is true.
func WithInMemoryFallback(allow bool) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockerFactory creates a new factory
func NewLockerFactory(cfg config.RedisConfig, opts ...LockerFactoryOption) *LockerFactory {
	f := &LockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the locker for mode: none, memory or redis
func (f *LockerFactory) Create(mode string) (shared.Locker, error) {
	switch mode {
	case "", config.GuardModeNone:
		f.logger.Info("ingestion guard disabled; concurrent calls for one phone may create duplicate leads")
		return shared.NopLocker{}, nil
	case config.GuardModeMemory:
		f.logger.Info("using in-memory ingestion guard")
		return NewInMemoryLocker(), nil
	case config.GuardModeRedis:
		return f.createRedis()
	default:
		return nil, fmt.Errorf("unknown guard mode %q", mode)
	}
}

func (f *LockerFactory) createRedis() (shared.Locker, error) {
	locker, err := NewRedisLocker(f.redisConfig.Addr(), f.redisConfig.Password, f.redisConfig.DB)
	if err == nil {
		f.logger.Info("using Redis ingestion guard", zap.String("addr", f.redisConfig.Addr()))
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for ingestion guard but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory ingestion guard. "+
		"Replicas will not coordinate and may create duplicate leads.",
		zap.Error(err),
	)
	return NewInMemoryLocker(), nil
}
