package telemetry

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dbStartKey = "telemetry:db_start"

// DBMetrics is a GORM plugin recording statement latency, plus a collector
// for connection pool gauges.
type DBMetrics struct {
	queryDuration *Histogram
	queryErrors   *Counter
	poolConns     *Gauge

	logger   *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDBMetrics creates the database instruments. interval defaults to 15s.
func NewDBMetrics(meter metric.Meter, interval time.Duration, logger *zap.Logger) (*DBMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	m := &DBMetrics{logger: logger, interval: interval, stopCh: make(chan struct{})}
	var err error
	if m.queryDuration, err = NewHistogram(meter,
		"db_query_duration_seconds",
		"Database statement latency",
		"s", DBDurationBuckets); err != nil {
		return nil, err
	}
	if m.queryErrors, err = NewCounter(meter,
		"db_query_errors_total",
		"Database statements that returned an error",
		"{query}"); err != nil {
		return nil, err
	}
	if m.poolConns, err = NewGauge(meter,
		"db_pool_connections",
		"Connections in the pool by state",
		"{connection}"); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements gorm.Plugin.
func (m *DBMetrics) Name() string { return "crm:db_metrics" }

// Initialize implements gorm.Plugin.
func (m *DBMetrics) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op       string
		register func(before, after func(*gorm.DB)) error
	}{
		{"INSERT", func(b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register("crm:metrics_before_create", b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("crm:metrics_after_create", a)
		}},
		{"SELECT", func(b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register("crm:metrics_before_query", b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("crm:metrics_after_query", a)
		}},
		{"UPDATE", func(b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register("crm:metrics_before_update", b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("crm:metrics_after_update", a)
		}},
	}

	before := func(tx *gorm.DB) { tx.InstanceSet(dbStartKey, time.Now()) }
	for _, h := range hooks {
		op := h.op
		if err := h.register(before, func(tx *gorm.DB) { m.record(tx, op) }); err != nil {
			return err
		}
	}
	return nil
}

func (m *DBMetrics) record(tx *gorm.DB, op string) {
	v, ok := tx.InstanceGet(dbStartKey)
	if !ok {
		return
	}
	start, _ := v.(time.Time)
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	m.queryDuration.RecordDuration(ctx, time.Since(start), AttrDBOp.String(op), AttrDBTable.String(table))
	if tx.Error != nil && tx.Error != gorm.ErrRecordNotFound {
		m.queryErrors.Inc(ctx, AttrDBOp.String(op), AttrDBTable.String(table))
	}
}

// StartPoolStatsCollection samples pool stats until Stop or ctx is done.
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context, sqlDB *sql.DB) {
	m.collectPoolStats(ctx, sqlDB)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.collectPoolStats(ctx, sqlDB)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *DBMetrics) collectPoolStats(ctx context.Context, sqlDB *sql.DB) {
	s := sqlDB.Stats()
	m.poolConns.Record(ctx, int64(s.Idle), AttrDBState.String("idle"))
	m.poolConns.Record(ctx, int64(s.InUse), AttrDBState.String("in_use"))
	m.poolConns.Record(ctx, int64(s.MaxOpenConnections), AttrDBState.String("max"))
}

// Stop ends pool stats collection. Safe to call multiple times.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

// RegisterDBMetrics installs the plugin on db and starts pool sampling when
// metrics are enabled. It returns nil when they are not.
func RegisterDBMetrics(ctx context.Context, db *gorm.DB, mp *MeterProvider, logger *zap.Logger) (*DBMetrics, error) {
	if !mp.IsEnabled() {
		return nil, nil
	}
	m, err := NewDBMetrics(mp.Meter("db.client"), 0, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Use(m); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	m.StartPoolStatsCollection(ctx, sqlDB)
	logger.Info("Database metrics registered")
	return m, nil
}
