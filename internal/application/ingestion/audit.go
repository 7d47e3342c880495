package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/ingestion"
	"github.com/crm/backend/internal/domain/integration"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const auditWriteTimeout = 5 * time.Second

// Auditor writes the per-call audit entry. A failed write is logged and
// counted; it never changes what the sender receives.
type Auditor struct {
	logs    integration.LogRepository
	metrics *telemetry.IngestionMetrics
}

// NewAuditor creates an Auditor
func NewAuditor(logs integration.LogRepository) *Auditor {
	return &Auditor{logs: logs}
}

// SetMetrics sets the metrics collector
func (a *Auditor) SetMetrics(m *telemetry.IngestionMetrics) {
	a.metrics = m
}

// Write stores entry. It outlives cancellation of ctx so that a sender
// hanging up does not lose the trace.
func (a *Auditor) Write(ctx context.Context, entry *integration.Log) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic writing audit log: %v", p)
		}
		if err != nil {
			logger.L(ctx).Error("Failed to write integration audit log",
				zap.String("event_type", string(entry.EventType)),
				zap.String("status", string(entry.Status)),
				zap.String("audit_id", entry.ID.String()),
				zap.Error(err))
			a.metrics.RecordAuditFailure(ctx)
		}
	}()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	return a.logs.Create(writeCtx, entry)
}

// payloadSnapshot renders the payload for the audit entry: the parsed tree
// when there is one, else the raw text as a JSON string, else nothing
func payloadSnapshot(body *ingestion.Body) json.RawMessage {
	if body == nil {
		return nil
	}
	if !body.Payload.IsNull() {
		if out, err := body.Payload.MarshalJSON(); err == nil {
			return out
		}
	}
	if strings.TrimSpace(body.Raw) == "" {
		return nil
	}
	out, err := json.Marshal(body.Raw)
	if err != nil {
		return nil
	}
	return out
}
