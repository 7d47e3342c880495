package integration

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Direction of an integration call
type Direction string

const (
	DirectionInbound Direction = "inbound"
)

// LogStatus is the outcome class of a call
type LogStatus string

const (
	LogStatusSuccess  LogStatus = "success"
	LogStatusRejected LogStatus = "rejected"
	LogStatusError    LogStatus = "error"
	LogStatusTest     LogStatus = "test"
)

// EventType is the specific outcome of a call
type EventType string

const (
	EventLeadCreated         EventType = "lead_created"
	EventLeadUpdated         EventType = "lead_updated"
	EventAuthFailed          EventType = "auth_failed"
	EventIntegrationInactive EventType = "integration_inactive"
	EventInvalidPayload      EventType = "invalid_payload"
	EventMissingIdentity     EventType = "missing_identity"
	EventTest                EventType = "test"
	EventWriteFailed         EventType = "write_failed"
	EventUnexpectedError     EventType = "unexpected_error"
)

// Log is the audit entry written once per inbound call, on every path.
// TenantID and IntegrationID are nil when the token did not resolve.
type Log struct {
	ID            uuid.UUID
	TenantID      *uuid.UUID
	IntegrationID *uuid.UUID
	Direction     Direction
	Status        LogStatus
	EventType     EventType
	// Payload is the structured payload, or the raw body as a JSON string
	// when the body could not be parsed
	Payload       json.RawMessage
	PayloadFormat string
	// Response is the body returned to the sender
	Response     json.RawMessage
	ErrorMessage string
	LeadID       *uuid.UUID
	ElapsedMs    int64
	RequestID    string
	RemoteIP     string
	ContentType  string
	CreatedAt    time.Time
}

// NewInboundLog creates an inbound audit entry
func NewInboundLog(status LogStatus, event EventType) *Log {
	return &Log{
		ID:        uuid.New(),
		Direction: DirectionInbound,
		Status:    status,
		EventType: event,
		CreatedAt: time.Now().UTC(),
	}
}

// WithConfig scopes the entry to an integration
func (l *Log) WithConfig(cfg *Config) *Log {
	if cfg == nil {
		return l
	}
	tenantID, integrationID := cfg.TenantID, cfg.ID
	l.TenantID = &tenantID
	l.IntegrationID = &integrationID
	return l
}
