package ingestion

import (
	"github.com/crm/backend/internal/domain/ingestion"
)

// Response codes returned to webhook senders
const (
	CodeUnauthorized        = "ERR_UNAUTHORIZED"
	CodeIntegrationInactive = "ERR_INTEGRATION_INACTIVE"
	CodeInvalidPayload      = "ERR_INVALID_PAYLOAD"
	CodeMissingIdentity     = "ERR_MISSING_IDENTITY"
	CodeWriteFailed         = "ERR_WRITE_FAILED"
	CodeInternal            = "ERR_INTERNAL"
)

// Action tells the sender what happened to the lead
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Request is one inbound webhook call as seen by the service
type Request struct {
	Token       string
	TestMode    bool
	ContentType string
	Body        []byte
	RequestID   string
	RemoteIP    string
}

// Response is the JSON body returned to the sender and stored in the audit log.
// PayloadFormat and PayloadPreview are only set when the body failed to parse.
type Response struct {
	Success        bool             `json:"success"`
	Action         Action           `json:"action,omitempty"`
	LeadID         string           `json:"lead_id,omitempty"`
	Message        string           `json:"message,omitempty"`
	Error          string           `json:"error,omitempty"`
	Code           string           `json:"code,omitempty"`
	ReceivedFields []string         `json:"received_fields,omitempty"`
	PayloadFormat  string           `json:"payload_format,omitempty"`
	PayloadPreview string           `json:"payload_preview,omitempty"`
	TestMode       bool             `json:"test_mode,omitempty"`
	Preview        *ingestion.Draft `json:"preview,omitempty"`
	Cascade        []StepResult     `json:"cascade,omitempty"`
	RequestID      string           `json:"request_id,omitempty"`
}

// codeForKind maps an error kind to its response code
func codeForKind(kind ingestion.ErrorKind) string {
	switch kind {
	case ingestion.KindAuth:
		return CodeUnauthorized
	case ingestion.KindConfigInactive:
		return CodeIntegrationInactive
	case ingestion.KindPayloadSyntax:
		return CodeInvalidPayload
	case ingestion.KindIdentityMissing:
		return CodeMissingIdentity
	case ingestion.KindDownstreamWrite:
		return CodeWriteFailed
	default:
		return CodeInternal
	}
}
