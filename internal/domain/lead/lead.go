package lead

import (
	"fmt"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Lead is a prospective customer. Within a tenant it is identified by its
// normalized phone, though uniqueness is not enforced by the store.
// Observations only ever grow.
type Lead struct {
	shared.TenantEntity
	Name          string
	Phone         string
	Email         string
	Document      string
	StageID       *uuid.UUID
	IntegrationID *uuid.UUID
	Source        string
	Observations  string
}

// NewLead creates a lead
func NewLead(tenantID uuid.UUID, name string, now time.Time) (*Lead, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	return &Lead{
		TenantEntity: shared.NewTenantEntityAt(tenantID, now),
		Name:         name,
	}, nil
}

// ObservationBlock formats one source-attributed observation entry
func ObservationBlock(at time.Time, source, title, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", at.Format("02/01/2006 15:04:05"), title)
	if source != "" {
		fmt.Fprintf(&b, " (%s)", source)
	}
	b.WriteString(":\n")
	b.WriteString(body)
	return b.String()
}

// AppendObservation adds block to the end of the observations log
func (l *Lead) AppendObservation(block string) {
	l.Observations = JoinObservation(l.Observations, block)
}

// JoinObservation returns existing followed by block. Existing text is
// always a prefix of the result.
func JoinObservation(existing, block string) string {
	if existing == "" {
		return block
	}
	return existing + ObservationSeparator + block
}

// ObservationSeparator goes between observation blocks
const ObservationSeparator = "\n\n"
