package integration

import (
	"strings"

	"github.com/crm/backend/internal/domain/ingestion"
	"github.com/google/uuid"
)

// FieldMapping routes one payload field into a lead field.
// SourceField is a dot path or a bare key; TargetField is a bare lead field
// or an address_ prefixed address field.
type FieldMapping struct {
	ID            uuid.UUID
	IntegrationID uuid.UUID               `validate:"required"`
	SourceField   string                  `validate:"required,max=255"`
	TargetField   string                  `validate:"required,max=100"`
	TransformType ingestion.TransformType `validate:"omitempty,max=50"`
	Position      int
}

// NewFieldMapping creates a mapping for an integration
func NewFieldMapping(integrationID uuid.UUID, source, target string, transform ingestion.TransformType) (*FieldMapping, error) {
	m := &FieldMapping{
		ID:            uuid.New(),
		IntegrationID: integrationID,
		SourceField:   strings.TrimSpace(source),
		TargetField:   strings.TrimSpace(target),
		TransformType: transform,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the invariants that do not need the validator tags
func (m *FieldMapping) Validate() error {
	if m.IntegrationID == uuid.Nil {
		return ErrInvalidIntegrationID
	}
	if m.SourceField == "" || m.TargetField == "" || m.TargetField == ingestion.AddressPrefix {
		return ErrInvalidFieldMapping
	}
	return nil
}

// Rule converts the mapping into the form used by the mapping resolver
func (m FieldMapping) Rule() ingestion.Mapping {
	return ingestion.Mapping{
		SourceField: m.SourceField,
		TargetField: m.TargetField,
		Transform:   m.TransformType,
	}
}

// Rules converts mappings, keeping their order
func Rules(mappings []FieldMapping) []ingestion.Mapping {
	rules := make([]ingestion.Mapping, 0, len(mappings))
	for _, m := range mappings {
		rules = append(rules, m.Rule())
	}
	return rules
}
