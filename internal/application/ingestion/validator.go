package ingestion

import (
	"fmt"

	"github.com/crm/backend/internal/domain/ingestion"
	"github.com/crm/backend/internal/domain/integration"
	"github.com/go-playground/validator/v10"
)

// configValidator checks configs and mappings read from the store. They are
// authored by another system, so nothing guarantees they are well formed.
type configValidator struct {
	validate *validator.Validate
}

func newConfigValidator() *configValidator {
	return &configValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Mappings returns the usable mappings in order together with one error per
// mapping that was dropped
func (v *configValidator) Mappings(mappings []integration.FieldMapping) ([]ingestion.Mapping, []error) {
	rules := make([]ingestion.Mapping, 0, len(mappings))
	var rejected []error
	for _, m := range mappings {
		if err := v.mapping(m); err != nil {
			rejected = append(rejected, fmt.Errorf("mapping %s (%s -> %s): %w", m.ID, m.SourceField, m.TargetField, err))
			continue
		}
		rules = append(rules, m.Rule())
	}
	return rules, rejected
}

func (v *configValidator) mapping(m integration.FieldMapping) error {
	if err := v.validate.Struct(m); err != nil {
		return err
	}
	return m.Validate()
}

// Config reports problems with the fields the engine relies on. A config that
// fails here is still processed; the result is only logged.
func (v *configValidator) Config(cfg *integration.Config) error {
	return v.validate.Struct(cfg)
}
