package ingestion

import "strings"

// Canonical top-level fields
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPhone    = "phone"
	FieldDocument = "document"
	FieldNotes    = "notes"

	// AddressPrefix marks target fields stored in the address sub-map
	AddressPrefix = "address_"
)

// ResolutionMode records which strategy produced a draft
type ResolutionMode string

const (
	ModeExplicit   ResolutionMode = "explicit"
	ModeAutoDetect ResolutionMode = "auto_detect"
)

// Draft holds the fields resolved from one payload. Empty values are never
// stored.
type Draft struct {
	Mode    ResolutionMode    `json:"mode"`
	Fields  map[string]string `json:"fields"`
	Address map[string]string `json:"address,omitempty"`
}

// NewDraft creates an empty draft
func NewDraft(mode ResolutionMode) *Draft {
	return &Draft{
		Mode:    mode,
		Fields:  make(map[string]string),
		Address: make(map[string]string),
	}
}

// Set writes a non-empty value. Targets carrying AddressPrefix go to the
// address map with the prefix removed.
func (d *Draft) Set(target, value string) bool {
	if value == "" || target == "" {
		return false
	}
	if sub, ok := strings.CutPrefix(target, AddressPrefix); ok {
		if sub == "" {
			return false
		}
		d.Address[sub] = value
		return true
	}
	d.Fields[target] = value
	return true
}

// Get returns a top-level field
func (d *Draft) Get(field string) string {
	return d.Fields[field]
}

// Name returns the resolved name
func (d *Draft) Name() string { return d.Fields[FieldName] }

// Phone returns the resolved, normalized phone
func (d *Draft) Phone() string { return d.Fields[FieldPhone] }

// Email returns the resolved email
func (d *Draft) Email() string { return d.Fields[FieldEmail] }

// HasIdentity reports whether at least one of name, phone or email resolved
func (d *Draft) HasIdentity() bool {
	return d.Name() != "" || d.Phone() != "" || d.Email() != ""
}

// HasAddress reports whether any address sub-field resolved
func (d *Draft) HasAddress() bool {
	return len(d.Address) > 0
}

// DisplayName picks the first of name, phone or email, else placeholder
func (d *Draft) DisplayName(placeholder string) string {
	for _, v := range []string{d.Name(), d.Phone(), d.Email()} {
		if v != "" {
			return v
		}
	}
	return placeholder
}
