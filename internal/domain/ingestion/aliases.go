package ingestion

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var aliasesYAML []byte

// AliasEntry lists the alternate spellings tried for one canonical field
type AliasEntry struct {
	Field     string        `yaml:"field"`
	Transform TransformType `yaml:"transform,omitempty"`
	Aliases   []string      `yaml:"aliases"`
}

// AliasTable is the ordered set of alias entries used for auto-detection.
// It is immutable once loaded.
type AliasTable struct {
	entries []AliasEntry
}

type aliasFile struct {
	Fields []AliasEntry `yaml:"fields"`
}

var defaultAliases = mustLoadAliasTable(aliasesYAML)

// DefaultAliasTable returns the built-in alias table
func DefaultAliasTable() *AliasTable {
	return defaultAliases
}

// LoadAliasTable parses an alias table from YAML
func LoadAliasTable(data []byte) (*AliasTable, error) {
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse alias table: %w", err)
	}
	if len(f.Fields) == 0 {
		return nil, fmt.Errorf("alias table has no fields")
	}

	seen := make(map[string]struct{}, len(f.Fields))
	for i, e := range f.Fields {
		if e.Field == "" {
			return nil, fmt.Errorf("alias entry %d has no field", i)
		}
		if _, dup := seen[e.Field]; dup {
			return nil, fmt.Errorf("alias field %q listed twice", e.Field)
		}
		seen[e.Field] = struct{}{}
		if len(e.Aliases) == 0 {
			return nil, fmt.Errorf("alias field %q has no aliases", e.Field)
		}
		if e.Transform == "" {
			f.Fields[i].Transform = TransformTrim
		} else if !e.Transform.IsKnown() {
			return nil, fmt.Errorf("alias field %q: unknown transform %q", e.Field, e.Transform)
		}
	}
	return &AliasTable{entries: f.Fields}, nil
}

func mustLoadAliasTable(data []byte) *AliasTable {
	t, err := LoadAliasTable(data)
	if err != nil {
		panic(err)
	}
	return t
}

// Entries returns a copy of the entries in lookup order
func (t *AliasTable) Entries() []AliasEntry {
	out := make([]AliasEntry, len(t.entries))
	for i, e := range t.entries {
		out[i] = AliasEntry{
			Field:     e.Field,
			Transform: e.Transform,
			Aliases:   append([]string(nil), e.Aliases...),
		}
	}
	return out
}

// Fields returns the canonical field names in lookup order
func (t *AliasTable) Fields() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Field
	}
	return out
}
