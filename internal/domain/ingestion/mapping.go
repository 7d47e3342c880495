package ingestion

// Mapping routes one payload field into a draft target
type Mapping struct {
	SourceField string
	TargetField string
	Transform   TransformType
}

// MappingResolver turns a payload into a Draft. With at least one mapping it
// applies exactly those mappings; with none it falls back to the alias table.
// The two modes are never mixed.
type MappingResolver struct {
	aliases *AliasTable
}

// NewMappingResolver creates a resolver. A nil table selects the built-in one.
func NewMappingResolver(aliases *AliasTable) *MappingResolver {
	if aliases == nil {
		aliases = DefaultAliasTable()
	}
	return &MappingResolver{aliases: aliases}
}

// Resolve builds the draft for payload
func (r *MappingResolver) Resolve(payload Value, mappings []Mapping) *Draft {
	if len(mappings) > 0 {
		return r.resolveExplicit(payload, mappings)
	}
	return r.resolveAliases(payload)
}

func (r *MappingResolver) resolveExplicit(payload Value, mappings []Mapping) *Draft {
	draft := NewDraft(ModeExplicit)
	for _, m := range mappings {
		v, ok := Resolve(payload, m.SourceField)
		if !ok {
			continue
		}
		draft.Set(m.TargetField, Transform(v, m.Transform))
	}
	return draft
}

func (r *MappingResolver) resolveAliases(payload Value) *Draft {
	draft := NewDraft(ModeAutoDetect)
	for _, entry := range r.aliases.entries {
		for _, alias := range entry.Aliases {
			v, ok := Resolve(payload, alias)
			if !ok {
				continue
			}
			if out := Transform(v, entry.Transform); out != "" {
				draft.Set(entry.Field, out)
				break
			}
		}
	}
	return draft
}
