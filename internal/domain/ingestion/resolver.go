package ingestion

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Resolve locates sourceField inside payload.
//
// The exact dot path is tried first; numeric segments index into arrays.
// When the path does not resolve, the payload is searched depth-first for
// the first key whose canonical form equals the canonical form of the whole
// source field. The search descends into objects only, never arrays.
// Null values count as absent in both phases.
func Resolve(payload Value, sourceField string) (Value, bool) {
	sourceField = strings.TrimSpace(sourceField)
	if sourceField == "" {
		return Value{}, false
	}
	if v, ok := ResolvePath(payload, sourceField); ok {
		return v, true
	}
	return ResolveFuzzy(payload, sourceField)
}

// ResolvePath walks an exact dot-separated path
func ResolvePath(payload Value, path string) (Value, bool) {
	cur := payload
	for _, seg := range strings.Split(path, ".") {
		switch cur.Kind() {
		case KindObject:
			next, ok := cur.Object().Get(seg)
			if !ok {
				return Value{}, false
			}
			cur = next
		case KindArray:
			idx, err := strconv.Atoi(seg)
			items := cur.Items()
			if err != nil || idx < 0 || idx >= len(items) {
				return Value{}, false
			}
			cur = items[idx]
		default:
			return Value{}, false
		}
	}
	if cur.IsNull() {
		return Value{}, false
	}
	return cur, true
}

// ResolveFuzzy searches the payload for a key matching the canonical form of
// name. Dots are kept, so a dotted name only matches a key spelled with the
// same dots.
func ResolveFuzzy(payload Value, name string) (Value, bool) {
	target := CanonicalKey(name)
	if target == "" {
		return Value{}, false
	}
	return searchObject(payload.Object(), target)
}

func searchObject(obj *Object, target string) (Value, bool) {
	if obj == nil {
		return Value{}, false
	}
	for _, key := range obj.keys {
		v := obj.values[key]
		if !v.IsNull() && CanonicalKey(key) == target {
			return v, true
		}
		if v.Kind() == KindObject {
			if found, ok := searchObject(v.Object(), target); ok {
				return found, true
			}
		}
	}
	return Value{}, false
}

// CanonicalKey lowercases a key, folds accents and drops spaces, underscores
// and hyphens, so "Nome Completo", "nome_completo" and "NOME-COMPLETO" compare
// equal.
func CanonicalKey(key string) string {
	decomposed := norm.NFD.String(strings.ToLower(key))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) || unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
