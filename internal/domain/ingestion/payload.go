package ingestion

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "null"
	}
}

// Value is an inbound payload node: a scalar, an ordered object or an array.
// The zero Value is Null.
type Value struct {
	kind Kind
	text string // string contents, or the literal text of a number
	flag bool
	obj  *Object
	arr  []Value
}

// Object is a string-keyed map that remembers insertion order.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject creates an empty ordered object
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set stores a value. Re-setting an existing key keeps its original position.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value stored under key
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present
func (o *Object) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.values[key]
	return ok
}

// Keys returns the keys in insertion order
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Null returns the null value
func Null() Value { return Value{} }

// String wraps a string
func String(s string) Value { return Value{kind: KindString, text: s} }

// Number wraps the literal text of a number
func Number(literal string) Value { return Value{kind: KindNumber, text: literal} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// ObjectValue wraps an ordered object
func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

// Array wraps a list of values
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// Kind returns the variant held by v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsScalar reports whether v is a string, number or bool
func (v Value) IsScalar() bool {
	return v.kind == KindString || v.kind == KindNumber || v.kind == KindBool
}

// Object returns the object held by v, or nil
func (v Value) Object() *Object {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Items returns the array items held by v, or nil
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Text renders v as plain text. Null renders as the empty string; objects and
// arrays render as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindString, KindNumber:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindObject, KindArray:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}

// TopLevelKeys returns up to limit keys of a root object, in order.
// limit <= 0 returns all keys.
func (v Value) TopLevelKeys(limit int) []string {
	keys := v.Object().Keys()
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	if keys == nil {
		return []string{}
	}
	return keys
}

// MarshalJSON encodes the value preserving object key order and number literals.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(v.text)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindNumber:
		buf.WriteString(v.text)
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.flag))
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj.values[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}
