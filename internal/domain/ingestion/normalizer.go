package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// BodyFormat records how an inbound body was interpreted
type BodyFormat string

const (
	FormatEmpty BodyFormat = "empty"
	FormatForm  BodyFormat = "form"
	FormatJSON  BodyFormat = "json"
	FormatText  BodyFormat = "text"
)

const formContentType = "application/x-www-form-urlencoded"

// Body is a normalized request body. Raw is always kept, whatever the outcome
// of parsing, so it can be written to the audit trail.
type Body struct {
	Raw     string
	Format  BodyFormat
	Payload Value
}

// NormalizeBody interprets raw according to contentType.
//
// Form-encoded bodies become a flat ordered object where the first
// occurrence of a repeated key wins. Bodies declared as JSON, or whose first
// non-whitespace byte is '{' or '[', are parsed keeping key order and number
// literals. Empty bodies and anything else yield a Null payload. The returned
// Body is never nil; on a parse failure the error has KindPayloadSyntax.
func NormalizeBody(contentType string, raw []byte) (*Body, error) {
	body := &Body{Raw: string(raw), Format: FormatEmpty}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return body, nil
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, formContentType):
		body.Format = FormatForm
		obj, err := parseForm(string(trimmed))
		if err != nil {
			return body, WrapError(KindPayloadSyntax, "invalid form-encoded payload", err)
		}
		body.Payload = ObjectValue(obj)
	case strings.Contains(ct, "json") || trimmed[0] == '{' || trimmed[0] == '[':
		body.Format = FormatJSON
		v, err := ParseJSON(trimmed)
		if err != nil {
			return body, WrapError(KindPayloadSyntax, "invalid JSON payload", err)
		}
		body.Payload = v
	default:
		body.Format = FormatText
	}
	return body, nil
}

func parseForm(s string) (*Object, error) {
	obj := NewObject()
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		if key == "" || obj.Has(key) {
			continue
		}
		obj.Set(key, String(value))
	}
	return obj, nil
}

// ParseJSON decodes a single JSON document into a Value, keeping object key
// order and the literal text of numbers.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String()), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	default:
		return Value{}, fmt.Errorf("unexpected token %v", tok)
	}
}

func decodeObject(dec *json.Decoder) (Value, error) {
	obj := NewObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key must be a string, got %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		obj.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return ObjectValue(obj), nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	items := make([]Value, 0)
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Array(items...), nil
}
