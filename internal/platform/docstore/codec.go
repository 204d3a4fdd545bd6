package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// idField is injected on Decode and stripped on Encode; the id lives in the key.
const idField = "id"

// Encode turns a tagged struct into Fields using its JSON tags.
func Encode(v interface{}) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	var out Fields
	if err := unmarshalNumbers(raw, &out); err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	delete(out, idField)
	return out, nil
}

// Decode fills out from the document, including its id.
func (d *Document) Decode(out interface{}) error {
	data := make(Fields, len(d.Data)+1)
	for k, v := range d.Data {
		data[k] = v
	}
	data[idField] = d.ID
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("docstore: decode %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("docstore: decode %s: %w", d.ID, err)
	}
	return nil
}

// Normalize converts arbitrary Go values (time.Time, typed strings, ints)
// to their JSON representation so every backend compares the same values.
func Normalize(f Fields) (Fields, error) {
	if f == nil {
		return Fields{}, nil
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("docstore: normalize: %w", err)
	}
	var out Fields
	if err := unmarshalNumbers(raw, &out); err != nil {
		return nil, fmt.Errorf("docstore: normalize: %w", err)
	}
	delete(out, idField)
	return out, nil
}

// NormalizeValue is Normalize for a single value.
func NormalizeValue(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil, string, bool, json.Number:
		return t, nil
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return DecodeValue(string(raw))
}

// EncodeValue renders one field value as JSON text.
func EncodeValue(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeValue parses JSON text produced by EncodeValue. Plain integers
// (as written by atomic increments) decode as numbers too.
func DecodeValue(s string) (interface{}, error) {
	var out interface{}
	if err := unmarshalNumbers([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func unmarshalNumbers(raw []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

// Clone deep-copies normalized fields.
func Clone(f Fields) Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Fields:
		return Clone(t)
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// AsInt64 reads an integer counter; a missing or null field counts as zero.
func AsInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return t.Int64()
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("docstore: field is not an integer: %T", v)
	}
}
