package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is a single named attribute of a record.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered attribute mapping. Names are unique; order is the
// order in which names were first set.
type Fields []Field

// Get returns the value stored under name.
func (f Fields) Get(name string) (any, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Has reports whether name is present.
func (f Fields) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// Names lists field names in order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for _, field := range f {
		names = append(names, field.Name)
	}
	return names
}

// Clone copies the field list.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	copy(out, f)
	return out
}

// Set returns a copy of f with name set to value.
func (f Fields) Set(name string, value any) Fields {
	return f.With(Fields{{Name: name, Value: value}})
}

// With returns a copy of f with updates merged in. Existing names keep their
// position, new names are appended.
func (f Fields) With(updates Fields) Fields {
	out := f.Clone()
	for _, u := range updates {
		replaced := false
		for i := range out {
			if out[i].Name == u.Name {
				out[i].Value = u.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, u)
		}
	}
	return out
}

// Without returns a copy of f with the named fields dropped.
func (f Fields) Without(names ...string) Fields {
	if len(names) == 0 {
		return f.Clone()
	}
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[name] = struct{}{}
	}
	out := make(Fields, 0, len(f))
	for _, field := range f {
		if _, ok := drop[field.Name]; ok {
			continue
		}
		out = append(out, field)
	}
	return out
}

// Map flattens the fields into an unordered map.
func (f Fields) Map() map[string]any {
	out := make(map[string]any, len(f))
	for _, field := range f {
		out[field.Name] = field.Value
	}
	return out
}

// MarshalJSON encodes the fields as a JSON object in field order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", field.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order. Integral numbers
// decode to int64, other numbers to float64.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}

	out := Fields{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("fields: expected string key, got %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode field %s: %w", name, err)
		}
		out = out.Set(name, normalizeNumber(value))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = out
	return nil
}

func normalizeNumber(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if fl, err := val.Float64(); err == nil {
			return fl
		}
		return val.String()
	case map[string]any:
		for k, inner := range val {
			val[k] = normalizeNumber(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = normalizeNumber(inner)
		}
		return val
	default:
		return v
	}
}
