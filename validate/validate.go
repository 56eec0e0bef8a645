// Package validate checks command payloads against a declared schema before
// they are decoded into their concrete request types.
//
// A payload is checked in three passes:
//   - it must be present (not empty and not JSON null)
//   - it must be a JSON object
//   - every required field of the schema must be present
//
// All missing fields are reported together, in declaration order, so a client
// can fix its request in one round trip.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Field describes a single payload field.
type Field struct {
	Name     string
	Required bool
}

// Schema is the ordered list of fields a payload is checked against.
type Schema []Field

// Required returns the names of the required fields in declaration order.
func (s Schema) Required() []string {
	names := make([]string, 0, len(s))
	for _, f := range s {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// SchemaFor derives a schema from the json tags of struct type T. Fields
// tagged omitempty are optional; fields tagged "-" and unexported fields are
// skipped. Non-struct types yield an empty schema.
func SchemaFor[T any]() Schema {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Schema{}
	}

	schema := make(Schema, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = sf.Name
		}
		schema = append(schema, Field{Name: name, Required: !hasOption(opts, "omitempty")})
	}
	return schema
}

func hasOption(opts, want string) bool {
	for _, opt := range strings.Split(opts, ",") {
		if opt == want {
			return true
		}
	}
	return false
}

// NullPayloadError reports an empty or null payload.
type NullPayloadError struct{}

func (*NullPayloadError) Error() string {
	return "payload is empty or null"
}

// MalformedJSONError reports a payload that is not a JSON object or does not
// fit the target type.
type MalformedJSONError struct {
	Err error
}

func (e *MalformedJSONError) Error() string {
	return fmt.Sprintf("malformed JSON payload: %v", e.Err)
}

func (e *MalformedJSONError) Unwrap() error { return e.Err }

// MissingFieldError lists every required field absent from a payload.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return "missing required fields:\n" + strings.Join(e.Fields, "\n")
}

// Check verifies raw against schema without decoding it into a concrete type.
// A required field explicitly set to null counts as missing.
func Check(raw []byte, schema Schema) error {
	_, err := parseObject(raw, schema)
	return err
}

// Decode checks raw against schema and unmarshals it into a T.
func Decode[T any](raw []byte, schema Schema) (T, error) {
	var out T
	trimmed, err := parseObject(raw, schema)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, &MalformedJSONError{Err: err}
	}
	return out, nil
}

func parseObject(raw []byte, schema Schema) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || isNull(trimmed) {
		return nil, &NullPayloadError{}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, &MalformedJSONError{Err: err}
	}

	var missing []string
	for _, f := range schema {
		if !f.Required {
			continue
		}
		if v, ok := obj[f.Name]; !ok || isNull(bytes.TrimSpace(v)) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldError{Fields: missing}
	}
	return trimmed, nil
}

func isNull(b []byte) bool {
	return bytes.Equal(b, []byte("null"))
}
