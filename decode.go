package lambdaroute

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validatable is the interface for payload validation.
// Compatible with github.com/go-ozzo/ozzo-validation/v4.
type validatable interface {
	Validate() error
}

// PayloadType describes the type a handler expects its payload to decode
// into. The zero value is untyped: payloads pass through as generic JSON.
type PayloadType struct {
	typ    reflect.Type
	schema *jsonschema.Schema
}

// TypeOf returns the PayloadType for T. Empty interfaces are untyped.
func TypeOf[T any]() PayloadType {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() == reflect.Interface && typ.NumMethod() == 0 {
		return PayloadType{}
	}
	return PayloadType{typ: typ}
}

// Untyped returns a PayloadType that accepts any JSON value.
func Untyped() PayloadType {
	return PayloadType{}
}

// WithSchema returns a copy of p that validates payloads against s before
// binding them.
func (p PayloadType) WithSchema(s *jsonschema.Schema) PayloadType {
	p.schema = s
	return p
}

// Type returns the Go type payloads decode into, or nil when untyped.
func (p PayloadType) Type() reflect.Type { return p.typ }

// Schema returns the attached JSON Schema, if any.
func (p PayloadType) Schema() *jsonschema.Schema { return p.schema }

// Untyped reports whether p accepts any JSON value.
func (p PayloadType) Untyped() bool { return p.typ == nil }

func (p PayloadType) String() string {
	if p.typ == nil {
		return "any"
	}
	return p.typ.String()
}

func (p PayloadType) zero() any {
	if p.typ == nil {
		return nil
	}
	return reflect.Zero(p.typ).Interface()
}

// CompileSchema compiles a JSON Schema document registered under ref.
func CompileSchema(ref string, doc []byte) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(ref, bytes.NewReader(doc)); err != nil {
		return nil, err
	}
	return c.Compile(ref)
}

// Decode turns the raw JSON found at a payload location into a value of
// type t.
//
// A JSON string is treated as possibly encoded JSON text: typed targets
// decode the text, string targets receive it as-is, and untyped targets get
// the parsed object or array when the text holds one, the plain string
// otherwise. Structured values are decoded directly. Absent or null values
// yield the zero value of t.
//
// Failures return an ErrDecode error carrying the offending value and the
// target type.
func Decode(raw json.RawMessage, t PayloadType) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return t.zero(), nil
	}

	doc := trimmed
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, decodeError(raw, t, err)
		}
		switch {
		case t.typ == nil && !structured(text):
		case t.typ != nil && t.typ.Kind() == reflect.String:
		default:
			doc = []byte(text)
		}
	}

	if t.schema != nil {
		v, err := decodeGeneric(doc)
		if err != nil {
			return nil, decodeError(raw, t, err)
		}
		if err := t.schema.Validate(v); err != nil {
			return nil, decodeError(raw, t, err)
		}
	}

	if t.typ == nil {
		var v any
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, decodeError(raw, t, err)
		}
		return v, nil
	}

	ptr := reflect.New(t.typ)
	if err := json.Unmarshal(doc, ptr.Interface()); err != nil {
		return nil, decodeError(raw, t, err)
	}
	if err := validate(ptr); err != nil {
		return nil, decodeError(raw, t, err)
	}
	return ptr.Elem().Interface(), nil
}

// structured reports whether text holds a JSON object or array.
func structured(text string) bool {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return json.Valid(trimmed)
}

func decodeGeneric(doc []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func validate(ptr reflect.Value) error {
	if v, ok := ptr.Elem().Interface().(validatable); ok {
		if ptr.Elem().Kind() == reflect.Pointer && ptr.Elem().IsNil() {
			return nil
		}
		return v.Validate()
	}
	if v, ok := ptr.Interface().(validatable); ok {
		return v.Validate()
	}
	return nil
}

func decodeError(raw json.RawMessage, t PayloadType, cause error) error {
	return ErrDecode.Wrap(cause, "cannot decode payload into %s", t).
		WithProperty(PropertyValue, string(raw)).
		WithProperty(PropertyTarget, t.String())
}
