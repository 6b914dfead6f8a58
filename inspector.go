package lambdaroute

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when the input is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// View provides read-only field access used by shape predicates.
// Paths use gjson syntax ("Records.0.eventSource", "detail-type").
type View interface {
	// HasField returns true if the path exists in the payload.
	HasField(path string) bool

	// GetString returns the string value at path, or false if not found
	// or not a string.
	GetString(path string) (string, bool)

	// GetBytes returns the raw JSON at path, or false if not found.
	GetBytes(path string) ([]byte, bool)

	// IsObject returns true if the value at path is a JSON object.
	IsObject(path string) bool

	// Elements returns a view per element of the array at path, or false if
	// the value is missing or not an array.
	Elements(path string) ([]View, bool)
}

// Inspect validates raw as JSON and returns a View over it.
func Inspect(raw []byte) (View, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return jsonView{raw: raw}, nil
}

type jsonView struct {
	raw []byte
}

func (v jsonView) HasField(path string) bool {
	return gjson.GetBytes(v.raw, path).Exists()
}

func (v jsonView) GetString(path string) (string, bool) {
	r := gjson.GetBytes(v.raw, path)
	if !r.Exists() {
		return "", false
	}
	if r.Type != gjson.String {
		return "", false
	}
	return r.String(), true
}

func (v jsonView) GetBytes(path string) ([]byte, bool) {
	r := gjson.GetBytes(v.raw, path)
	if !r.Exists() {
		return nil, false
	}
	return []byte(r.Raw), true
}

func (v jsonView) IsObject(path string) bool {
	return gjson.GetBytes(v.raw, path).IsObject()
}

func (v jsonView) Elements(path string) ([]View, bool) {
	r := gjson.GetBytes(v.raw, path)
	if !r.IsArray() {
		return nil, false
	}
	items := r.Array()
	views := make([]View, 0, len(items))
	for _, item := range items {
		views = append(views, jsonView{raw: []byte(item.Raw)})
	}
	return views, true
}
