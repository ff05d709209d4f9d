package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON maps a MySQL JSON (or TEXT) column onto a typed Go value.
type JSON[T any] struct {
	Data T
}

func (p *JSON[T]) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, &p.Data)
	case string:
		return json.Unmarshal([]byte(v), &p.Data)
	default:
		return fmt.Errorf("JSON.Scan: expected []byte or string, got %T", src)
	}
}

func (p JSON[T]) Value() (driver.Value, error) {
	return json.Marshal(p.Data)
}

func (p *JSON[T]) GetValue() T {
	return p.Data
}
