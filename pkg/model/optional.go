package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// OptionalID is a user reference that may be absent, such as a task assignee
// or the actor of a background action. The zero value is absent.
type OptionalID struct {
	id    int64
	valid bool
}

// SomeID returns a present reference.
func SomeID(id int64) OptionalID {
	return OptionalID{id: id, valid: true}
}

// NoID returns an absent reference.
func NoID() OptionalID {
	return OptionalID{}
}

// Get returns the id and whether it is present.
func (o OptionalID) Get() (int64, bool) {
	return o.id, o.valid
}

// IsSet reports whether the reference is present.
func (o OptionalID) IsSet() bool {
	return o.valid
}

// Is reports whether the reference is present and equal to id.
func (o OptionalID) Is(id int64) bool {
	return o.valid && o.id == id
}

// String renders the id, or "" when absent.
func (o OptionalID) String() string {
	if !o.valid {
		return ""
	}
	return strconv.FormatInt(o.id, 10)
}

// MarshalJSON encodes an absent reference as null.
func (o OptionalID) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(o.id, 10)), nil
}

// UnmarshalJSON accepts a number or null.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptionalID{}
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*o = SomeID(id)
	return nil
}

// Value implements driver.Valuer.
func (o OptionalID) Value() (driver.Value, error) {
	if !o.valid {
		return nil, nil
	}
	return o.id, nil
}

// Scan implements sql.Scanner.
func (o *OptionalID) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*o = OptionalID{}
	case int64:
		*o = SomeID(v)
	case int32:
		*o = SomeID(int64(v))
	case int:
		*o = SomeID(int64(v))
	case []byte:
		id, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("scan optional id: %w", err)
		}
		*o = SomeID(id)
	default:
		return fmt.Errorf("scan optional id: unsupported type %T", src)
	}
	return nil
}
