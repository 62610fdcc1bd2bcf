package audit

import (
	"fmt"
	"reflect"
	"time"

	"github.com/platinummonkey/taskcore/pkg/model"
)

// Stringify renders v in the canonical form used for change comparison.
// nil, nil pointers and absent ids render as nil. Times render as RFC 3339
// in UTC at second precision.
func Stringify(v any) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return &val
	case *string:
		if val == nil {
			return nil
		}
		s := *val
		return &s
	case model.OptionalID:
		if !val.IsSet() {
			return nil
		}
		s := val.String()
		return &s
	case time.Time:
		s := val.UTC().Format(time.RFC3339)
		return &s
	case *time.Time:
		if val == nil {
			return nil
		}
		return Stringify(*val)
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nil
		}
		s := val.String()
		return &s
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Stringify(rv.Elem().Interface())
	case reflect.String:
		s := rv.String()
		return &s
	}
	s := fmt.Sprint(v)
	return &s
}

// Change returns the diff of field, or nil when both sides stringify equal.
func Change(field string, oldValue, newValue any) *model.Change {
	o, n := Stringify(oldValue), Stringify(newValue)
	if equal(o, n) {
		return nil
	}
	return &model.Change{FieldName: field, OldValue: o, NewValue: n}
}

func equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
