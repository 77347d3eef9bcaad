package dataset

import (
	"math"
	"reflect"
	"time"
)

// CoerceNull converts null-like values (nil pointers, NaN, empty strings and
// zero times) to nil and dereferences non-nil pointers. Other values pass
// through unchanged.
func CoerceNull(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
	case float64:
		if math.IsNaN(x) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(x)) {
			return nil
		}
	case time.Time:
		if x.IsZero() {
			return nil
		}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return nil
			}
			return CoerceNull(rv.Elem().Interface())
		}
	}
	return v
}
