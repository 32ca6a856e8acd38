package query

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Match evaluates p against a record held in memory. Missing columns read as
// NULL. A nil predicate matches every record.
func Match(p Predicate, rec map[string]any) bool {
	switch v := p.(type) {
	case nil:
		return true
	case Eq:
		if v.Value == nil {
			return normalize(rec[v.Column]) == nil
		}
		return equal(rec[v.Column], v.Value)
	case IsNull:
		return normalize(rec[v.Column]) == nil
	case In:
		for _, want := range v.Values {
			if equal(rec[v.Column], want) {
				return true
			}
		}
		return false
	case Cmp:
		c, ok := compare(rec[v.Column], v.Value)
		if !ok {
			return false
		}
		switch v.Op {
		case OpLT:
			return c < 0
		case OpLTE:
			return c <= 0
		case OpGT:
			return c > 0
		case OpGTE:
			return c >= 0
		}
		return false
	case And:
		for _, m := range v {
			if !Match(m, rec) {
				return false
			}
		}
		return true
	case Or:
		for _, m := range v {
			if Match(m, rec) {
				return true
			}
		}
		return false
	}
	return false
}

func equal(a, b any) bool {
	na, nb := normalize(a), normalize(b)
	if na == nil || nb == nil {
		// SQL semantics: NULL never equals anything.
		return false
	}
	if ta, ok := na.(time.Time); ok {
		tb, ok := nb.(time.Time)
		return ok && ta.Equal(tb)
	}
	return na == nb
}

// Compare orders two column values; ok is false when they are not comparable.
func Compare(a, b any) (int, bool) {
	return compare(a, b)
}

func compare(a, b any) (int, bool) {
	na, nb := normalize(a), normalize(b)
	if na == nil || nb == nil {
		return 0, false
	}
	switch x := na.(type) {
	case int64:
		switch y := nb.(type) {
		case int64:
			return cmpOrdered(x, y), true
		case float64:
			return cmpOrdered(float64(x), y), true
		}
	case float64:
		switch y := nb.(type) {
		case float64:
			return cmpOrdered(x, y), true
		case int64:
			return cmpOrdered(x, float64(y)), true
		}
	case string:
		if y, ok := nb.(string); ok {
			return strings.Compare(x, y), true
		}
	case time.Time:
		if y, ok := nb.(time.Time); ok {
			return x.Compare(y), true
		}
	case bool:
		if y, ok := nb.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// normalize folds driver and Go representations of the same value onto one
// comparable form: pointers are dereferenced, uuids become strings and every
// integer width becomes int64.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case uuid.UUID:
		return x.String()
	case [16]byte:
		return uuid.UUID(x).String()
	case string, bool, time.Time:
		return x
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	}
	if rv.Type().Comparable() {
		return v
	}
	return nil
}
