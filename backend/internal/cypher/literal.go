package cypher

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Literal formats a Go value as a Cypher literal.
//
// Strings are single-quoted, except "$name" which is taken to be a
// parameter reference and emitted as is. NaN and the infinities have no
// literal form and are written as the divisions that produce them. Slices
// and arrays become lists, string-keyed maps become map literals with
// sorted keys.
func Literal(value any) string {
	if value == nil {
		return "null"
	}

	switch v := value.(type) {
	case string:
		if strings.HasPrefix(v, "$") && ValidIdentifier(v[1:]) {
			return v
		}
		return quote(v)
	case bool:
		return strconv.FormatBool(v)
	case float32:
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return nonFinite(f)
		}
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nonFinite(v)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return quote(v.String())
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.String:
		return Literal(rv.String())
	case reflect.Slice, reflect.Array:
		items := make([]string, rv.Len())
		for i := range items {
			items[i] = Literal(rv.Index(i).Interface())
		}
		return "[" + strings.Join(items, ", ") + "]"
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		fields := make([]Field, len(keys))
		for i, k := range keys {
			fields[i] = Field{Key: mapKey(k), Expr: Literal(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())}
		}
		return Object(fields...)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "null"
		}
		return Literal(rv.Elem().Interface())
	}
	return fmt.Sprint(value)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

func nonFinite(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "1.0/0.0"
	case math.IsInf(f, -1):
		return "-1.0/0.0"
	}
	return "0.0/0.0"
}

// mapKey backtick-quotes keys that are not plain identifiers.
func mapKey(k string) string {
	if ValidIdentifier(k) {
		return k
	}
	return "`" + strings.ReplaceAll(k, "`", "``") + "`"
}
