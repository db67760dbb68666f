package app

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Filters is a set of equality constraints turned into a PocketBase filter
// by BuildFilter.
type Filters map[string]any

// ValidID reports whether id can be used as a record id. nil, "", false,
// numeric zero and nil pointers are rejected; the string "0" is accepted.
func ValidID(id any) bool {
	if id == nil {
		return false
	}
	v := reflect.ValueOf(id)
	switch v.Kind() {
	case reflect.String:
		return v.Len() > 0
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return !v.IsNil()
	}
	return true
}

// BuildFilter renders filters as clauses joined by " && " in key order.
// nil and "" values are skipped; slices become IN lists.
func BuildFilter(filters Filters) string {
	if len(filters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for _, key := range keys {
		value := filters[key]
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		clauses = append(clauses, clause(key, value))
	}
	return strings.Join(clauses, " && ")
}

func clause(key string, value any) string {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		vals := make([]string, v.Len())
		for i := range vals {
			vals[i] = Quote(fmt.Sprint(v.Index(i).Interface()))
		}
		return fmt.Sprintf("%s IN [%s]", key, strings.Join(vals, ","))
	case reflect.Bool:
		return fmt.Sprintf("%s = %t", key, v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%s = %d", key, v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%s = %d", key, v.Uint())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%s = %s", key, strconv.FormatFloat(v.Float(), 'f', -1, 64))
	}
	return fmt.Sprintf("%s = %s", key, Quote(fmt.Sprint(value)))
}

// Quote wraps v in double quotes, escaping embedded quotes.
func Quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// EscapeLike escapes the LIKE wildcards % and _.
func EscapeLike(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r == '%' || r == '_' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// idFilter matches any of ids exactly.
func idFilter(ids []string) string {
	clauses := make([]string, len(ids))
	for i, id := range ids {
		clauses[i] = "id = " + Quote(id)
	}
	return strings.Join(clauses, " || ")
}

func joinFilters(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " && ")
}
