package output

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ApplyAgentOptions applies --result-limit, --result-sort-by and
// --result-desc to a list, or to the list field of a response struct such
// as Documents or Conversations. The input is never mutated.
func ApplyAgentOptions(ctx context.Context, data interface{}) interface{} {
	limit := LimitFromContext(ctx)
	sortBy, desc := SortFromContext(ctx)
	if data == nil || (limit <= 0 && sortBy == "") {
		return data
	}

	v := indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return applyToSlice(v, limit, sortBy, desc).Interface()
	case reflect.Struct:
		field, ok := listField(v)
		if !ok {
			return data
		}
		out := reflect.New(v.Type())
		out.Elem().Set(v)
		target := out.Elem().FieldByIndex(field.index)
		target.Set(applyToSlice(field.value, limit, sortBy, desc))
		return out.Interface()
	}
	return data
}

type listFieldInfo struct {
	value reflect.Value
	index []int
}

// listField finds the single exported slice field of a response struct.
// Structs with zero or several slice fields have no list field.
func listField(v reflect.Value) (listFieldInfo, bool) {
	var found listFieldInfo
	count := 0
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Type.Kind() != reflect.Slice {
			continue
		}
		found = listFieldInfo{value: v.Field(i), index: f.Index}
		count++
	}
	return found, count == 1
}

// applyToSlice returns a sorted, limited copy of v.
func applyToSlice(v reflect.Value, limit int, sortBy string, desc bool) reflect.Value {
	sliceType := v.Type()
	if v.Kind() == reflect.Array {
		sliceType = reflect.SliceOf(v.Type().Elem())
	}
	out := reflect.MakeSlice(sliceType, v.Len(), v.Len())
	reflect.Copy(out, v)

	if sortBy != "" {
		path := strings.Split(sortBy, ".")
		sort.SliceStable(out.Interface(), func(i, j int) bool {
			a, aok := lookupPath(out.Index(i), path)
			b, bok := lookupPath(out.Index(j), path)
			switch {
			case !aok:
				return false
			case !bok:
				return true
			}
			cmp := compareValues(a, b)
			if desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	if limit > 0 && limit < out.Len() {
		return out.Slice(0, limit)
	}
	return out
}

// lookupPath follows field names (JSON or Go, case and separator
// insensitive) through structs and string-keyed maps.
func lookupPath(v reflect.Value, path []string) (interface{}, bool) {
	for _, name := range path {
		v = indirect(v)
		if !v.IsValid() {
			return nil, false
		}
		norm := normalizeName(name)
		switch v.Kind() {
		case reflect.Struct:
			next := reflect.Value{}
			for _, f := range exportedFields(v.Type()) {
				if normalizeName(f.name) == norm || normalizeName(v.Type().Field(f.index).Name) == norm {
					next = v.Field(f.index)
					break
				}
			}
			if !next.IsValid() {
				return nil, false
			}
			v = next
		case reflect.Map:
			if v.Type().Key().Kind() != reflect.String {
				return nil, false
			}
			next := reflect.Value{}
			for _, key := range v.MapKeys() {
				if normalizeName(key.String()) == norm {
					next = v.MapIndex(key)
					break
				}
			}
			if !next.IsValid() {
				return nil, false
			}
			v = next
		default:
			return nil, false
		}
	}
	v = indirect(v)
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

func normalizeName(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(s))
}

// compareValues orders numbers numerically, times chronologically and
// dotted section numbers component by component, so "1.9" sorts before
// "1.10". Everything else compares as text.
func compareValues(a, b interface{}) int {
	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			if ka, okA := dottedKey(va); okA {
				if kb, okB := dottedKey(vb); okB {
					return compareInts(ka, kb)
				}
			}
			return strings.Compare(va, vb)
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Compare(vb)
		}
	case bool:
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0
			case !va:
				return -1
			default:
				return 1
			}
		}
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func dottedKey(s string) ([]int64, bool) {
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	out := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func compareInts(a, b []int64) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
