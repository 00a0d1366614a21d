package render

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// shortListLen is the largest string slice or map printed inline.
const shortListLen = 4

var timeType = reflect.TypeOf(time.Time{})

// genericTable lays out values without a dedicated layout: a slice
// becomes one row per element under a header, a struct or map becomes
// label/value lines.
func genericTable(data any) *table {
	v := indirect(reflect.ValueOf(data))
	t := &table{}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return &table{empty: true}
		}
		cols := columns(indirect(v.Index(0)))
		t.row(cols...)
		for i := 0; i < v.Len(); i++ {
			t.row(cells(indirect(v.Index(i)), cols)...)
		}
	case reflect.Struct:
		typ := v.Type()
		for i := 0; i < typ.NumField(); i++ {
			if !typ.Field(i).IsExported() {
				continue
			}
			t.field(fieldLabel(typ.Field(i)), cellText(v.Field(i)))
		}
	case reflect.Map:
		for _, k := range mapKeys(v) {
			t.field(fmt.Sprint(k.Interface()), cellText(v.MapIndex(k)))
		}
	default:
		t.row(fmt.Sprint(data))
	}
	return t
}

// columns names the columns for a row value: json field names for a
// struct, sorted keys for a map, a single "value" column otherwise.
func columns(v reflect.Value) []string {
	switch v.Kind() {
	case reflect.Struct:
		var cols []string
		typ := v.Type()
		for i := 0; i < typ.NumField(); i++ {
			if typ.Field(i).IsExported() {
				cols = append(cols, fieldLabel(typ.Field(i)))
			}
		}
		return cols
	case reflect.Map:
		var cols []string
		for _, k := range mapKeys(v) {
			cols = append(cols, fmt.Sprint(k.Interface()))
		}
		return cols
	}
	return []string{"value"}
}

func cells(v reflect.Value, cols []string) []string {
	switch v.Kind() {
	case reflect.Struct:
		var out []string
		typ := v.Type()
		for i := 0; i < typ.NumField(); i++ {
			if typ.Field(i).IsExported() {
				out = append(out, cellText(v.Field(i)))
			}
		}
		return out
	case reflect.Map:
		out := make([]string, len(cols))
		for i, c := range cols {
			if val := v.MapIndex(reflect.ValueOf(c)); val.IsValid() {
				out[i] = cellText(val)
			}
		}
		return out
	}
	return []string{cellText(v)}
}

// cellText formats one value for a table cell. Long lists and maps are
// summarized by size.
func cellText(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		switch {
		case v.Len() == 0:
			return "[]"
		case v.Len() <= shortListLen && v.Type().Elem().Kind() == reflect.String:
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, ", ")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		switch {
		case v.Len() == 0:
			return "{}"
		case v.Len() <= shortListLen:
			parts := make([]string, 0, v.Len())
			for _, k := range mapKeys(v) {
				parts = append(parts, fmt.Sprintf("%v=%v", k.Interface(), v.MapIndex(k).Interface()))
			}
			return strings.Join(parts, " ")
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if v.Type() == timeType {
			return formatTime(v.Interface().(time.Time))
		}
		return "{...}"
	}
	return fmt.Sprint(v.Interface())
}

// fieldLabel prefers the json tag name over the Go field name.
func fieldLabel(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return strings.ToLower(f.Name)
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// mapKeys returns map keys in string order so output is stable.
func mapKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	return keys
}
