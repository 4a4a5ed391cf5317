package utils

import (
	"fmt"
	"reflect"
)

var ColumnTag = "db"

// StructTagValues lists the column names of a db-tagged struct in field
// order. Embedded structs contribute their columns in place.
func StructTagValues(input any) []string {
	result := make([]string, 0)
	walkColumns(structValue(input), func(column string, _ reflect.Value) {
		result = append(result, column)
	})
	return result
}

// StructToMap maps column names to field values, ready for squirrel's
// SetMap.
func StructToMap(input any) map[string]any {
	result := make(map[string]any)
	walkColumns(structValue(input), func(column string, v reflect.Value) {
		result[column] = v.Interface()
	})
	return result
}

// PrefixSliceOfStrings qualifies columns with a table alias. Columns named
// in ignore are left out.
func PrefixSliceOfStrings(prefix string, input []string, ignore ...string) []string {
	out := make([]string, 0, len(input))

inputloop:
	for _, v := range input {
		for _, ignored := range ignore {
			if v == ignored {
				continue inputloop
			}
		}

		out = append(out, fmt.Sprintf("%s.%s", prefix, v))
	}
	return out
}

func ErrorWrapOrNil(err error, msg string) error {
	if err == nil {
		return nil
	}

	if msg == "" {
		return err
	}

	return fmt.Errorf("%s: %w", msg, err)
}

func structValue(input any) reflect.Value {
	v := reflect.ValueOf(input)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		panic("input must be a pointer to a struct or a struct")
	}

	return v
}

func walkColumns(v reflect.Value, fn func(column string, field reflect.Value)) {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		tagValue := field.Tag.Get(ColumnTag)
		if tagValue == "-" {
			continue
		}

		if tagValue == "" && field.Anonymous && field.Type.Kind() == reflect.Struct {
			walkColumns(v.Field(i), fn)
			continue
		}

		if tagValue == "" || field.PkgPath != "" {
			continue
		}

		fn(tagValue, v.Field(i))
	}
}
