package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns lists the "db" tags of T in field order, descending into
// embedded structs. Fields tagged "-" are skipped.
func ExtractDBColumns[T any]() []string {
	var zero T
	meta := metadataOf(reflect.TypeOf(zero))
	cols := make([]string, 0, len(meta.fields))
	collectColumns(meta, &cols)
	return cols
}

func collectColumns(meta *typeMetadata, cols *[]string) {
	for _, f := range meta.fields {
		if f.embedded != nil {
			collectColumns(f.embedded, cols)
			continue
		}
		*cols = append(*cols, f.column)
	}
}

type fieldInfo struct {
	index    int
	column   string
	embedded *typeMetadata
}

type typeMetadata struct {
	fields []fieldInfo
}

var typeCache sync.Map // reflect.Type -> *typeMetadata

func metadataOf(t reflect.Type) *typeMetadata {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.Anonymous {
				meta.fields = append(meta.fields, fieldInfo{index: i, embedded: metadataOf(field.Type)})
				continue
			}
			tag := field.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			meta.fields = append(meta.fields, fieldInfo{index: i, column: tag})
		}
	}
	typeCache.Store(t, meta)
	return meta
}

// StructToMap maps the "db" columns of v to their values.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	out := make(map[string]any)
	fillMap(rv, metadataOf(rv.Type()), out)
	return out
}

func fillMap(rv reflect.Value, meta *typeMetadata, out map[string]any) {
	for _, f := range meta.fields {
		fv := rv.Field(f.index)
		if f.embedded != nil {
			if fv.Kind() == reflect.Ptr {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			fillMap(fv, f.embedded, out)
			continue
		}
		out[f.column] = fv.Interface()
	}
}

// Values returns the values of v in the order of cols. Missing columns
// are nil.
func Values(v any, cols []string) []any {
	m := StructToMap(v)
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = m[c]
	}
	return out
}

// Pick keeps the entries of data named in cols, minus those in skip.
func Pick(data map[string]any, cols []string, skip ...string) map[string]any {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if contains(skip, c) {
			continue
		}
		if v, ok := data[c]; ok {
			out[c] = v
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
