// Package datasource adapts the values callers bind to SQL parameters.
//
// There are exactly two shapes: a key-value mapping and a record whose
// exported fields are looked up by name. Of picks one once, at the edge, so
// the rest of the module never inspects caller values again.
package datasource

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

var ErrUnsupported = errors.New("unsupported parameter source")

// Source resolves parameter names to values.
type Source interface {
	// Lookup returns the value bound to name. A nil value with ok set is a
	// SQL NULL.
	Lookup(name string) (value any, ok bool)
	// Names lists every name the source can resolve, in a stable order.
	Names() []string
}

// KeyValue is a mapping source. Keys are matched exactly.
type KeyValue map[string]any

func (kv KeyValue) Lookup(name string) (any, bool) {
	v, ok := kv[name]
	return v, ok
}

func (kv KeyValue) Names() []string {
	names := make([]string, 0, len(kv))
	for k := range kv {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Of wraps v in a Source.
//
//	nil                      empty KeyValue
//	Source                   v itself
//	map[string]any           KeyValue
//	map[~string]T            KeyValue (copied)
//	struct, *struct          Fields
func Of(v any) (Source, error) {
	switch t := v.(type) {
	case nil:
		return KeyValue{}, nil
	case Source:
		return t, nil
	case map[string]any:
		return KeyValue(t), nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: nil %s", ErrUnsupported, rv.Type())
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, rv.Type())
		}
		kv := make(KeyValue, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			kv[iter.Key().String()] = iter.Value().Interface()
		}
		return kv, nil
	case reflect.Struct:
		return newFields(rv), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, v)
}
