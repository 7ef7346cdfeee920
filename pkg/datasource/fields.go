package datasource

import (
	"database/sql"
	"database/sql/driver"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// Fields is a record source backed by a struct value. Exported fields are
// visible under their name or their `db:"name"` tag; `db:"-"` hides a field.
// Fields of embedded structs are promoted. A name reachable through two
// different paths is ambiguous and resolves to nothing.
type Fields struct {
	v     reflect.Value
	index map[string][]int
}

func newFields(v reflect.Value) *Fields {
	return &Fields{v: v, index: fieldIndex(v.Type())}
}

func (f *Fields) Lookup(name string) (any, bool) {
	path, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return valueAt(f.v, path)
}

func (f *Fields) Names() []string {
	names := make([]string, 0, len(f.index))
	for k := range f.index {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var (
	indexCache sync.Map // reflect.Type -> map[string][]int

	scannerType = reflect.TypeFor[sql.Scanner]()
	valuerType  = reflect.TypeFor[driver.Valuer]()
	timeType    = reflect.TypeFor[time.Time]()
)

// fieldIndex maps every visible name of struct type t to its field path.
// Results are cached per type.
func fieldIndex(t reflect.Type) map[string][]int {
	if m, ok := indexCache.Load(t); ok {
		return m.(map[string][]int)
	}

	m := make(map[string][]int, t.NumField())
	ambiguous := make(map[string]bool)

	var walk func(rt reflect.Type, path []int, seen map[reflect.Type]bool)
	walk = func(rt reflect.Type, path []int, seen map[reflect.Type]bool) {
		if seen[rt] {
			return
		}
		seen[rt] = true
		defer delete(seen, rt)

		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			tag := f.Tag.Get("db")
			if tag == "-" {
				continue
			}
			name, _, _ := strings.Cut(tag, ",")

			if f.Anonymous && name == "" && promotable(f.Type) {
				et := f.Type
				if et.Kind() == reflect.Pointer {
					et = et.Elem()
				}
				walk(et, appendIndex(path, i), seen)
				continue
			}
			if !f.IsExported() {
				continue
			}
			if name == "" {
				name = f.Name
			}
			if _, dup := m[name]; dup || ambiguous[name] {
				delete(m, name)
				ambiguous[name] = true
				continue
			}
			m[name] = appendIndex(path, i)
		}
	}
	walk(t, nil, map[reflect.Type]bool{})

	actual, _ := indexCache.LoadOrStore(t, m)
	return actual.(map[string][]int)
}

// promotable reports whether the fields of an embedded type should be
// flattened into the parent. Types that know how to travel to a driver on
// their own stay whole.
func promotable(t reflect.Type) bool {
	if t.Implements(valuerType) || reflect.PointerTo(t).Implements(scannerType) {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != timeType
}

func appendIndex(path []int, i int) []int {
	out := make([]int, len(path)+1)
	copy(out, path)
	out[len(path)] = i
	return out
}

// valueAt follows path from root. A nil embedded pointer along the way reads
// as NULL.
func valueAt(root reflect.Value, path []int) (any, bool) {
	v := root
	for _, i := range path {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return nil, true
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return nil, false
		}
		v = v.Field(i)
	}
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return nil, true
	}
	return v.Interface(), true
}
