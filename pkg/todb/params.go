package todb

import "database/sql"

// Params is the parameter container that goes with a converted query. It
// is a list for positional styles and a name-keyed mapping for Named and
// PyFormat; either view can be taken.
type Params struct {
	names  []string
	values []any
	keyed  bool
}

func (p Params) Len() int { return len(p.values) }

// Keyed reports whether the container is a mapping.
func (p Params) Keyed() bool { return p.keyed }

// Names returns the parameter name behind each value.
func (p Params) Names() []string { return append([]string(nil), p.names...) }

// List returns the values in container order.
func (p Params) List() []any { return append([]any(nil), p.values...) }

// Map returns the values keyed by name. For positional styles a name used
// more than once maps to its first value.
func (p Params) Map() map[string]any {
	m := make(map[string]any, len(p.names))
	for i, n := range p.names {
		if _, ok := m[n]; !ok {
			m[n] = p.values[i]
		}
	}
	return m
}

// Args returns the values in the form database/sql expects: plain values
// for positional styles, sql.NamedArg for keyed ones.
func (p Params) Args() []any {
	if !p.keyed {
		return p.List()
	}
	args := make([]any, len(p.values))
	for i, v := range p.values {
		args[i] = sql.Named(p.names[i], v)
	}
	return args
}

// Statement is a query ready for a driver.
type Statement struct {
	SQL    string
	Params Params
}
