package todb

import (
	"fmt"
	"strings"

	"github.com/zoravur/sqlbind/pkg/datasource"
	"github.com/zoravur/sqlbind/pkg/sqllex"
)

// Template is a query split around its parameter references, ready to be
// rendered in one style. Templates are immutable once built and may be
// shared between goroutines.
type Template struct {
	Style Style
	// Fragments holds the SQL between placeholders; there is always one
	// more fragment than there are references.
	Fragments []string
	// Refs names the parameter at each placeholder, in source order.
	Refs []string
	// Binds lists the names whose values fill the parameter container, in
	// container order. For QMark and Format it equals Refs. For the other
	// styles every name appears once, in order of first use.
	Binds []string

	sql string
}

// SQL returns the query with placeholders spelled for t.Style.
func (t *Template) SQL() string { return t.sql }

// buildTemplate tokenizes sql once and lays it out for style.
func buildTemplate(sql string, style Style) (*Template, error) {
	t := &Template{Style: style}
	var frag strings.Builder
	for tok, err := range sqllex.Tokens(sql) {
		if err != nil {
			return nil, err
		}
		if !tok.Param {
			frag.WriteString(tok.Text)
			continue
		}
		t.Fragments = append(t.Fragments, frag.String())
		t.Refs = append(t.Refs, tok.Name())
		frag.Reset()
	}
	t.Fragments = append(t.Fragments, frag.String())

	var out strings.Builder
	seen := make(map[string]int, len(t.Refs))
	for i, name := range t.Refs {
		n, ok := seen[name]
		if !ok || !style.dedups() {
			t.Binds = append(t.Binds, name)
		}
		if !ok {
			n = len(t.Binds)
			seen[name] = n
		}
		out.WriteString(t.Fragments[i])
		out.WriteString(style.placeholder(name, n))
	}
	out.WriteString(t.Fragments[len(t.Fragments)-1])
	t.sql = out.String()
	return t, nil
}

// dedups reports whether repeated references share one container slot.
func (s Style) dedups() bool { return s != QMark && s != Format }

// Bind pulls the value of every name in t.Binds from src.
func (t *Template) Bind(src datasource.Source) (Params, error) {
	p := Params{
		names:  make([]string, len(t.Binds)),
		values: make([]any, len(t.Binds)),
		keyed:  t.Style.Keyed(),
	}
	for i, name := range t.Binds {
		v, ok := src.Lookup(name)
		if !ok {
			return Params{}, fmt.Errorf("%w: %q", ErrMissingParameter, name)
		}
		p.names[i] = name
		p.values[i] = v
	}
	return p, nil
}
