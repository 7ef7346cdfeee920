package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/zoravur/sqlbind/pkg/datasource"
	"github.com/zoravur/sqlbind/pkg/rowschema"
	"github.com/zoravur/sqlbind/pkg/sqllex"
	"github.com/zoravur/sqlbind/pkg/todb"
)

type op int

const (
	opInsert op = iota
	opUpdate
)

func (o op) String() string {
	if o == opUpdate {
		return "update"
	}
	return "insert"
}

type filterMode int

const (
	noFilter filterMode = iota
	including
	excluding
)

func (m filterMode) String() string {
	switch m {
	case including:
		return "Including"
	case excluding:
		return "Excluding"
	}
	return "no filter"
}

// Pending is an insert or update waiting for its data. Filter methods
// return the receiver so calls chain; a misuse is remembered and reported
// by Err and by every later build.
type Pending struct {
	b     *Builder
	table string
	op    op

	mode   filterMode
	filter map[string]bool
	err    error
}

// Including limits the statement to the named columns. Names are matched
// case-insensitively. Repeated calls add to the set.
func (p *Pending) Including(columns ...string) *Pending {
	return p.setFilter(including, columns)
}

// Excluding leaves the named columns out of the statement.
func (p *Pending) Excluding(columns ...string) *Pending {
	return p.setFilter(excluding, columns)
}

func (p *Pending) setFilter(mode filterMode, columns []string) *Pending {
	if p.err != nil {
		return p
	}
	if p.mode != noFilter && p.mode != mode {
		p.err = fmt.Errorf("%w: %s after %s on %s", ErrInvalidState, mode, p.mode, p.table)
		return p
	}
	p.mode = mode
	if p.filter == nil {
		p.filter = make(map[string]bool, len(columns))
	}
	for _, c := range columns {
		p.filter[strings.ToLower(c)] = true
	}
	return p
}

// Err reports a filter misuse, if any.
func (p *Pending) Err() error { return p.err }

func (p *Pending) keep(col string) bool {
	switch p.mode {
	case including:
		return p.filter[col]
	case excluding:
		return !p.filter[col]
	}
	return true
}

// SQL builds the statement with :name placeholders and returns it together
// with the source its parameters resolve against.
func (p *Pending) SQL(ctx context.Context, data any) (string, datasource.Source, error) {
	if p.err != nil {
		return "", nil, p.err
	}
	src, err := datasource.Of(data)
	if err != nil {
		return "", nil, err
	}
	rs, err := p.b.Schema(ctx, p.table)
	if err != nil {
		return "", nil, err
	}

	names := newNameMap(src.Names())
	var q string
	if p.op == opUpdate {
		q, err = p.updateSQL(rs, names)
	} else {
		q, err = p.insertSQL(rs, names)
	}
	if err != nil {
		return "", nil, err
	}
	return q, src, nil
}

// FromSource builds the statement and converts it to the builder's style.
func (p *Pending) FromSource(ctx context.Context, data any) (todb.Statement, error) {
	q, src, err := p.SQL(ctx, data)
	if err != nil {
		return todb.Statement{}, err
	}
	return p.b.conv.ConvertSource(q, src, p.b.style)
}

func (p *Pending) insertSQL(rs rowschema.RowSchema, names nameMap) (string, error) {
	var cols, refs []string
	for _, col := range rs.Columns() {
		name, ok := names.resolve(col)
		if !ok || !p.keep(col) {
			continue
		}
		cols = append(cols, rowschema.QuoteIdentifier(col))
		refs = append(refs, ":"+name)
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("%w: no columns of %s found in data source", ErrIncompleteData, p.table)
	}

	var b strings.Builder
	b.WriteString("insert into ")
	b.WriteString(rowschema.QuoteTable(p.table))
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") values (")
	b.WriteString(strings.Join(refs, ", "))
	b.WriteString(")")
	return b.String(), nil
}

func (p *Pending) updateSQL(rs rowschema.RowSchema, names nameMap) (string, error) {
	where := make([]string, 0, len(rs.Primary))
	for _, col := range rs.Primary {
		name, ok := names.resolve(col)
		if !ok {
			return "", fmt.Errorf("%w: primary key column %q of %s missing from data source", ErrIncompleteData, col, p.table)
		}
		if !p.keep(col) {
			return "", fmt.Errorf("%w: primary key column %q of %s is filtered out", ErrIncompleteData, col, p.table)
		}
		where = append(where, rowschema.QuoteIdentifier(col)+" = :"+name)
	}

	var set []string
	for _, col := range rs.Others {
		name, ok := names.resolve(col)
		if !ok || !p.keep(col) {
			continue
		}
		set = append(set, rowschema.QuoteIdentifier(col)+" = :"+name)
	}
	if len(set) == 0 {
		return "", fmt.Errorf("%w: nothing to update in %s", ErrIncompleteData, p.table)
	}

	var b strings.Builder
	b.WriteString("update ")
	b.WriteString(rowschema.QuoteTable(p.table))
	b.WriteString(" set ")
	b.WriteString(strings.Join(set, ", "))
	b.WriteString(" where ")
	b.WriteString(strings.Join(where, " and "))
	return b.String(), nil
}

// nameMap resolves lower-case column names to the names a data source
// actually uses.
type nameMap struct {
	exact  map[string]bool
	folded map[string]string
}

// newNameMap indexes names. A name with upper-case letters is also reachable
// through its lower-case form, unless another spelling folds to the same
// form; such a form is ambiguous and dropped. Names that cannot follow ":"
// in a query are left out entirely.
func newNameMap(names []string) nameMap {
	m := nameMap{exact: make(map[string]bool, len(names)), folded: make(map[string]string)}
	ambiguous := make(map[string]bool)
	for _, n := range names {
		if !sqllex.IsName(n) {
			continue
		}
		m.exact[n] = true
		lc := strings.ToLower(n)
		if lc == n {
			continue
		}
		if _, dup := m.folded[lc]; dup {
			ambiguous[lc] = true
			continue
		}
		m.folded[lc] = n
	}
	for lc := range ambiguous {
		delete(m.folded, lc)
	}
	return m
}

func (m nameMap) resolve(col string) (string, bool) {
	if m.exact[col] {
		return col, true
	}
	n, ok := m.folded[col]
	return n, ok
}
