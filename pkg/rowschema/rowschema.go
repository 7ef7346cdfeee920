// Package rowschema discovers which columns of a table form its primary
// key. Each supported DBMS keeps that in a different catalog, so there is one
// Provider per family; they all speak :name SQL through a Querier and return
// lower-cased column names.
package rowschema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// RowSchema partitions the columns of one table. Both lists are lower case
// and in the order the catalog reports them.
type RowSchema struct {
	Primary []string `json:"primary"`
	Others  []string `json:"others"`
}

// Columns returns every column, key columns first.
func (rs RowSchema) Columns() []string {
	out := make([]string, 0, len(rs.Primary)+len(rs.Others))
	out = append(out, rs.Primary...)
	return append(out, rs.Others...)
}

// IsPrimary reports whether col (lower case) is part of the key.
func (rs RowSchema) IsPrimary(col string) bool {
	for _, p := range rs.Primary {
		if p == col {
			return true
		}
	}
	return false
}

type Provider interface {
	RowSchema(ctx context.Context, table string) (RowSchema, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, table string) (RowSchema, error)

func (f ProviderFunc) RowSchema(ctx context.Context, table string) (RowSchema, error) {
	return f(ctx, table)
}

// Querier runs a query written with :name parameters. A session satisfies
// it.
type Querier interface {
	Query(ctx context.Context, query string, params any) (*sql.Rows, error)
}

var ErrNoPrimaryKey = errors.New("no primary key reported")

// LookupError is returned by every provider. Err is ErrNoPrimaryKey or the
// failure of the underlying query.
type LookupError struct {
	Table string
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("row schema for %s: %v", e.Table, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// SplitTableName splits "schema.table" on the first dot. schema is empty
// when the name is unqualified.
func SplitTableName(name string) (schema, table string) {
	if s, t, ok := strings.Cut(name, "."); ok && t != "" {
		return s, t
	}
	return "", name
}

// QuoteIdentifier wraps name in double quotes, doubling any it contains.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteTable quotes each part of a possibly qualified table name.
func QuoteTable(name string) string {
	schema, table := SplitTableName(name)
	if schema == "" {
		return QuoteIdentifier(table)
	}
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}

// collect runs query and sorts each row into primary or other columns. scan
// reads one row and reports the column name and whether it is a key column.
func collect(ctx context.Context, q Querier, table, query string, params map[string]any,
	scan func(*sql.Rows) (string, bool, error)) (RowSchema, error) {

	rows, err := q.Query(ctx, query, params)
	if err != nil {
		return RowSchema{}, &LookupError{Table: table, Err: err}
	}
	defer rows.Close()

	var rs RowSchema
	for rows.Next() {
		name, pk, err := scan(rows)
		if err != nil {
			return RowSchema{}, &LookupError{Table: table, Err: err}
		}
		name = strings.ToLower(name)
		if pk {
			rs.Primary = append(rs.Primary, name)
		} else {
			rs.Others = append(rs.Others, name)
		}
	}
	if err := rows.Err(); err != nil {
		return RowSchema{}, &LookupError{Table: table, Err: err}
	}
	if len(rs.Primary) == 0 {
		return RowSchema{}, &LookupError{Table: table, Err: ErrNoPrimaryKey}
	}
	return rs, nil
}
