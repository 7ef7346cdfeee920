package rowschema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Oracle folds unquoted identifiers to upper case, so the table name is
// upper-cased before lookup. Key columns come from the 'P' constraint in
// key position order; the remaining columns from all_tab_columns.
type Oracle struct {
	q Querier
}

func NewOracle(q Querier) *Oracle { return &Oracle{q: q} }

const (
	oracleKeyQuery = `select cols.column_name
from all_constraints cons, all_cons_columns cols
where cols.owner = %s and cols.table_name = :tabname
  and cons.constraint_name = cols.constraint_name
  and cons.owner = cols.owner
  and cons.table_name = cols.table_name
  and cons.constraint_type = 'P'
order by cols.position`

	oracleColumnQuery = `select column_name from all_tab_columns
where owner = %s and table_name = :tabname
order by column_id`

	oracleCurrentSchema = "sys_context('USERENV', 'CURRENT_SCHEMA')"
)

func (p *Oracle) RowSchema(ctx context.Context, table string) (RowSchema, error) {
	dbname, tabname := SplitTableName(strings.ToUpper(table))
	params := map[string]any{"tabname": tabname}
	owner := oracleCurrentSchema
	if dbname != "" {
		params["dbname"] = dbname
		owner = ":dbname"
	}

	keys, err := p.names(ctx, fmt.Sprintf(oracleKeyQuery, owner), params)
	if err != nil {
		return RowSchema{}, &LookupError{Table: table, Err: err}
	}
	if len(keys) == 0 {
		return RowSchema{}, &LookupError{Table: table, Err: ErrNoPrimaryKey}
	}
	cols, err := p.names(ctx, fmt.Sprintf(oracleColumnQuery, owner), params)
	if err != nil {
		return RowSchema{}, &LookupError{Table: table, Err: err}
	}

	rs := RowSchema{Primary: keys}
	for _, c := range cols {
		if !rs.IsPrimary(c) {
			rs.Others = append(rs.Others, c)
		}
	}
	return rs, nil
}

// names returns the first column of every row, lower-cased.
func (p *Oracle) names(ctx context.Context, query string, params map[string]any) ([]string, error) {
	rows, err := p.q.Query(ctx, query, params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, strings.ToLower(s.String))
	}
	return out, rows.Err()
}
