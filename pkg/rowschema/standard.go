package rowschema

import (
	"context"
	"database/sql"
	"fmt"
)

// Standard reads INFORMATION_SCHEMA. Vendors disagree on which column holds
// the schema a table lives in and on how to name the current one, so both
// are configurable.
type Standard struct {
	q Querier
	// dbTerm is the information_schema column compared against the schema
	// part of a qualified table name, e.g. "table_schema".
	dbTerm string
	// currentDB is the SQL expression used when the name is unqualified.
	currentDB string
}

func NewStandard(q Querier, dbTerm, currentDB string) *Standard {
	return &Standard{q: q, dbTerm: dbTerm, currentDB: currentDB}
}

func NewMySQL(q Querier) *Standard     { return NewStandard(q, "table_schema", "database()") }
func NewSQLServer(q Querier) *Standard { return NewStandard(q, "table_schema", "schema_name()") }

const standardQuery = `select c.column_name, k.column_name
from information_schema.columns c
left join information_schema.table_constraints t
  on t.table_name = c.table_name and t.%[1]s = c.%[1]s and t.constraint_type = 'PRIMARY KEY'
left join information_schema.key_column_usage k
  on k.constraint_name = t.constraint_name and k.%[1]s = c.%[1]s
  and k.table_name = c.table_name and k.column_name = c.column_name
where c.table_name = :tabname and c.%[1]s = %[2]s
order by c.ordinal_position`

func (p *Standard) RowSchema(ctx context.Context, table string) (RowSchema, error) {
	dbname, tabname := SplitTableName(table)
	params := map[string]any{"tabname": tabname}
	current := p.currentDB
	if dbname != "" {
		params["dbname"] = dbname
		current = ":dbname"
	}
	query := fmt.Sprintf(standardQuery, p.dbTerm, current)
	return collect(ctx, p.q, table, query, params, func(rows *sql.Rows) (string, bool, error) {
		var name string
		var key sql.NullString
		err := rows.Scan(&name, &key)
		return name, key.Valid, err
	})
}
