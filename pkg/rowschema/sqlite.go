package rowschema

import (
	"context"
	"database/sql"
)

// SQLite uses the table_info pragma. A qualified name selects an attached
// database.
type SQLite struct {
	q Querier
}

func NewSQLite(q Querier) *SQLite { return &SQLite{q: q} }

func (p *SQLite) RowSchema(ctx context.Context, table string) (RowSchema, error) {
	dbname, tabname := SplitTableName(table)
	params := map[string]any{"tabname": tabname}
	query := "select name, pk from pragma_table_info(:tabname) order by cid"
	if dbname != "" {
		params["dbname"] = dbname
		query = "select name, pk from pragma_table_info(:tabname, :dbname) order by cid"
	}
	return collect(ctx, p.q, table, query, params, func(rows *sql.Rows) (string, bool, error) {
		var name string
		var pk int
		err := rows.Scan(&name, &pk)
		return name, pk > 0, err
	})
}
