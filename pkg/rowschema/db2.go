package rowschema

import (
	"context"
	"database/sql"
	"strings"
)

// DB2 reads syscat.columns, where keyseq is the column's position in the
// primary key. Db2 for z/OS keeps its catalog elsewhere and is not
// supported.
type DB2 struct {
	q Querier
}

func NewDB2(q Querier) *DB2 { return &DB2{q: q} }

func (p *DB2) RowSchema(ctx context.Context, table string) (RowSchema, error) {
	dbname, tabname := SplitTableName(strings.ToUpper(table))
	params := map[string]any{"tabname": tabname}
	query := "select colname, keyseq from syscat.columns where tabschema = current_schema and tabname = :tabname order by colno"
	if dbname != "" {
		params["dbname"] = dbname
		query = "select colname, keyseq from syscat.columns where tabschema = :dbname and tabname = :tabname order by colno"
	}
	return collect(ctx, p.q, table, query, params, func(rows *sql.Rows) (string, bool, error) {
		var name string
		var keyseq sql.NullInt64
		err := rows.Scan(&name, &keyseq)
		return name, keyseq.Valid && keyseq.Int64 > 0, err
	})
}
