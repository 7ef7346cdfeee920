package rowschema

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Postgres reads pg_catalog directly. information_schema on Postgres only
// shows tables the current role has privileges on, and is much slower.
type Postgres struct {
	q Querier
}

func NewPostgres(q Querier) *Postgres { return &Postgres{q: q} }

// Both arrays are cast to text so the result scans the same way under
// lib/pq and pgx's stdlib driver.
const postgresQuery = `select
  array(select a.attname::text
        from pg_catalog.pg_attribute a
        where a.attrelid = c.oid and a.attnum > 0 and not a.attisdropped
        order by a.attnum)::text,
  coalesce(array(select a.attname::text
        from unnest(i.indkey) with ordinality as k(attnum, ord)
        join pg_catalog.pg_attribute a on a.attrelid = c.oid and a.attnum = k.attnum
        order by k.ord)::text, '{}')
from pg_catalog.pg_class c
join pg_catalog.pg_namespace n on n.oid = c.relnamespace
left join pg_catalog.pg_index i on i.indrelid = c.oid and i.indisprimary
where c.relname = :tabname and n.nspname = %s and c.relkind in ('r', 'p')`

func (p *Postgres) RowSchema(ctx context.Context, table string) (RowSchema, error) {
	dbname, tabname := SplitTableName(table)
	params := map[string]any{"tabname": tabname}
	current := "current_schema()"
	if dbname != "" {
		params["dbname"] = dbname
		current = ":dbname"
	}

	rows, err := p.q.Query(ctx, fmt.Sprintf(postgresQuery, current), params)
	if err != nil {
		return RowSchema{}, &LookupError{Table: table, Err: err}
	}
	defer rows.Close()

	var cols, keys []string
	if rows.Next() {
		if err := rows.Scan(pq.Array(&cols), pq.Array(&keys)); err != nil {
			return RowSchema{}, &LookupError{Table: table, Err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return RowSchema{}, &LookupError{Table: table, Err: err}
	}
	if len(keys) == 0 {
		return RowSchema{}, &LookupError{Table: table, Err: ErrNoPrimaryKey}
	}

	var rs RowSchema
	key := make(map[string]bool, len(keys))
	for _, k := range keys {
		k = strings.ToLower(k)
		key[k] = true
		rs.Primary = append(rs.Primary, k)
	}
	for _, c := range cols {
		if c = strings.ToLower(c); !key[c] {
			rs.Others = append(rs.Others, c)
		}
	}
	return rs, nil
}
