package session

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zoravur/sqlbind/pkg/rowschema"
	"github.com/zoravur/sqlbind/pkg/todb"
)

var ErrUnknownDriver = errors.New("unknown database/sql driver")

// Dialect describes what a session needs to know about one DBMS family.
type Dialect struct {
	Name string
	// Style is the placeholder convention the family's drivers accept.
	Style todb.Style
	// RowSchema builds the primary-key provider for a session.
	RowSchema func(rowschema.Querier) rowschema.Provider
}

var (
	postgresDialect = Dialect{"postgres", todb.Dollar, func(q rowschema.Querier) rowschema.Provider { return rowschema.NewPostgres(q) }}
	mysqlDialect    = Dialect{"mysql", todb.QMark, func(q rowschema.Querier) rowschema.Provider { return rowschema.NewMySQL(q) }}
	mssqlDialect    = Dialect{"sqlserver", todb.QMark, func(q rowschema.Querier) rowschema.Provider { return rowschema.NewSQLServer(q) }}
	sqliteDialect   = Dialect{"sqlite", todb.QMark, func(q rowschema.Querier) rowschema.Provider { return rowschema.NewSQLite(q) }}
	oracleDialect   = Dialect{"oracle", todb.Numeric, func(q rowschema.Querier) rowschema.Provider { return rowschema.NewOracle(q) }}
	db2Dialect      = Dialect{"db2", todb.QMark, func(q rowschema.Querier) rowschema.Provider { return rowschema.NewDB2(q) }}
)

// dialects is keyed by the name a driver registers with database/sql.
// go-mssqldb is listed under its legacy "mssql" name only; its "sqlserver"
// driver wants @name placeholders, which no Style spells.
var dialects = map[string]Dialect{
	"pgx":       postgresDialect,
	"pgx/v5":    postgresDialect,
	"postgres":  postgresDialect,
	"mysql":     mysqlDialect,
	"mssql":     mssqlDialect,
	"sqlite3":   sqliteDialect,
	"sqlite":    sqliteDialect,
	"godror":    oracleDialect,
	"oracle":    oracleDialect,
	"go_ibm_db": db2Dialect,
}

// DialectFor looks up the dialect of a registered driver name.
func DialectFor(driverName string) (Dialect, error) {
	d, ok := dialects[driverName]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnknownDriver, driverName)
	}
	return d, nil
}

// Drivers lists the driver names DialectFor knows.
func Drivers() []string {
	out := make([]string, 0, len(dialects))
	for k := range dialects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
