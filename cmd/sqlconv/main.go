// Command sqlconv rewrites a :name query for a placeholder style, or builds
// an insert or update for a table of a live database.
//
//	sqlconv -style numeric -query 'select * from t where a = :a' -params '{"a": 1}'
//	sqlconv -driver pgx -conn postgres://... -table suppliers -op update -params '{"sno": "s1", "city": "Oslo"}'
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/zoravur/sqlbind/internal/pgcheck"
	"github.com/zoravur/sqlbind/pkg/session"
	"github.com/zoravur/sqlbind/pkg/todb"
)

func main() {
	styleName := flag.String("style", "", "Placeholder style: qmark, format, numeric, named, pyformat, dollar")
	query := flag.String("query", "", "SQL with :name parameters to convert")
	params := flag.String("params", "{}", "Parameters, or the row data for -table, as a JSON object")
	driver := flag.String("driver", "", "database/sql driver name; picks the style when -style is empty")
	conn := flag.String("conn", "", "Connection string, needed for -table")
	table := flag.String("table", "", "Build a statement for this table instead of converting -query")
	op := flag.String("op", "insert", "insert or update, with -table")
	include := flag.String("include", "", "Comma-separated columns to keep, with -table")
	exclude := flag.String("exclude", "", "Comma-separated columns to leave out, with -table")
	check := flag.Bool("check", false, "Parse the result with the Postgres parser")
	execute := flag.Bool("exec", false, "Run the built statement, with -table")
	verbose := flag.Bool("v", false, "Debug logging to stderr")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	var data map[string]any
	if err := json.Unmarshal([]byte(*params), &data); err != nil {
		log.Fatalf("-params: %v", err)
	}

	var st todb.Statement
	var style todb.Style
	switch {
	case *table != "":
		if *driver == "" || *conn == "" {
			log.Fatal("-table needs -driver and -conn")
		}
		opts := []session.Option{session.WithLogger(logger)}
		if *styleName != "" {
			opts = append(opts, session.WithStyle(mustStyle(*styleName)))
		}
		s, err := session.Open(*driver, *conn, opts...)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer s.Close()
		style = s.Style()

		p := s.InsertInto(*table)
		if *op == "update" {
			p = s.Update(*table)
		} else if *op != "insert" {
			log.Fatalf("-op must be insert or update, not %q", *op)
		}
		if cols := splitList(*include); len(cols) > 0 {
			p.Including(cols...)
		}
		if cols := splitList(*exclude); len(cols) > 0 {
			p.Excluding(cols...)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if st, err = p.Statement(ctx, data); err != nil {
			log.Fatalf("build: %v", err)
		}
		if *execute {
			res, err := s.ExecStatement(ctx, st)
			if err != nil {
				log.Fatalf("exec: %v", err)
			}
			n, _ := res.RowsAffected()
			defer fmt.Printf("\n%d row(s) affected\n", n)
		}

	case *query != "":
		style = todb.QMark
		if *styleName != "" {
			style = mustStyle(*styleName)
		} else if *driver != "" {
			d, err := session.DialectFor(*driver)
			if err != nil {
				log.Fatal(err)
			}
			style = d.Style
		}
		var err error
		st, err = todb.New(todb.WithLogger(logger)).Convert(*query, data, style)
		if err != nil {
			log.Fatalf("convert: %v", err)
		}

	default:
		log.Fatal("Please provide a SQL query via -query, or a table via -table")
	}

	fmt.Printf("=== SQL (%s) ===\n%s\n", style, st.SQL)
	fmt.Println("\n=== Parameters ===")
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if st.Params.Keyed() {
		_ = enc.Encode(st.Params.Map())
	} else {
		_ = enc.Encode(st.Params.List())
	}

	if *check {
		kind, err := pgcheck.Classify(st.SQL)
		if err != nil {
			log.Fatalf("check: %v", err)
		}
		fmt.Printf("\n✓ parses as a %s statement\n", kind)
	}
}

func mustStyle(name string) todb.Style {
	s, err := todb.ParseStyle(name)
	if err != nil {
		log.Fatal(err)
	}
	return s
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
