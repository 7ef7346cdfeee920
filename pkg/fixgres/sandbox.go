package fixgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"fmt"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Sandbox is one test's private schema. Every pooled connection of DB has
// the schema first on its search_path, so unqualified names resolve there.
type Sandbox struct {
	DB     *sql.DB
	DSN    string
	Schema string
	Seed   int64
	Close  func()
}

var sandboxes atomic.Int64

func NewSandbox(t *testing.T) *Sandbox {
	t.Helper()
	mu.Lock()
	c, base := booted, connString
	mu.Unlock()
	if c == nil || base == "" {
		t.Fatalf("fixgres not booted. Call fixgres.BootOnce(...) in TestMain first.")
	}

	admin, err := sql.Open("pgx", base) // admin connection (no search_path)
	if err != nil {
		t.Fatalf("open admin: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n := sandboxes.Add(1)
	schema := fmt.Sprintf("t_%x_%d", time.Now().UnixNano(), n)
	if _, err := admin.ExecContext(ctx, `CREATE SCHEMA "`+schema+`"`); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	dsn := withSearchPath(base, schema)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open sandbox: %v", err)
	}

	sbx := &Sandbox{
		DB:     db,
		DSN:    dsn,
		Schema: schema,
		Seed:   c.randomSeed + n,
	}
	sbx.Close = func() {
		// drop schema with admin handle (it doesn't share the search_path)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = admin.ExecContext(ctx, `DROP SCHEMA IF EXISTS "`+schema+`" CASCADE`)
		_ = db.Close()
		_ = admin.Close()
	}
	t.Cleanup(sbx.Close)

	if c.migrations != nil {
		p, err := goose.NewProvider(goose.DialectPostgres, db, c.migrations)
		if err != nil {
			t.Fatalf("goose provider: %v", err)
		}
		if _, err := p.Up(ctx); err != nil {
			t.Fatalf("goose up in %s: %v", schema, err)
		}
	}
	t.Logf("fixgres sandbox %s (seed %d)", schema, sbx.Seed)
	return sbx
}

func withSearchPath(base, schema string) string {
	u, _ := url.Parse(base)
	q := u.Query()
	q.Set("options", fmt.Sprintf("-csearch_path=%s,public", schema))
	u.RawQuery = q.Encode()
	return u.String()
}

func randomSeed() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1)
}
