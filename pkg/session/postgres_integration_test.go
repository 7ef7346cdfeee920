//go:build integration

package session

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log"
	"os"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/zoravur/sqlbind/internal/fixtures"
	"github.com/zoravur/sqlbind/internal/pgcheck"
	"github.com/zoravur/sqlbind/pkg/fixgres"
	"github.com/zoravur/sqlbind/pkg/rowschema"
	"github.com/zoravur/sqlbind/pkg/todb"
)

//go:embed testdata/migrations/*.sql
var migrations embed.FS

func TestMain(m *testing.M) {
	sub, err := fs.Sub(migrations, "testdata/migrations")
	if err != nil {
		log.Fatal(err)
	}
	if err := fixgres.BootOnce(context.Background(), fixgres.WithMigrations(sub)); err != nil {
		log.Fatal(err)
	}
	code := m.Run()
	_ = fixgres.ShutdownNow()
	os.Exit(code)
}

func pgSession(t *testing.T, opts ...Option) (*Session, *fixgres.Sandbox) {
	t.Helper()
	sbx := fixgres.NewSandbox(t)
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	s, err := Wrap(sbx.DB, "pgx", opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s, sbx
}

func TestPostgresRowSchema(t *testing.T) {
	s, sbx := pgSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tests := []struct {
		table string
		want  rowschema.RowSchema
	}{
		{"suppliers", rowschema.RowSchema{Primary: []string{"sno"}, Others: []string{"name", "city", "status"}}},
		{"shipments", rowschema.RowSchema{Primary: []string{"sno", "pno"}, Others: []string{"qty"}}},
		{sbx.Schema + ".suppliers", rowschema.RowSchema{Primary: []string{"sno"}, Others: []string{"name", "city", "status"}}},
	}
	for _, tc := range tests {
		got, err := s.Builder().Schema(ctx, tc.table)
		if err != nil {
			t.Fatalf("%s: %v", tc.table, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: expected %+v, got %+v", tc.table, tc.want, got)
		}
	}

	for _, table := range []string{"audit_log", "nowhere"} {
		_, err := s.Builder().Schema(ctx, table)
		var le *rowschema.LookupError
		if !errors.As(err, &le) || !errors.Is(err, rowschema.ErrNoPrimaryKey) {
			t.Errorf("%s: expected a LookupError wrapping ErrNoPrimaryKey, got %v", table, err)
		}
	}
}

func TestPostgresInsertUpdate(t *testing.T) {
	s, sbx := pgSession(t, WithValidator(pgcheck.Allow(pgcheck.Select, pgcheck.Insert, pgcheck.Update)))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := fixtures.Suppliers(sbx.Seed, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, sup := range rows {
		if _, err := s.InsertInto("suppliers").FromSource(ctx, sup); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	st, err := s.InsertInto("shipments").Statement(ctx, map[string]any{"SNO": rows[0].SNo, "pno": 7, "qty": 3})
	if err != nil {
		t.Fatal(err)
	}
	if want := `insert into "shipments" ("sno", "pno", "qty") values ($1, $2, $3)`; st.SQL != want {
		t.Fatalf("SQL:\nexpected: %s\nactual:   %s", want, st.SQL)
	}
	if _, err := s.ExecStatement(ctx, st); err != nil {
		t.Fatal(err)
	}

	res, err := s.Update("shipments").FromSource(ctx, map[string]any{"sno": rows[0].SNo, "pno": 7, "qty": 9})
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("update touched %d rows", n)
	}

	q, err := s.Query(ctx, "select qty from shipments where sno = :sno and pno = :pno", map[string]any{"sno": rows[0].SNo, "pno": 7})
	if err != nil {
		t.Fatal(err)
	}
	qty, err := Scalar(q)
	if err != nil {
		t.Fatal(err)
	}
	if qty != int64(9) {
		t.Fatalf("qty = %v (%T)", qty, qty)
	}

	if _, err := s.Exec(ctx, "delete from shipments", nil); !errors.Is(err, ErrRejected) {
		t.Fatalf("delete should be rejected, got %v", err)
	}
}

func TestPostgresCastIsNotAParameter(t *testing.T) {
	s, _ := pgSession(t)
	q, err := s.Query(context.Background(), "select :n::int + 1 as v", map[string]any{"n": 41})
	if err != nil {
		t.Fatal(err)
	}
	v, err := Scalar(q)
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(42) {
		t.Fatalf("v = %v (%T)", v, v)
	}
}

func TestPostgresExecMany(t *testing.T) {
	s, _ := pgSession(t)
	if s.Style() != todb.Dollar {
		t.Fatalf("pgx should default to dollar, got %v", s.Style())
	}
	seq := []any{
		map[string]any{"sno": "a", "name": "A"},
		map[string]any{"sno": "b", "name": "B"},
	}
	n, err := s.ExecMany(context.Background(), "insert into suppliers (sno, name) values (:sno, :name)", seq)
	if err != nil || n != 2 {
		t.Fatalf("ExecMany = %d, %v", n, err)
	}
}
