package builder

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/zoravur/sqlbind/pkg/rowschema"
	"github.com/zoravur/sqlbind/pkg/todb"
)

var suppliersSchema = rowschema.RowSchema{Primary: []string{"sno"}, Others: []string{"name", "city"}}

// staticProvider serves fixed schemas and counts lookups.
type staticProvider struct {
	schemas map[string]rowschema.RowSchema
	calls   atomic.Int32
}

func (p *staticProvider) RowSchema(_ context.Context, table string) (rowschema.RowSchema, error) {
	p.calls.Add(1)
	rs, ok := p.schemas[table]
	if !ok {
		return rowschema.RowSchema{}, &rowschema.LookupError{Table: table, Err: rowschema.ErrNoPrimaryKey}
	}
	return rs, nil
}

func newBuilder(style todb.Style) (*Builder, *staticProvider) {
	p := &staticProvider{schemas: map[string]rowschema.RowSchema{
		"suppliers":  suppliersSchema,
		"acme.parts": {Primary: []string{"pno"}, Others: []string{"pname"}},
		"shipments":  {Primary: []string{"sno", "pno"}, Others: []string{"qty"}},
		`odd"table`:  {Primary: []string{"id"}, Others: []string{`we"ird`}},
	}}
	return New(p, todb.New(), style), p
}

func TestInsertSQL(t *testing.T) {
	b, _ := newBuilder(todb.Named)
	ctx := context.Background()

	tests := []struct {
		name  string
		table string
		data  any
		want  string
	}{
		{
			name:  "all columns",
			table: "suppliers",
			data:  map[string]any{"sno": "s1", "name": "Smith", "city": "London"},
			want:  `insert into "suppliers" ("sno", "name", "city") values (:sno, :name, :city)`,
		},
		{
			name:  "unresolved primary key is dropped",
			table: "suppliers",
			data:  map[string]any{"name": "Smith"},
			want:  `insert into "suppliers" ("name") values (:name)`,
		},
		{
			name:  "extra fields are ignored",
			table: "suppliers",
			data:  map[string]any{"sno": "s1", "status": 20},
			want:  `insert into "suppliers" ("sno") values (:sno)`,
		},
		{
			name:  "qualified table",
			table: "acme.parts",
			data:  map[string]any{"pno": "p1", "pname": "Nut"},
			want:  `insert into "acme"."parts" ("pno", "pname") values (:pno, :pname)`,
		},
		{
			name:  "struct fields matched case-insensitively",
			table: "suppliers",
			data: struct {
				SNo  string
				Name string
			}{"s1", "Smith"},
			want: `insert into "suppliers" ("sno", "name") values (:SNo, :Name)`,
		},
		{
			name:  "quotes are doubled",
			table: `odd"table`,
			data:  map[string]any{"id": 1, `We"ird`: 2},
			want:  `insert into "odd""table" ("id") values (:id)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := b.Insert(tt.table).SQL(ctx, tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("SQL:\nexpected: %s\nactual:   %s", tt.want, got)
			}
		})
	}
}

func TestUpdateSQL(t *testing.T) {
	b, _ := newBuilder(todb.Named)
	ctx := context.Background()

	got, _, err := b.Update("suppliers").SQL(ctx, map[string]any{"sno": "s1", "name": "Smith", "city": "Paris"})
	if err != nil {
		t.Fatal(err)
	}
	want := `update "suppliers" set "name" = :name, "city" = :city where "sno" = :sno`
	if got != want {
		t.Fatalf("SQL:\nexpected: %s\nactual:   %s", want, got)
	}

	got, _, err = b.Update("shipments").SQL(ctx, map[string]any{"PNO": "p1", "SNO": "s1", "Qty": 3})
	if err != nil {
		t.Fatal(err)
	}
	want = `update "shipments" set "qty" = :Qty where "sno" = :SNO and "pno" = :PNO`
	if got != want {
		t.Fatalf("SQL:\nexpected: %s\nactual:   %s", want, got)
	}
}

func TestUpdateRequiresPrimaryKey(t *testing.T) {
	b, _ := newBuilder(todb.QMark)
	_, err := b.Update("suppliers").FromSource(context.Background(), map[string]any{"name": "Smith"})
	if !errors.Is(err, ErrIncompleteData) {
		t.Fatalf("expected ErrIncompleteData, got %v", err)
	}
}

func TestUpdateKeyFilteredOut(t *testing.T) {
	b, _ := newBuilder(todb.QMark)
	data := map[string]any{"sno": "s1", "name": "Smith"}
	ctx := context.Background()

	if _, err := b.Update("suppliers").Excluding("SNO").FromSource(ctx, data); !errors.Is(err, ErrIncompleteData) {
		t.Fatalf("excluding the key: expected ErrIncompleteData, got %v", err)
	}
	if _, err := b.Update("suppliers").Including("name").FromSource(ctx, data); !errors.Is(err, ErrIncompleteData) {
		t.Fatalf("not including the key: expected ErrIncompleteData, got %v", err)
	}
	st, err := b.Update("suppliers").Including("sno", "name").FromSource(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if want := `update "suppliers" set "name" = ? where "sno" = ?`; st.SQL != want {
		t.Fatalf("SQL:\nexpected: %s\nactual:   %s", want, st.SQL)
	}
	if got := st.Params.List(); !reflect.DeepEqual(got, []any{"Smith", "s1"}) {
		t.Fatalf("params = %v", got)
	}
}

func TestNothingToWrite(t *testing.T) {
	b, _ := newBuilder(todb.QMark)
	ctx := context.Background()
	if _, _, err := b.Insert("suppliers").SQL(ctx, map[string]any{"status": 1}); !errors.Is(err, ErrIncompleteData) {
		t.Fatalf("insert: expected ErrIncompleteData, got %v", err)
	}
	if _, _, err := b.Update("suppliers").SQL(ctx, map[string]any{"sno": "s1"}); !errors.Is(err, ErrIncompleteData) {
		t.Fatalf("update: expected ErrIncompleteData, got %v", err)
	}
}

func TestFilters(t *testing.T) {
	b, _ := newBuilder(todb.Named)
	ctx := context.Background()
	data := map[string]any{"sno": "s1", "name": "Smith", "city": "London"}

	got, _, err := b.Insert("suppliers").Including("NAME").Including("city").SQL(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if want := `insert into "suppliers" ("name", "city") values (:name, :city)`; got != want {
		t.Fatalf("including:\nexpected: %s\nactual:   %s", want, got)
	}

	got, _, err = b.Insert("suppliers").Excluding("city").SQL(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if want := `insert into "suppliers" ("sno", "name") values (:sno, :name)`; got != want {
		t.Fatalf("excluding:\nexpected: %s\nactual:   %s", want, got)
	}
}

func TestIncludeExcludeConflict(t *testing.T) {
	b, _ := newBuilder(todb.QMark)
	ctx := context.Background()
	data := map[string]any{"sno": "s1", "name": "Smith"}

	p := b.Insert("suppliers").Including("a").Excluding("b")
	if !errors.Is(p.Err(), ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", p.Err())
	}
	if _, err := p.FromSource(ctx, data); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("FromSource should report the stored error, got %v", err)
	}

	p = b.Update("suppliers").Excluding("city").Including("name")
	if !errors.Is(p.Err(), ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", p.Err())
	}
}

func TestCaseMap(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{
			name: "exact lower case wins",
			data: map[string]any{"sno": 1, "name": "a", "Name": "b", "NAME": "c"},
			want: `insert into "suppliers" ("sno", "name") values (:sno, :name)`,
		},
		{
			name: "ambiguous spellings are unresolvable",
			data: map[string]any{"sno": 1, "Name": "b", "NAME": "c"},
			want: `insert into "suppliers" ("sno") values (:sno)`,
		},
		{
			name: "single mixed-case spelling resolves",
			data: map[string]any{"Sno": 1, "CITY": "x"},
			want: `insert into "suppliers" ("sno", "city") values (:Sno, :CITY)`,
		},
		{
			name: "names that cannot be parameters are skipped",
			data: map[string]any{"sno": 1, "Name ": "x", "city.x": "y"},
			want: `insert into "suppliers" ("sno") values (:sno)`,
		},
	}
	b, _ := newBuilder(todb.Named)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := b.Insert("suppliers").SQL(context.Background(), tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("SQL:\nexpected: %s\nactual:   %s", tt.want, got)
			}
		})
	}
}

func TestFromSourceConverts(t *testing.T) {
	b, _ := newBuilder(todb.Numeric)
	st, err := b.Insert("suppliers").FromSource(context.Background(), map[string]any{"sno": "s1", "name": "Smith"})
	if err != nil {
		t.Fatal(err)
	}
	if want := `insert into "suppliers" ("sno", "name") values (:1, :2)`; st.SQL != want {
		t.Fatalf("SQL:\nexpected: %s\nactual:   %s", want, st.SQL)
	}
	if got := st.Params.List(); !reflect.DeepEqual(got, []any{"s1", "Smith"}) {
		t.Fatalf("params = %v", got)
	}
}

func TestSchemaLookupErrorPropagates(t *testing.T) {
	b, p := newBuilder(todb.QMark)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := b.Insert("nope").FromSource(ctx, map[string]any{"a": 1})
		var le *rowschema.LookupError
		if !errors.As(err, &le) || !errors.Is(err, rowschema.ErrNoPrimaryKey) {
			t.Fatalf("expected a lookup error, got %v", err)
		}
	}
	if n := p.calls.Load(); n != 2 {
		t.Fatalf("failed lookups must not be cached; provider called %d times", n)
	}
}

func TestSchemaIsCachedPerBuilder(t *testing.T) {
	b, p := newBuilder(todb.QMark)
	ctx := context.Background()
	data := map[string]any{"sno": "s1", "name": "Smith"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Insert("suppliers").FromSource(ctx, data); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	before := p.calls.Load()
	if _, err := b.Update("suppliers").FromSource(ctx, data); err != nil {
		t.Fatal(err)
	}
	if p.calls.Load() != before {
		t.Fatal("cached schema was not reused")
	}

	b.Forget("suppliers")
	if _, err := b.Update("suppliers").FromSource(ctx, data); err != nil {
		t.Fatal(err)
	}
	if p.calls.Load() != before+1 {
		t.Fatal("Forget should force a new lookup")
	}

	other := New(p, todb.New(), todb.QMark)
	if _, err := other.Schema(ctx, "suppliers"); err != nil {
		t.Fatal(err)
	}
	if p.calls.Load() != before+2 {
		t.Fatal("schema caches must not be shared between builders")
	}
}
