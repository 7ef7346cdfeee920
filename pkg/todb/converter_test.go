package todb

import (
	"database/sql"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/zoravur/sqlbind/pkg/datasource"
)

const insertSuppliers = "insert into suppliers (sno, name) values (:sno, :name)"

func TestConvertStyles(t *testing.T) {
	params := map[string]any{"sno": "s1", "name": "Smith"}
	tests := []struct {
		style   Style
		sql     string
		list    []any
		keyed   bool
		wantMap map[string]any
	}{
		{
			style: QMark,
			sql:   "insert into suppliers (sno, name) values (?, ?)",
			list:  []any{"s1", "Smith"},
		},
		{
			style: Format,
			sql:   "insert into suppliers (sno, name) values (%s, %s)",
			list:  []any{"s1", "Smith"},
		},
		{
			style: Numeric,
			sql:   "insert into suppliers (sno, name) values (:1, :2)",
			list:  []any{"s1", "Smith"},
		},
		{
			style:   Named,
			sql:     insertSuppliers,
			keyed:   true,
			wantMap: map[string]any{"sno": "s1", "name": "Smith"},
		},
		{
			style:   PyFormat,
			sql:     "insert into suppliers (sno, name) values (%(sno)s, %(name)s)",
			keyed:   true,
			wantMap: map[string]any{"sno": "s1", "name": "Smith"},
		},
		{
			style: Dollar,
			sql:   "insert into suppliers (sno, name) values ($1, $2)",
			list:  []any{"s1", "Smith"},
		},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.style.String(), func(t *testing.T) {
			st, err := c.Convert(insertSuppliers, params, tt.style)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if st.SQL != tt.sql {
				t.Errorf("SQL:\nexpected: %s\nactual:   %s", tt.sql, st.SQL)
			}
			if st.Params.Keyed() != tt.keyed {
				t.Errorf("Keyed() = %v, want %v", st.Params.Keyed(), tt.keyed)
			}
			if tt.keyed {
				if got := st.Params.Map(); !reflect.DeepEqual(got, tt.wantMap) {
					t.Errorf("Map() = %v, want %v", got, tt.wantMap)
				}
			} else if got := st.Params.List(); !reflect.DeepEqual(got, tt.list) {
				t.Errorf("List() = %v, want %v", got, tt.list)
			}
		})
	}
}

func TestRepeatedNames(t *testing.T) {
	const q = "select * from t where a = :x or b = :y or c = :x"
	params := map[string]any{"x": 1, "y": 2}
	tests := []struct {
		style Style
		sql   string
		names []string
	}{
		{QMark, "select * from t where a = ? or b = ? or c = ?", []string{"x", "y", "x"}},
		{Format, "select * from t where a = %s or b = %s or c = %s", []string{"x", "y", "x"}},
		{Numeric, "select * from t where a = :1 or b = :2 or c = :1", []string{"x", "y"}},
		{Dollar, "select * from t where a = $1 or b = $2 or c = $1", []string{"x", "y"}},
		{Named, "select * from t where a = :x or b = :y or c = :x", []string{"x", "y"}},
		{PyFormat, "select * from t where a = %(x)s or b = %(y)s or c = %(x)s", []string{"x", "y"}},
	}
	c := New()
	for _, tt := range tests {
		t.Run(tt.style.String(), func(t *testing.T) {
			st, err := c.Convert(q, params, tt.style)
			if err != nil {
				t.Fatal(err)
			}
			if st.SQL != tt.sql {
				t.Errorf("SQL:\nexpected: %s\nactual:   %s", tt.sql, st.SQL)
			}
			if got := st.Params.Names(); !reflect.DeepEqual(got, tt.names) {
				t.Errorf("Names() = %v, want %v", got, tt.names)
			}
		})
	}
}

func TestConvertStruct(t *testing.T) {
	type supplier struct {
		SNo  string `db:"sno"`
		Name string `db:"name"`
	}
	st, err := New().Convert(insertSuppliers, &supplier{"s1", "Smith"}, Numeric)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := st.Params.List(), []any{"s1", "Smith"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
}

func TestMissingParameter(t *testing.T) {
	_, err := New().Convert("select * from t where x = :missing", map[string]any{}, QMark)
	if !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
	if want := `missing parameter: "missing"`; err.Error() != want {
		t.Fatalf("error text = %q, want %q", err.Error(), want)
	}
}

func TestLiteralsAndCommentsAreNotParameters(t *testing.T) {
	const q = "select ':a', \":b\", x::int -- :c\nfrom t where y = :d"
	st, err := New().Convert(q, map[string]any{"d": 4}, QMark)
	if err != nil {
		t.Fatal(err)
	}
	want := "select ':a', \":b\", x::int from t where y = ?"
	if st.SQL != want {
		t.Fatalf("SQL:\nexpected: %s\nactual:   %s", want, st.SQL)
	}
	if st.Params.Len() != 1 {
		t.Fatalf("expected one parameter, got %d", st.Params.Len())
	}
}

func TestLexErrorAbortsConversion(t *testing.T) {
	c := New()
	_, err := c.Convert(`select \ from t`, nil, QMark)
	if !IsLexError(err) {
		t.Fatalf("expected a lex error, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed templates must not be cached")
	}
}

func TestUnknownStyle(t *testing.T) {
	if _, err := New().Convert("select 1", nil, Style(42)); !errors.Is(err, ErrUnknownStyle) {
		t.Fatalf("expected ErrUnknownStyle, got %v", err)
	}
	if _, err := ParseStyle("colon"); !errors.Is(err, ErrUnknownStyle) {
		t.Fatalf("expected ErrUnknownStyle, got %v", err)
	}
	s, err := ParseStyle(" PyFormat ")
	if err != nil || s != PyFormat {
		t.Fatalf("ParseStyle = %v, %v", s, err)
	}
}

func TestStyleText(t *testing.T) {
	for i := range styleNames {
		s := Style(i)
		b, err := s.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back Style
		if err := back.UnmarshalText(b); err != nil || back != s {
			t.Fatalf("%v did not survive text round trip: %v, %v", s, back, err)
		}
	}
}

func TestCacheReusesTemplate(t *testing.T) {
	c := New()
	a, err := c.Convert(insertSuppliers, map[string]any{"sno": "s1", "name": "Smith"}, QMark)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Convert(insertSuppliers, map[string]any{"sno": "s2", "name": "Jones"}, QMark)
	if err != nil {
		t.Fatal(err)
	}
	if a.SQL != b.SQL {
		t.Fatalf("same template expected, got %q and %q", a.SQL, b.SQL)
	}
	if reflect.DeepEqual(a.Params.List(), b.Params.List()) {
		t.Fatal("parameter values should differ")
	}
	t1, _ := c.Template(insertSuppliers, QMark)
	t2, _ := c.Template(insertSuppliers, QMark)
	if t1 != t2 {
		t.Fatal("expected the cached *Template to be returned")
	}
	if _, err := c.Template(insertSuppliers, Named); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("Len() after Reset = %d", c.Len())
	}
}

func TestConcurrentFirstBuild(t *testing.T) {
	c := New()
	const workers = 32
	var wg sync.WaitGroup
	got := make([]*Template, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = c.Template(insertSuppliers, Dollar)
		}(i)
	}
	wg.Wait()
	for i := range got {
		if errs[i] != nil {
			t.Fatal(errs[i])
		}
		if got[i] != got[0] {
			t.Fatalf("worker %d saw a different template", i)
		}
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestTemplateLayout(t *testing.T) {
	tpl, err := New().Template("a :x b :y :x", Numeric)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a ", " b ", " ", ""}; !reflect.DeepEqual(tpl.Fragments, want) {
		t.Errorf("Fragments = %q, want %q", tpl.Fragments, want)
	}
	if want := []string{"x", "y", "x"}; !reflect.DeepEqual(tpl.Refs, want) {
		t.Errorf("Refs = %v, want %v", tpl.Refs, want)
	}
	if want := []string{"x", "y"}; !reflect.DeepEqual(tpl.Binds, want) {
		t.Errorf("Binds = %v, want %v", tpl.Binds, want)
	}
	if tpl.SQL() != "a :1 b :2 :1" {
		t.Errorf("SQL() = %q", tpl.SQL())
	}
}

func TestArgs(t *testing.T) {
	src := datasource.KeyValue{"a": 1, "b": nil}
	c := New()

	st, err := c.ConvertSource("select :a, :b, :a", src, Named)
	if err != nil {
		t.Fatal(err)
	}
	want := []any{sql.Named("a", 1), sql.Named("b", nil)}
	if got := st.Params.Args(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Args() = %v, want %v", got, want)
	}

	st, err = c.ConvertSource("select :a, :b, :a", src, QMark)
	if err != nil {
		t.Fatal(err)
	}
	if got := st.Params.Args(); !reflect.DeepEqual(got, []any{1, nil, 1}) {
		t.Fatalf("Args() = %v", got)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithMetrics(NewMetrics(reg)))

	params := map[string]any{"sno": "s1", "name": "Smith"}
	for i := 0; i < 3; i++ {
		if _, err := c.Convert(insertSuppliers, params, QMark); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = c.Convert("select :nope", params, QMark)

	values := gather(t, reg)
	checks := map[string]float64{
		"sqlbind_template_cache_hits_total":   2,
		"sqlbind_template_cache_misses_total": 2,
		"sqlbind_templates_cached":            2,
		"sqlbind_conversion_failures_total":   1,
	}
	for name, want := range checks {
		if got := values[name]; got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	out := make(map[string]float64)
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			switch fam.GetType() {
			case dto.MetricType_COUNTER:
				out[fam.GetName()] += m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[fam.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	return out
}
