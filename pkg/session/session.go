// Package session puts :name parameters in front of a database/sql pool.
//
// A Session knows the placeholder style and primary-key catalog of the
// driver it was opened with, so callers write every query the same way and
// can build inserts and updates straight from maps or structs:
//
//	s, _ := session.Open("sqlite3", "file:app.db")
//	s.Exec(ctx, "delete from suppliers where city = :city", map[string]any{"city": "Paris"})
//	s.InsertInto("suppliers").FromSource(ctx, supplier)
//
// Pooling and transactions stay with database/sql.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zoravur/sqlbind/internal/logutil"
	"github.com/zoravur/sqlbind/pkg/builder"
	"github.com/zoravur/sqlbind/pkg/datasource"
	"github.com/zoravur/sqlbind/pkg/rowschema"
	"github.com/zoravur/sqlbind/pkg/todb"
)

// ErrRejected wraps the validator's verdict on a converted statement.
var ErrRejected = errors.New("rejected statement")

type config struct {
	log      *zap.Logger
	style    *todb.Style
	provider rowschema.Provider
	conv     *todb.Converter
	validate func(string) error
}

type Option func(*config)

func WithLogger(l *zap.Logger) Option           { return func(c *config) { c.log = l } }
func WithConverter(conv *todb.Converter) Option { return func(c *config) { c.conv = conv } }

// WithStyle overrides the dialect's placeholder style, for drivers that
// accept more than one.
func WithStyle(s todb.Style) Option { return func(c *config) { c.style = &s } }

// WithProvider replaces the dialect's row schema provider.
func WithProvider(p rowschema.Provider) Option { return func(c *config) { c.provider = p } }

// WithValidator checks every converted query before it reaches the driver.
func WithValidator(fn func(sql string) error) Option {
	return func(c *config) { c.validate = fn }
}

// Session is safe for concurrent use.
type Session struct {
	db       *sql.DB
	driver   string
	dialect  Dialect
	style    todb.Style
	conv     *todb.Converter
	build    *builder.Builder
	log      *zap.Logger
	validate func(string) error
}

// Open opens a pool with sql.Open and wraps it.
func Open(driverName, dsn string, opts ...Option) (*Session, error) {
	if _, err := DialectFor(driverName); err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	s, err := Wrap(db, driverName, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Wrap builds a session around an existing pool. driverName selects the
// dialect and must be the name the pool was opened with.
func Wrap(db *sql.DB, driverName string, opts ...Option) (*Session, error) {
	d, err := DialectFor(driverName)
	if err != nil {
		return nil, err
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	s := &Session{
		db:       db,
		driver:   driverName,
		dialect:  d,
		style:    d.Style,
		conv:     cfg.conv,
		log:      cfg.log,
		validate: cfg.validate,
	}
	if cfg.style != nil {
		s.style = *cfg.style
	}
	if s.log == nil {
		s.log = zap.L()
	}
	if s.conv == nil {
		s.conv = todb.New(todb.WithLogger(s.log))
	}
	provider := cfg.provider
	if provider == nil {
		provider = d.RowSchema(s)
	}
	s.build = builder.New(provider, s.conv, s.style, builder.WithLogger(s.log))

	s.log.Debug("session ready", logutil.Values(
		zap.String("driver", driverName),
		zap.String("dialect", d.Name),
		zap.Stringer("style", s.style),
	))
	return s, nil
}

func (s *Session) DB() *sql.DB                { return s.db }
func (s *Session) Dialect() Dialect           { return s.dialect }
func (s *Session) Style() todb.Style          { return s.style }
func (s *Session) Converter() *todb.Converter { return s.conv }
func (s *Session) Builder() *builder.Builder  { return s.build }
func (s *Session) Close() error               { return s.db.Close() }

// Convert rewrites query for this session's driver without running it.
func (s *Session) Convert(query string, params any) (todb.Statement, error) {
	st, err := s.conv.Convert(query, params, s.style)
	if err != nil {
		return todb.Statement{}, err
	}
	if err := s.check(st); err != nil {
		return todb.Statement{}, err
	}
	return st, nil
}

func (s *Session) check(st todb.Statement) error {
	if s.validate == nil {
		return nil
	}
	if err := s.validate(st.SQL); err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return nil
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, query string, params any) (sql.Result, error) {
	st, err := s.Convert(query, params)
	if err != nil {
		return nil, err
	}
	return s.exec(ctx, st)
}

// ExecStatement runs a statement that was already converted for this
// session, for example one returned by Pending.Statement.
func (s *Session) ExecStatement(ctx context.Context, st todb.Statement) (sql.Result, error) {
	if err := s.check(st); err != nil {
		return nil, err
	}
	return s.exec(ctx, st)
}

func (s *Session) exec(ctx context.Context, st todb.Statement) (sql.Result, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, st.SQL, st.Params.Args()...)
	s.log.Debug("exec", logutil.Statement(st), zap.Duration("took", time.Since(start)), zap.Error(err))
	return res, err
}

// Query runs a statement that returns rows. It also makes a Session a
// rowschema.Querier.
func (s *Session) Query(ctx context.Context, query string, params any) (*sql.Rows, error) {
	st, err := s.Convert(query, params)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, st.SQL, st.Params.Args()...)
	s.log.Debug("query", logutil.Statement(st), zap.Duration("took", time.Since(start)), zap.Error(err))
	return rows, err
}

// ExecMany runs query once per element of seq through a single prepared
// statement and returns the total rows affected. Every element is
// converted before anything is executed, so a missing parameter anywhere
// sends nothing.
func (s *Session) ExecMany(ctx context.Context, query string, seq []any) (int64, error) {
	if len(seq) == 0 {
		return 0, nil
	}
	tpl, err := s.conv.Template(query, s.style)
	if err != nil {
		return 0, err
	}
	if err := s.check(todb.Statement{SQL: tpl.SQL()}); err != nil {
		return 0, err
	}
	args := make([][]any, len(seq))
	for i, params := range seq {
		src, err := datasource.Of(params)
		if err != nil {
			return 0, fmt.Errorf("element %d: %w", i, err)
		}
		p, err := tpl.Bind(src)
		if err != nil {
			return 0, fmt.Errorf("element %d: %w", i, err)
		}
		args[i] = p.Args()
	}

	stmt, err := s.db.PrepareContext(ctx, tpl.SQL())
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var total int64
	for i, a := range args {
		res, err := stmt.ExecContext(ctx, a...)
		if err != nil {
			return total, fmt.Errorf("element %d: %w", i, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	s.log.Debug("exec many", zap.String("sql", tpl.SQL()), zap.Int("count", len(seq)), zap.Int64("affected", total))
	return total, nil
}

// InsertInto starts an insert into table.
func (s *Session) InsertInto(table string) *Pending {
	return &Pending{s: s, p: s.build.Insert(table)}
}

// Update starts an update of one row of table, identified by its primary
// key.
func (s *Session) Update(table string) *Pending {
	return &Pending{s: s, p: s.build.Update(table)}
}

// Pending is a builder statement that executes against its session.
type Pending struct {
	s *Session
	p *builder.Pending
}

func (p *Pending) Including(columns ...string) *Pending {
	p.p.Including(columns...)
	return p
}

func (p *Pending) Excluding(columns ...string) *Pending {
	p.p.Excluding(columns...)
	return p
}

func (p *Pending) Err() error { return p.p.Err() }

// Statement builds and converts the statement without running it.
func (p *Pending) Statement(ctx context.Context, data any) (todb.Statement, error) {
	st, err := p.p.FromSource(ctx, data)
	if err != nil {
		return todb.Statement{}, err
	}
	if err := p.s.check(st); err != nil {
		return todb.Statement{}, err
	}
	return st, nil
}

// FromSource builds the statement from data and executes it.
func (p *Pending) FromSource(ctx context.Context, data any) (sql.Result, error) {
	st, err := p.Statement(ctx, data)
	if err != nil {
		return nil, err
	}
	return p.s.exec(ctx, st)
}
