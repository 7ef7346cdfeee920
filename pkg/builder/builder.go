// Package builder writes INSERT and UPDATE statements for a table from
// whatever fields a data object happens to carry.
//
// The table's columns and primary key come from a rowschema.Provider. Each
// column is matched to a field of the data object by exact name first and
// then case-insensitively, so a struct field "Name" fills column "name".
// An insert may leave key columns out for the database to default; an
// update must be able to identify the row, so every key column has to be
// present.
package builder

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/zoravur/sqlbind/pkg/rowschema"
	"github.com/zoravur/sqlbind/pkg/todb"
)

var (
	// ErrIncompleteData means the data object cannot produce a usable
	// statement: an update key column is missing or filtered out, or there
	// is no column left to write.
	ErrIncompleteData = errors.New("incomplete data")
	// ErrInvalidState means Including and Excluding were both used on one
	// pending statement.
	ErrInvalidState = errors.New("invalid builder state")
)

// Builder caches row schemas for its own lifetime. It is safe for
// concurrent use; the statements it hands out are not.
type Builder struct {
	provider rowschema.Provider
	conv     *todb.Converter
	style    todb.Style
	log      *zap.Logger

	mu      sync.Mutex
	schemas map[string]rowschema.RowSchema
}

type Option func(*Builder)

func WithLogger(l *zap.Logger) Option { return func(b *Builder) { b.log = l } }

// New returns a Builder that renders statements in style through conv.
func New(provider rowschema.Provider, conv *todb.Converter, style todb.Style, opts ...Option) *Builder {
	b := &Builder{
		provider: provider,
		conv:     conv,
		style:    style,
		schemas:  make(map[string]rowschema.RowSchema),
	}
	for _, o := range opts {
		o(b)
	}
	if b.log == nil {
		b.log = zap.L()
	}
	return b
}

// Schema returns the row schema of table, asking the provider only the
// first time. Failures are not cached.
func (b *Builder) Schema(ctx context.Context, table string) (rowschema.RowSchema, error) {
	b.mu.Lock()
	rs, ok := b.schemas[table]
	b.mu.Unlock()
	if ok {
		return rs, nil
	}

	rs, err := b.provider.RowSchema(ctx, table)
	if err != nil {
		return rowschema.RowSchema{}, err
	}
	b.log.Debug("row schema loaded",
		zap.String("table", table),
		zap.Strings("primary", rs.Primary),
		zap.Int("others", len(rs.Others)),
	)

	b.mu.Lock()
	b.schemas[table] = rs
	b.mu.Unlock()
	return rs, nil
}

// Forget drops the cached schema of table, e.g. after a migration.
func (b *Builder) Forget(table string) {
	b.mu.Lock()
	delete(b.schemas, table)
	b.mu.Unlock()
}

// Insert starts an insert into table.
func (b *Builder) Insert(table string) *Pending {
	return &Pending{b: b, table: table, op: opInsert}
}

// Update starts an update of one row of table.
func (b *Builder) Update(table string) *Pending {
	return &Pending{b: b, table: table, op: opUpdate}
}
