// Package todb rewrites queries written with :name parameters into the
// placeholder style a driver expects, and builds the matching parameter
// container.
//
// Tokenizing happens once per distinct (query, style) pair; the result is
// kept in a cache owned by the Converter. The cache is never evicted on its
// own. Long-running processes that convert unbounded sets of ad hoc queries
// should watch Len and call Reset.
package todb

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/zoravur/sqlbind/pkg/datasource"
	"github.com/zoravur/sqlbind/pkg/sqllex"
)

var ErrMissingParameter = errors.New("missing parameter")

type cacheKey struct {
	sql   string
	style Style
}

// Converter is safe for concurrent use.
type Converter struct {
	mu    sync.RWMutex
	cache map[cacheKey]*Template

	metrics *Metrics
	log     *zap.Logger
}

type Option func(*Converter)

func WithMetrics(m *Metrics) Option   { return func(c *Converter) { c.metrics = m } }
func WithLogger(l *zap.Logger) Option { return func(c *Converter) { c.log = l } }

func New(opts ...Option) *Converter {
	c := &Converter{cache: make(map[cacheKey]*Template)}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.L()
	}
	return c
}

// Template returns the cached layout of sql for style, building it on first
// use. Concurrent first uses may both tokenize; the first to store wins and
// every caller gets that one.
func (c *Converter) Template(sql string, style Style) (*Template, error) {
	if !style.valid() {
		c.metrics.failed("style")
		return nil, fmt.Errorf("%w: %d", ErrUnknownStyle, int(style))
	}
	key := cacheKey{sql, style}

	c.mu.RLock()
	t, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		c.metrics.hit()
		return t, nil
	}

	c.metrics.miss()
	built, err := buildTemplate(sql, style)
	if err != nil {
		c.metrics.failed("lex")
		return nil, err
	}

	c.mu.Lock()
	if t, ok = c.cache[key]; !ok {
		t = built
		c.cache[key] = t
	}
	n := len(c.cache)
	c.mu.Unlock()

	c.metrics.cached(n)
	c.log.Debug("template cached",
		zap.Stringer("style", style),
		zap.Int("refs", len(t.Refs)),
		zap.Int("cached", n),
	)
	return t, nil
}

// Convert rewrites sql into style and resolves its parameters from params,
// which may be anything datasource.Of accepts.
func (c *Converter) Convert(sql string, params any, style Style) (Statement, error) {
	src, err := datasource.Of(params)
	if err != nil {
		c.metrics.failed("source")
		return Statement{}, err
	}
	return c.ConvertSource(sql, src, style)
}

// ConvertSource is Convert for an already adapted source.
func (c *Converter) ConvertSource(sql string, src datasource.Source, style Style) (Statement, error) {
	t, err := c.Template(sql, style)
	if err != nil {
		return Statement{}, err
	}
	p, err := t.Bind(src)
	if err != nil {
		c.metrics.failed("missing_parameter")
		return Statement{}, err
	}
	return Statement{SQL: t.SQL(), Params: p}, nil
}

// Len reports how many templates are cached.
func (c *Converter) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Reset drops every cached template.
func (c *Converter) Reset() {
	c.mu.Lock()
	c.cache = make(map[cacheKey]*Template)
	c.mu.Unlock()
	c.metrics.cached(0)
}

// IsLexError reports whether err came from tokenizing the query.
func IsLexError(err error) bool {
	var le *sqllex.LexError
	return errors.As(err, &le)
}
