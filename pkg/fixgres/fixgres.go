// Package fixgres runs one throwaway Postgres container per test binary and
// hands each test its own schema in it.
//
//	func TestMain(m *testing.M) {
//		if err := fixgres.BootOnce(context.Background(), fixgres.WithMigrations(migrations)); err != nil {
//			log.Fatal(err)
//		}
//		code := m.Run()
//		_ = fixgres.ShutdownNow()
//		os.Exit(code)
//	}
package fixgres

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type config struct {
	image      string
	dbName     string
	user       string
	password   string
	migrations fs.FS
	randomSeed int64
}

type Option func(*config)

func WithImage(i string) Option    { return func(c *config) { c.image = i } }
func WithDBName(n string) Option   { return func(c *config) { c.dbName = n } }
func WithUser(u string) Option     { return func(c *config) { c.user = u } }
func WithPassword(p string) Option { return func(c *config) { c.password = p } }
func WithSeed(s int64) Option      { return func(c *config) { c.randomSeed = s } }

// WithMigrations makes every sandbox run the goose migrations in migFS
// inside its own schema before the test gets it.
func WithMigrations(migFS fs.FS) Option {
	return func(c *config) { c.migrations = migFS }
}

var (
	mu         sync.Mutex
	pg         *postgres.PostgresContainer
	connString string
	booted     *config
)

// BootOnce starts the container the first time it is called; later calls
// return the first call's error. ctx bounds the startup only.
func BootOnce(ctx context.Context, opts ...Option) error {
	mu.Lock()
	defer mu.Unlock()
	if booted != nil {
		if pg == nil {
			return fmt.Errorf("fixgres: earlier boot failed")
		}
		return nil
	}

	c := &config{
		image:    "docker.io/postgres:16-alpine",
		dbName:   "app",
		user:     "postgres",
		password: "pass",
	}
	for _, o := range opts {
		o(c)
	}
	if c.randomSeed == 0 {
		c.randomSeed = randomSeed()
	}
	booted = c

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	container, err := postgres.Run(ctx,
		c.image,
		postgres.WithDatabase(c.dbName),
		postgres.WithUsername(c.user),
		postgres.WithPassword(c.password),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return fmt.Errorf("fixgres: start container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(context.Background())
		return fmt.Errorf("fixgres: connection string: %w", err)
	}
	pg, connString = container, dsn
	return nil
}

// ConnString is the admin DSN of the booted container.
func ConnString() string {
	mu.Lock()
	defer mu.Unlock()
	return connString
}

func ShutdownNow() error {
	mu.Lock()
	defer mu.Unlock()
	if pg == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := pg.Terminate(ctx)
	pg = nil
	return err
}
