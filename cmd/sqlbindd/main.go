// Command sqlbindd serves the sqlbind HTTP API in front of one database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/zoravur/sqlbind/internal/app"
	"github.com/zoravur/sqlbind/pkg/session"
)

func env(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func main() {
	configFile := flag.String("config", env("SQLBIND_CONFIG", ""), "Path to YAML config file (env: SQLBIND_CONFIG)")
	addr := flag.String("addr", "", "Address to listen on (env: SQLBIND_ADDR)")
	driver := flag.String("driver", "", fmt.Sprintf("database/sql driver, one of %v (env: SQLBIND_DRIVER)", session.Drivers()))
	dsn := flag.String("dsn", "", "Data source name (env: SQLBIND_DSN)")
	style := flag.String("style", "", "Override the driver's placeholder style (env: SQLBIND_STYLE)")
	check := flag.Bool("check", false, "Parse every statement with the Postgres parser before sending it (env: SQLBIND_CHECK)")
	dev := flag.Bool("dev", false, "Human-readable development logging")
	flag.Parse()

	cfg, err := app.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "driver":
			cfg.Driver = *driver
		case "dsn":
			cfg.DSN = *dsn
		case "style":
			cfg.Style = *style
		case "check":
			cfg.Check = *check
		case "dev":
			cfg.Dev = *dev
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	srv, err := app.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("server setup failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg app.Config) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
