package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/zoravur/sqlbind/internal/api"
	"github.com/zoravur/sqlbind/internal/pgcheck"
	"github.com/zoravur/sqlbind/pkg/session"
	"github.com/zoravur/sqlbind/pkg/todb"
)

type Server struct {
	httpServer *http.Server
	Session    *session.Session
	Registry   *prometheus.Registry
	log        *zap.Logger
	timeout    time.Duration
}

// NewServer opens the configured database and wires the routes. cfg must
// have passed Validate.
func NewServer(cfg Config, log *zap.Logger) (*Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []session.Option{
		session.WithLogger(log),
		session.WithConverter(todb.New(todb.WithMetrics(todb.NewMetrics(reg)), todb.WithLogger(log))),
	}
	style, err := cfg.ParsedStyle()
	if err != nil {
		return nil, err
	}
	if style != nil {
		opts = append(opts, session.WithStyle(*style))
	}
	if cfg.Check {
		opts = append(opts, session.WithValidator(pgcheck.Validate))
	}

	s, err := session.Open(cfg.Driver, cfg.DSN, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Check && s.Style() != todb.Dollar {
		s.Close()
		return nil, fmt.Errorf("check needs the dollar style, %s uses %s", cfg.Driver, s.Style())
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		s.Close()
		return nil, err
	}

	mux := api.SetupRoutes(api.Deps{Session: s, Gatherer: reg, Log: log})
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		Session:  s,
		Registry: reg,
		log:      log,
		timeout:  timeout,
	}, nil
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully and closes
// the database.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.Session.Close()
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Session.Close()

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", ln.Addr().String()))
		errc <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
