package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"dvrp/internal/config"
	"dvrp/internal/scenario"
	"dvrp/internal/store"
)

type Server struct {
	Store    store.Store
	Broker   EventBroker
	Logger   *slog.Logger
	Cfg      config.Config
	Scenario scenario.Record

	limiter *rate.Limiter

	// async optimizer runs are bound to ctx and tracked by runs
	ctx    context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup
}

// NewServer creates a Server. If no database URL is configured it uses the
// in-memory store; without a Redis URL events stay in process.
func NewServer(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var s store.Store
	if dsn := strings.TrimSpace(cfg.Server.DatabaseURL); dsn == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, fmt.Errorf("api: postgres: %w", err)
		}
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.Migrate(context.Background()); err != nil {
				return nil, fmt.Errorf("api: %w", err)
			}
		}
		s = sp
	}

	var broker EventBroker
	if cfg.Server.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.Server.RedisURL)
		if err != nil {
			logger.Warn("redis broker unavailable, using in-memory broker", "error", err)
			broker = NewBroker()
		} else {
			broker = rb
		}
	} else {
		broker = NewBroker()
	}

	rec := scenario.ReferenceRecord()
	if cfg.Server.ScenarioPath != "" {
		r, err := scenario.LoadFile(cfg.Server.ScenarioPath)
		if err != nil {
			return nil, fmt.Errorf("api: %w", err)
		}
		rec = r
	}
	if _, err := rec.Build(); err != nil {
		return nil, fmt.Errorf("api: default scenario: %w", err)
	}

	srv := &Server{Store: s, Broker: broker, Logger: logger, Cfg: cfg, Scenario: rec}
	if cfg.Server.RateRPS > 0 {
		burst := cfg.Server.RateBurst
		if burst <= 0 {
			burst = int(cfg.Server.RateRPS) + 1
		}
		srv.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateRPS), burst)
	}
	srv.ctx, srv.cancel = context.WithCancel(context.Background())
	return srv, nil
}

// Shutdown cancels running optimizations and waits for them to record their
// final state, or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c, ok := s.Broker.(io.Closer); ok {
		_ = c.Close()
	}
	if c, ok := s.Store.(io.Closer); ok {
		_ = c.Close()
	}
	return nil
}
