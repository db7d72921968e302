package api

import (
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"fleetroute/internal/config"
	"fleetroute/internal/model"
	"fleetroute/internal/runs"
	"fleetroute/internal/store"
	"fleetroute/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Broker EventBroker
	Runner *runs.Runner
	Config config.Config
	Log    logrus.FieldLogger

	closers []io.Closer
}

// NewServer wires the store, broker and runner from cfg. Without
// DATABASE_URL runs are kept in memory; without REDIS_URL events stay in
// process.
func NewServer(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Server, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{Config: cfg, Log: log}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s.Store = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
		}
		s.Store = pg
		s.closers = append(s.closers, pg)
	}

	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL, log)
		if err != nil {
			log.WithError(err).Warn("redis broker unavailable, using in-process broker")
			s.Broker = NewBroker()
		} else {
			s.Broker = rb
			s.closers = append(s.closers, rb)
		}
	} else {
		s.Broker = NewBroker()
	}

	pub := fanout{s.Broker}
	if cfg.WebhookURL != "" {
		n := webhooks.NewNotifier(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookMaxAttempts, log)
		n.Start()
		pub = append(pub, n)
		s.closers = append(s.closers, n)
	}

	s.Runner = runs.NewRunner(s.Store, pub, cfg.MaxConcurrentRuns, cfg.Search, log)
	return s, nil
}

// fanout hands every run event to each publisher in turn.
type fanout []runs.Publisher

func (f fanout) Publish(runID string, evt model.Event) {
	for _, p := range f {
		p.Publish(runID, evt)
	}
}

// Close waits for background runs, then releases the store and broker.
func (s *Server) Close() error {
	s.Runner.Wait()
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
