package main

import (
	"context"
	"log/slog"

	"github.com/BearBump/StoreFront/config"
	"github.com/BearBump/StoreFront/internal/broker/kafka"
	"github.com/BearBump/StoreFront/internal/broker/messages"
	"github.com/BearBump/StoreFront/internal/cache/rediscache"
	"github.com/BearBump/StoreFront/internal/integrations/shop"
	"github.com/BearBump/StoreFront/internal/integrations/shop/demo"
	"github.com/BearBump/StoreFront/internal/integrations/shop/shophttp"
	"github.com/BearBump/StoreFront/internal/metrics"
	"github.com/BearBump/StoreFront/internal/services/poller"
	"github.com/BearBump/StoreFront/internal/storage/pgwatch"
)

type workerFactories struct {
	newStorage         func(cfg *config.Config) (repo poller.Repository, closeFn func(), err error)
	newProducer        func(cfg *config.Config) poller.Producer
	newRateLimiter     func(cfg *config.Config) poller.RateLimiter
	newCatalogueClient func(cfg *config.Config, m *metrics.Registry) shop.CatalogueClient
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (poller.Repository, func(), error) {
			st, err := pgwatch.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) poller.Producer {
			return kafka.NewProducer(cfg.Kafka.Brokers())
		},
		newRateLimiter: func(cfg *config.Config) poller.RateLimiter {
			return rediscache.NewRateLimiter(cfg.Redis.Addr())
		},
		newCatalogueClient: func(cfg *config.Config, m *metrics.Registry) shop.CatalogueClient {
			if cfg.StoreFront.Mode == config.ModeDemo {
				return demo.New()
			}
			return shophttp.NewCatalogueClient(
				cfg.StoreFront.CatalogueBaseURL,
				config.Seconds(cfg.StoreFront.CatalogueTimeoutSeconds),
				m.ObserveBackend,
			)
		},
	}
}

func plannerConfig(cfg *config.Config) poller.PlannerConfig {
	w := cfg.Watcher
	return poller.PlannerConfig{
		ActiveMinDelay: config.Seconds(w.ActiveMinSeconds),
		ActiveMaxDelay: config.Seconds(w.ActiveMaxSeconds),
		IdleDelay:      config.Seconds(w.IdleSeconds),
		Backoff1:       config.Seconds(w.Backoff1Seconds),
		Backoff2:       config.Seconds(w.Backoff2Seconds),
		Backoff3:       config.Seconds(w.Backoff3Seconds),
		Backoff4:       config.Seconds(w.Backoff4Seconds),
	}
}

// worker: собранный воркер и то, что нужно его HTTP-поверхности.
type worker struct {
	poller  *poller.Poller
	ready   readinessChecker
	watches watchInspector
	close   func()
}

// newWorker собирает воркер; нулевые значения из конфига заменяются дефолтами внутри poller.
// readiness и инспекция наблюдений берутся из хранилища, если оно это умеет.
func newWorker(cfg *config.Config, f workerFactories, m *metrics.Registry) (*worker, error) {
	topic := cfg.Kafka.OrderStatusChangedTopicName
	if topic == "" {
		topic = messages.TopicOrderStatusChanged
	}
	if cfg.Watcher.ServiceToken == "" && cfg.StoreFront.Mode != config.ModeDemo {
		slog.Warn("watcher service token is empty, catalogue will likely reject requests")
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return nil, err
	}
	w := &worker{}
	if pinger, ok := repo.(interface{ Ping(context.Context) error }); ok {
		w.ready = pinger.Ping
	}
	if wi, ok := repo.(watchInspector); ok {
		w.watches = wi
	}

	producer, rl := f.newProducer(cfg), f.newRateLimiter(cfg)
	w.close = func() {
		for _, c := range []any{producer, rl} {
			if cl, ok := c.(interface{ Close() error }); ok {
				_ = cl.Close()
			}
		}
		if closeFn != nil {
			closeFn()
		}
	}

	w.poller = poller.New(repo, f.newCatalogueClient(cfg, m), cfg.Watcher.ServiceToken, producer, rl, topic).
		WithSettings(
			config.Seconds(cfg.Watcher.PollIntervalSeconds),
			cfg.Watcher.BatchSize,
			cfg.Watcher.Concurrency,
			config.Seconds(cfg.Watcher.LeaseSeconds),
			int64(cfg.Watcher.RateLimitPerMinute),
		).
		WithPlanner(plannerConfig(cfg)).
		WithMetrics(m)
	return w, nil
}
