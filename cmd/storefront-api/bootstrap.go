package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/StoreFront/config"
	"github.com/BearBump/StoreFront/internal/broker/kafka"
	"github.com/BearBump/StoreFront/internal/broker/messages"
	"github.com/BearBump/StoreFront/internal/cache/rediscache"
	"github.com/BearBump/StoreFront/internal/integrations/shop"
	"github.com/BearBump/StoreFront/internal/integrations/shop/demo"
	"github.com/BearBump/StoreFront/internal/integrations/shop/shophttp"
	"github.com/BearBump/StoreFront/internal/metrics"
	"github.com/BearBump/StoreFront/internal/services/storefront"
	"github.com/BearBump/StoreFront/internal/session"
	"github.com/BearBump/StoreFront/internal/storage/pgwatch"
	"github.com/joho/godotenv"
)

type storeFrontApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     storeFrontOpts
	svc      *storefront.Service
	metrics  *metrics.Registry
	consumer *kafka.Consumer
	closers  []func()
}

func mustBootstrapStoreFront() *storeFrontApp {
	// .env опционален: в контейнере переменные приходят снаружи.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env", "error", err.Error())
	}

	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	opts := storeFrontOptsFromConfig(cfg)
	opts.swaggerPath = swaggerPath

	m := metrics.NewRegistry()
	rc := rediscache.New(cfg.Redis.Addr())
	app := &storeFrontApp{metrics: m}
	app.closers = append(app.closers, func() { _ = rc.Close() })

	sessions := session.NewStore(rc, config.Seconds(cfg.StoreFront.SessionTTLSeconds))

	var watcher storefront.Watcher
	if cfg.Database.Host != "" {
		st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
		app.closers = append(app.closers, st.Close)
		watcher = st
	} else {
		slog.Warn("database is not configured, order watching disabled")
	}

	app.svc = storefront.New(newBackends(cfg, m), sessions, rc, watcher, m, storefront.Options{
		Currency:   cfg.StoreFront.Currency,
		HistoryTTL: config.Seconds(cfg.StoreFront.HistoryCacheTTLSeconds),
	})

	app.consumer = kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers(),
		Topic:   opts.topic,
		GroupID: opts.consumerGroup,
	})
	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = opts
	return app
}

func storeFrontOptsFromConfig(cfg *config.Config) storeFrontOpts {
	httpAddr := cfg.StoreFront.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.StoreFront.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "storefront-api"
	}
	topic := cfg.Kafka.OrderStatusChangedTopicName
	if topic == "" {
		topic = messages.TopicOrderStatusChanged
	}
	idle := config.Seconds(cfg.StoreFront.ViewsIdleTTLSeconds)
	if idle <= 0 {
		idle = time.Hour
	}
	return storeFrontOpts{
		httpAddr:       httpAddr,
		allowedOrigins: cfg.StoreFront.CORSAllowedOrigins,
		topic:          topic,
		consumerGroup:  consumerGroup,
		viewsIdleTTL:   idle,
	}
}

// newBackends: демо-режим включается только явно, живой режим никогда не подменяет данные.
func newBackends(cfg *config.Config, m *metrics.Registry) shop.Backends {
	if cfg.StoreFront.Mode == config.ModeDemo {
		slog.Warn("storefront runs in demo mode, backends are seeded in memory")
		return demo.New().Backends()
	}
	obs := m.ObserveBackend
	sf := cfg.StoreFront
	return shop.Backends{
		Auth:      shophttp.NewAuthClient(sf.AuthBaseURL, config.Seconds(sf.AuthTimeoutSeconds), obs),
		Catalogue: shophttp.NewCatalogueClient(sf.CatalogueBaseURL, config.Seconds(sf.CatalogueTimeoutSeconds), obs),
		Orders:    shophttp.NewOrderClient(sf.OrdersBaseURL, config.Seconds(sf.OrdersTimeoutSeconds), obs),
		Reviews:   shophttp.NewReviewClient(sf.ReviewsBaseURL, config.Seconds(sf.ReviewsTimeoutSeconds), obs),
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgwatch.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgwatch.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *storeFrontApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *storeFrontApp) Run() error {
	return runStoreFrontAPI(a.ctx, a.opts, a.svc, a.metrics, a.consumer)
}
