package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	storefrontapi "github.com/BearBump/StoreFront/internal/api/storefront_api"
	"github.com/BearBump/StoreFront/internal/broker/kafka"
	"github.com/BearBump/StoreFront/internal/broker/messages"
	"github.com/BearBump/StoreFront/internal/metrics"
	"github.com/BearBump/StoreFront/internal/services/storefront"
)

type storeFrontOpts struct {
	httpAddr       string
	swaggerPath    string
	allowedOrigins []string

	topic         string
	consumerGroup string

	// Состояние сессий без запросов дольше viewsIdleTTL выбрасывается из памяти.
	viewsIdleTTL time.Duration

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handle kafka.StatusChangeHandler) error
}

func runStoreFrontAPI(ctx context.Context, opts storeFrontOpts, svc *storefront.Service, m *metrics.Registry, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	api := storefrontapi.New(svc, m)
	srv := &http.Server{
		Handler: api.Routes(storefrontapi.Options{
			AllowedOrigins: opts.allowedOrigins,
			SwaggerPath:    opts.swaggerPath,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	httpErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", lis.Addr().String())
		httpErr <- srv.Serve(lis)
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			if err := consumer.Consume(ctx, invalidationHandler(svc)); err != nil && ctx.Err() == nil {
				slog.Error("kafka consumer stopped", "error", err.Error())
			}
		}()
	}

	if opts.viewsIdleTTL > 0 {
		go pruneViews(ctx, svc.Views(), opts.viewsIdleTTL)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

// invalidationHandler сбрасывает кеш истории пользователя, у которого сменился статус заказа.
func invalidationHandler(svc *storefront.Service) kafka.StatusChangeHandler {
	return func(ctx context.Context, m messages.OrderStatusChanged) error {
		slog.Info("order status changed", "user_id", m.UserID, "order", m.OrderNumber, "status", m.NewStatus)
		return svc.InvalidateHistory(ctx, m.UserID)
	}
}

func pruneViews(ctx context.Context, v *storefront.Views, ttl time.Duration) {
	interval := ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := v.Prune(now.Add(-ttl)); n > 0 {
				slog.Info("pruned idle session views", "count", n, "left", v.Len())
			}
		}
	}
}
