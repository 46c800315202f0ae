package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/StoreFront/config"
	"github.com/BearBump/StoreFront/internal/metrics"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env", "error", err.Error())
	}

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewRegistry()
	f := defaultWorkerFactories()

	w, err := newWorker(cfg, f, m)
	if err != nil {
		panic(err)
	}
	defer w.close()

	go func() {
		err := runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.Watcher.HTTPAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			poller:      w.poller,
			watches:     w.watches,
			cfg:         cfg,
			metrics:     m,
			ready:       w.ready,
		})
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker http server", "error", err.Error())
		}
	}()

	slog.Info("order watcher started", "mode", cfg.StoreFront.Mode)
	if err := w.poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
