package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/StoreFront/config"
	"github.com/BearBump/StoreFront/internal/metrics"
	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/poller"
	"github.com/BearBump/StoreFront/internal/storage/pgwatch"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type readinessChecker func(ctx context.Context) error

// watchInspector: ручки для разбора, почему пользователь не получает уведомления.
type watchInspector interface {
	GetWatch(ctx context.Context, userID string) (*pgwatch.Watch, error)
	HasActiveOrders(ctx context.Context, userID string) (bool, error)
	RefreshWatch(ctx context.Context, userID string) error
	UnwatchUser(ctx context.Context, userID string) error
	ListSnapshots(ctx context.Context, f pgwatch.SnapshotFilter) ([]pgwatch.Snapshot, error)
}

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	poller  *poller.Poller
	watches watchInspector
	cfg     *config.Config
	metrics *metrics.Registry
	ready   readinessChecker
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func workerRouter(opts workerHTTPOpts) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.ready(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.poller == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "poller not wired"})
			return
		}
		writeJSON(w, http.StatusOK, opts.poller.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		if opts.cfg == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "config not wired"})
			return
		}
		// без service_token и паролей
		wc := opts.cfg.Watcher
		writeJSON(w, http.StatusOK, map[string]any{
			"mode":                opts.cfg.StoreFront.Mode,
			"catalogueBaseURL":    opts.cfg.StoreFront.CatalogueBaseURL,
			"pollIntervalSeconds": wc.PollIntervalSeconds,
			"batchSize":           wc.BatchSize,
			"concurrency":         wc.Concurrency,
			"leaseSeconds":        wc.LeaseSeconds,
			"rateLimitPerMinute":  wc.RateLimitPerMinute,
			"activeMinSeconds":    wc.ActiveMinSeconds,
			"activeMaxSeconds":    wc.ActiveMaxSeconds,
			"idleSeconds":         wc.IdleSeconds,
		})
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if opts.poller == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "poller not wired"})
			return
		}
		opts.poller.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
	})

	r.Route("/watches/{userID}", func(r chi.Router) {
		r.Get("/", opts.getWatch)
		r.Post("/refresh", opts.refreshWatch)
		r.Delete("/", opts.unwatch)
	})
	r.Get("/snapshots", opts.listSnapshots)

	if opts.metrics != nil {
		r.Handle("/metrics", opts.metrics.Handler())
	}

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	return r
}

func (o workerHTTPOpts) watchesWired(w http.ResponseWriter) bool {
	if o.watches == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "watch storage not wired"})
		return false
	}
	return true
}

func (o workerHTTPOpts) getWatch(w http.ResponseWriter, r *http.Request) {
	if !o.watchesWired(w) {
		return
	}
	userID := chi.URLParam(r, "userID")
	wt, err := o.watches.GetWatch(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if wt == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user is not watched"})
		return
	}
	active, err := o.watches.HasActiveOrders(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"watch": wt, "hasActiveOrders": active})
}

// refreshWatch ставит проверку пользователя на "сейчас" и будит цикл.
func (o workerHTTPOpts) refreshWatch(w http.ResponseWriter, r *http.Request) {
	if !o.watchesWired(w) {
		return
	}
	if err := o.watches.RefreshWatch(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if o.poller != nil {
		o.poller.Trigger()
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"refreshed": true})
}

func (o workerHTTPOpts) unwatch(w http.ResponseWriter, r *http.Request) {
	if !o.watchesWired(w) {
		return
	}
	if err := o.watches.UnwatchUser(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listSnapshots: ?user_id=&status=SHIPPED,PENDING&since=RFC3339&limit=&offset=
func (o workerHTTPOpts) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if !o.watchesWired(w) {
		return
	}
	q := r.URL.Query()
	f := pgwatch.SnapshotFilter{UserID: q.Get("user_id")}
	if st := q.Get("status"); st != "" {
		for _, x := range strings.Split(st, ",") {
			if x = strings.ToUpper(strings.TrimSpace(x)); x != "" {
				f.Statuses = append(f.Statuses, models.OrderStatus(x))
			}
		}
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		f.Since = &t
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a number"})
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offset must be a number"})
		return
	}

	snaps, err := o.watches.ListSnapshots(r.Context(), f)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8090"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("worker swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: workerRouter(opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
