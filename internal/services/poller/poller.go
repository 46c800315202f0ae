package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/StoreFront/internal/broker/messages"
	"github.com/BearBump/StoreFront/internal/integrations/shop"
	"github.com/BearBump/StoreFront/internal/metrics"
	"github.com/BearBump/StoreFront/internal/services/history"
	"github.com/BearBump/StoreFront/internal/storage/pgwatch"
	"github.com/pkg/errors"
)

// ErrRateLimited: проверка отложена, лиз отпустит запись сам.
var ErrRateLimited = errors.New("catalogue rate limit exceeded")

type Repository interface {
	ClaimDueWatches(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*pgwatch.Watch, error)
	ApplyCheck(ctx context.Context, res pgwatch.CheckResult) ([]pgwatch.StatusChange, error)
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type RateLimiter interface {
	AllowBackendCall(ctx context.Context, backend string, perMinute int64, now time.Time) (bool, int64, error)
}

type Poller struct {
	repo      Repository
	catalogue shop.CatalogueClient
	token     string
	producer  Producer
	rl        RateLimiter
	metrics   *metrics.Registry

	topic string

	planner *Planner
	now     func() time.Time

	pollInterval       time.Duration
	batchSize          int
	concurrency        int
	lease              time.Duration
	rateLimitPerMinute int64
	publishAttempts    int

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	totalChanges        atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

// New: serviceToken это токен сервисной учётки, которой воркер читает чужие истории.
func New(repo Repository, catalogue shop.CatalogueClient, serviceToken string, producer Producer, rl RateLimiter, topic string) *Poller {
	return &Poller{
		repo: repo, catalogue: catalogue, token: serviceToken, producer: producer, rl: rl, topic: topic,
		planner:            NewPlanner(DefaultPlannerConfig(), nil),
		now:                time.Now,
		pollInterval:       5 * time.Second,
		batchSize:          50,
		concurrency:        5,
		lease:              120 * time.Second,
		rateLimitPerMinute: 60,
		publishAttempts:    10,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	if lease > 0 {
		p.lease = lease
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg, nil)
	return p
}

func (p *Poller) WithMetrics(m *metrics.Registry) *Poller {
	p.metrics = m
	return p
}

// Trigger запускает внеочередной цикл; если один уже ждёт, второй не копится.
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	TotalChanges   int64      `json:"totalChanges"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalClaimed:   p.totalClaimed.Load(),
		TotalProcessed: p.totalProcessed.Load(),
		TotalErrors:    p.totalErrors.Load(),
		TotalChanges:   p.totalChanges.Load(),
		InFlight:       p.inFlight.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}

func (p *Poller) runOnce(ctx context.Context) {
	now := p.now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	items, err := p.repo.ClaimDueWatches(ctx, now, p.batchSize, p.lease)
	if err != nil {
		slog.Error("claim due watches", "error", err.Error())
		p.setLastError(err)
		return
	}
	p.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, w := range items {
		sem <- struct{}{}
		wg.Add(1)
		p.inFlight.Add(1)
		go func(w *pgwatch.Watch) {
			defer func() {
				p.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			err := p.processOne(ctx, w)
			switch {
			case errors.Is(err, ErrRateLimited):
				slog.Warn("watch check deferred", "user_id", w.UserID)
			case err != nil:
				p.totalErrors.Add(1)
				p.setLastError(err)
				slog.Error("process watch", "user_id", w.UserID, "error", err.Error())
			}
			p.totalProcessed.Add(1)
		}(w)
	}
	wg.Wait()
}

func (p *Poller) observeCheck(result string) {
	if p.metrics != nil {
		p.metrics.WatcherChecks.WithLabelValues(result).Inc()
	}
}

func (p *Poller) allow(ctx context.Context, now time.Time) error {
	if p.rl == nil || p.rateLimitPerMinute <= 0 {
		return nil
	}
	allowed, n, err := p.rl.AllowBackendCall(ctx, "catalogue", p.rateLimitPerMinute, now)
	if err != nil {
		return errors.Wrap(err, "rate limit")
	}
	if !allowed {
		slog.Warn("rate limit exceeded", "backend", "catalogue", "count", n)
		p.observeCheck("rate_limited")
		return ErrRateLimited
	}
	return nil
}

func (p *Poller) processOne(ctx context.Context, w *pgwatch.Watch) error {
	now := p.now().UTC()
	if err := p.allow(ctx, now); err != nil {
		return err
	}

	res := pgwatch.CheckResult{UserID: w.UserID, CheckedAt: now}

	raw, err := p.catalogue.GetUserOrderHistory(ctx, p.token, w.UserID)
	if err != nil {
		e := err.Error()
		res.Error = &e
		res.NextCheckAt = now.Add(p.planner.BackoffDelay(w.CheckFailCount + 1))
		p.observeCheck("failed")
		if _, aerr := p.repo.ApplyCheck(ctx, res); aerr != nil {
			return errors.Wrap(aerr, "apply failed check")
		}
		return errors.Wrap(err, "fetch history")
	}

	res.Orders = history.Normalize(raw)
	res.NextCheckAt = now.Add(p.planner.NextCheckDelay(res.Orders))

	changes, err := p.repo.ApplyCheck(ctx, res)
	if err != nil {
		return errors.Wrap(err, "apply check")
	}
	p.observeCheck("ok")

	for _, ch := range changes {
		msg := messages.OrderStatusChanged{
			UserID:      ch.UserID,
			OrderNumber: ch.OrderNumber,
			OldStatus:   string(ch.OldStatus),
			NewStatus:   string(ch.NewStatus),
			TotalAmount: ch.TotalAmount,
			OrderDate:   ch.OrderDate,
			DetectedAt:  now,
		}
		if err := p.publish(ctx, msg); err != nil {
			if p.metrics != nil {
				p.metrics.PublishFailures.Inc()
			}
			return err
		}
		p.totalChanges.Add(1)
		if p.metrics != nil {
			p.metrics.StatusChanges.Inc()
		}
	}
	return nil
}

// publish: Kafka может подняться позже воркера, поэтому несколько попыток с паузой.
func (p *Poller) publish(ctx context.Context, msg messages.OrderStatusChanged) error {
	var pubErr error
	for i := 0; i < p.publishAttempts; i++ {
		if pubErr = p.producer.PublishJSON(ctx, p.topic, msg.UserID, msg); pubErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(150*(i+1)) * time.Millisecond):
		}
	}
	return errors.Wrapf(pubErr, "publish %s/%s", msg.UserID, msg.OrderNumber)
}
