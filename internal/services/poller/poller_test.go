package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/StoreFront/internal/broker/messages"
	shopmocks "github.com/BearBump/StoreFront/internal/integrations/shop/mocks"
	"github.com/BearBump/StoreFront/internal/metrics"
	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/storage/pgwatch"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu      sync.Mutex
	due     []*pgwatch.Watch
	claims  int
	applied []pgwatch.CheckResult
	changes []pgwatch.StatusChange
	err     error
}

func (r *fakeRepo) ClaimDueWatches(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*pgwatch.Watch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims++
	out := r.due
	r.due = nil
	return out, r.err
}

func (r *fakeRepo) ApplyCheck(ctx context.Context, res pgwatch.CheckResult) ([]pgwatch.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, res)
	if res.Error != nil {
		return nil, nil
	}
	return r.changes, nil
}

type fakeProducer struct {
	mu    sync.Mutex
	topic string
	keys  []string
	msgs  []messages.OrderStatusChanged
	calls int
	err   error
}

func (p *fakeProducer) PublishJSON(ctx context.Context, topic, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.topic = topic
	p.keys = append(p.keys, key)
	p.msgs = append(p.msgs, v.(messages.OrderStatusChanged))
	return nil
}

type fakeRL struct {
	allowed bool
	count   int64
	err     error
	backend string
	at      time.Time
}

func (r *fakeRL) AllowBackendCall(ctx context.Context, backend string, perMinute int64, now time.Time) (bool, int64, error) {
	r.backend, r.at = backend, now
	return r.allowed, r.count, r.err
}

var fixedNow = time.Date(2024, 6, 12, 10, 30, 0, 0, time.UTC)

const historyBody = `{"orders":[
 {"orderNumber":"A","orderStatus":"DELIVERED","totalAmount":"10.00"},
 {"orderNumber":"B","orderStatus":"SHIPPED","totalAmount":"25.50"}
]}`

func newTestPoller(repo Repository, cat *shopmocks.MockCatalogueClient, prod Producer, rl RateLimiter) *Poller {
	p := New(repo, cat, "svc-token", prod, rl, messages.TopicOrderStatusChanged).
		WithPlanner(PlannerConfig{ActiveMinDelay: time.Minute, ActiveMaxDelay: time.Minute, IdleDelay: time.Hour})
	p.now = func() time.Time { return fixedNow }
	p.publishAttempts = 2
	return p
}

func TestPoller_processOne_PublishesChanges(t *testing.T) {
	cat := &shopmocks.MockCatalogueClient{}
	cat.On("GetUserOrderHistory", mock.Anything, "svc-token", "u1").Return([]byte(historyBody), nil).Once()

	repo := &fakeRepo{changes: []pgwatch.StatusChange{{
		UserID: "u1", OrderNumber: "B",
		OldStatus: models.OrderStatusProcessing, NewStatus: models.OrderStatusShipped,
		TotalAmount: decimal.RequireFromString("25.50"),
	}}}
	fp := &fakeProducer{}
	rl := &fakeRL{allowed: true}
	m := metrics.NewRegistry()
	p := newTestPoller(repo, cat, fp, rl).WithMetrics(m)

	require.NoError(t, p.processOne(context.Background(), &pgwatch.Watch{UserID: "u1"}))

	require.Len(t, repo.applied, 1)
	res := repo.applied[0]
	require.Nil(t, res.Error)
	require.Len(t, res.Orders, 2)
	require.Equal(t, fixedNow.Add(time.Minute), res.NextCheckAt)

	require.Equal(t, messages.TopicOrderStatusChanged, fp.topic)
	require.Equal(t, []string{"u1"}, fp.keys)
	require.Equal(t, "PROCESSING", fp.msgs[0].OldStatus)
	require.Equal(t, "SHIPPED", fp.msgs[0].NewStatus)
	require.Equal(t, fixedNow, fp.msgs[0].DetectedAt)
	require.NoError(t, fp.msgs[0].Validate())

	require.Equal(t, "catalogue", rl.backend)
	require.Equal(t, fixedNow, rl.at)
	require.Equal(t, float64(1), testutil.ToFloat64(m.StatusChanges))
	require.Equal(t, float64(1), testutil.ToFloat64(m.WatcherChecks.WithLabelValues("ok")))
	require.Equal(t, int64(1), p.Stats().TotalChanges)
	cat.AssertExpectations(t)
}

func TestPoller_processOne_IdleWhenAllTerminal(t *testing.T) {
	cat := &shopmocks.MockCatalogueClient{}
	cat.On("GetUserOrderHistory", mock.Anything, "svc-token", "u1").
		Return([]byte(`[{"orderNumber":"A","orderStatus":"DELIVERED"}]`), nil)

	repo := &fakeRepo{}
	fp := &fakeProducer{}
	p := newTestPoller(repo, cat, fp, nil)

	require.NoError(t, p.processOne(context.Background(), &pgwatch.Watch{UserID: "u1"}))
	require.Equal(t, fixedNow.Add(time.Hour), repo.applied[0].NextCheckAt)
	require.Equal(t, 0, fp.calls)
}

func TestPoller_processOne_FetchErrorBacksOff(t *testing.T) {
	cat := &shopmocks.MockCatalogueClient{}
	cat.On("GetUserOrderHistory", mock.Anything, "svc-token", "u1").Return(nil, errors.New("boom"))

	repo := &fakeRepo{}
	fp := &fakeProducer{}
	m := metrics.NewRegistry()
	p := newTestPoller(repo, cat, fp, nil).WithMetrics(m)

	err := p.processOne(context.Background(), &pgwatch.Watch{UserID: "u1", CheckFailCount: 2})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch history")

	require.Len(t, repo.applied, 1)
	require.NotNil(t, repo.applied[0].Error)
	require.Equal(t, fixedNow.Add(30*time.Minute), repo.applied[0].NextCheckAt)
	require.Equal(t, 0, fp.calls)
	require.Equal(t, float64(1), testutil.ToFloat64(m.WatcherChecks.WithLabelValues("failed")))
}

func TestPoller_processOne_RateLimitedSkipsFetch(t *testing.T) {
	cat := &shopmocks.MockCatalogueClient{}
	repo := &fakeRepo{}
	p := newTestPoller(repo, cat, &fakeProducer{}, &fakeRL{allowed: false, count: 61})

	err := p.processOne(context.Background(), &pgwatch.Watch{UserID: "u1"})
	require.ErrorIs(t, err, ErrRateLimited)
	require.Empty(t, repo.applied)
	cat.AssertNotCalled(t, "GetUserOrderHistory", mock.Anything, mock.Anything, mock.Anything)
}

func TestPoller_processOne_PublishRetriesThenFails(t *testing.T) {
	cat := &shopmocks.MockCatalogueClient{}
	cat.On("GetUserOrderHistory", mock.Anything, "svc-token", "u1").Return([]byte(historyBody), nil)

	repo := &fakeRepo{changes: []pgwatch.StatusChange{{UserID: "u1", OrderNumber: "B", NewStatus: models.OrderStatusShipped}}}
	fp := &fakeProducer{err: errors.New("kafka down")}
	m := metrics.NewRegistry()
	p := newTestPoller(repo, cat, fp, nil).WithMetrics(m)

	err := p.processOne(context.Background(), &pgwatch.Watch{UserID: "u1"})
	require.Error(t, err)
	require.Equal(t, 2, fp.calls)
	require.Equal(t, float64(1), testutil.ToFloat64(m.PublishFailures))
}

func TestPoller_runOnce_CountsErrors(t *testing.T) {
	cat := &shopmocks.MockCatalogueClient{}
	cat.On("GetUserOrderHistory", mock.Anything, "svc-token", "ok").Return([]byte(`[]`), nil)
	cat.On("GetUserOrderHistory", mock.Anything, "svc-token", "bad").Return(nil, errors.New("boom"))

	repo := &fakeRepo{due: []*pgwatch.Watch{{UserID: "ok"}, {UserID: "bad"}}}
	p := newTestPoller(repo, cat, &fakeProducer{}, nil)

	p.runOnce(context.Background())

	st := p.Stats()
	require.Equal(t, int64(2), st.TotalClaimed)
	require.Equal(t, int64(2), st.TotalProcessed)
	require.Equal(t, int64(1), st.TotalErrors)
	require.Contains(t, st.LastError, "boom")
	require.NotNil(t, st.LastCycleAt)
	require.Zero(t, st.InFlight)
}

func TestPoller_WithSettings(t *testing.T) {
	p := New(nil, nil, "", &fakeProducer{}, nil, "t").
		WithSettings(5*time.Second, 7, 9, 11*time.Second, 13)
	require.Equal(t, 5*time.Second, p.pollInterval)
	require.Equal(t, 7, p.batchSize)
	require.Equal(t, 9, p.concurrency)
	require.Equal(t, 11*time.Second, p.lease)
	require.Equal(t, int64(13), p.rateLimitPerMinute)

	p.WithSettings(0, 0, 0, 0, 0)
	require.Equal(t, 7, p.batchSize)
}

func TestStats_JSON(t *testing.T) {
	p := New(nil, nil, "", nil, nil, "t")
	b, err := json.Marshal(p.Stats())
	require.NoError(t, err)
	require.NotContains(t, string(b), "lastCycleAt")
}
