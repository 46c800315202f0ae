package poller

import (
	"context"
	"testing"
	"time"

	shopmocks "github.com/BearBump/StoreFront/internal/integrations/shop/mocks"
	"github.com/stretchr/testify/require"
)

func TestPoller_Run_StopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	p := New(repo, &shopmocks.MockCatalogueClient{}, "", &fakeProducer{}, nil, "t").
		WithSettings(5*time.Millisecond, 1, 1, time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.GreaterOrEqual(t, repo.claims, 1)
}

func TestPoller_Trigger_RunsCycle(t *testing.T) {
	repo := &fakeRepo{}
	p := New(repo, &shopmocks.MockCatalogueClient{}, "", &fakeProducer{}, nil, "t").
		WithSettings(time.Hour, 1, 1, time.Second, 1)

	p.Trigger()
	p.Trigger()
	require.NotNil(t, p.Stats().LastTriggerAt)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.claims == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
