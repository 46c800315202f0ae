package storefront

import (
	"testing"
	"time"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/notifications"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestViews_OutOfOrderCommits(t *testing.T) {
	v := NewViews(nil)
	now := time.Now()

	g1 := v.Begin("s")
	g2 := v.Begin("s")
	require.Greater(t, g2, g1)

	newer := []models.Order{{OrderNumber: "NEW"}}
	snap, res := v.Commit("s", g2, newer, notifications.Derive(newer, now, ""), now)
	require.Equal(t, Committed, res)
	require.Equal(t, g2, snap.Generation)

	older := []models.Order{{OrderNumber: "OLD"}}
	snap, res = v.Commit("s", g1, older, notifications.Derive(older, now, ""), now)
	require.Equal(t, Stale, res)
	require.Equal(t, "NEW", snap.Orders[0].OrderNumber)

	cur, ok := v.Current("s")
	require.True(t, ok)
	require.Equal(t, "NEW", cur.Orders[0].OrderNumber)
}

func TestViews_CommitAfterDropIsIgnored(t *testing.T) {
	v := NewViews(nil)
	g := v.Begin("s")
	v.Drop("s")

	_, res := v.Commit("s", g, nil, notifications.Derive(nil, time.Now(), ""), time.Now())
	require.Equal(t, Dropped, res)
	require.Equal(t, 0, v.Len())
}

func TestViews_LoadStartedBeforeDropCannotOverrideNewer(t *testing.T) {
	v := NewViews(nil)
	now := time.Now()

	old := v.Begin("s")
	v.Drop("s")
	fresh := v.Begin("s")
	require.Greater(t, fresh, old)

	newer := []models.Order{{OrderNumber: "NEW"}}
	_, res := v.Commit("s", fresh, newer, notifications.Derive(newer, now, ""), now)
	require.Equal(t, Committed, res)

	older := []models.Order{{OrderNumber: "OLD"}}
	snap, res := v.Commit("s", old, older, notifications.Derive(older, now, ""), now)
	require.Equal(t, Stale, res)
	require.Equal(t, "NEW", snap.Orders[0].OrderNumber)
}

func TestViews_GenerationsAreGlobal(t *testing.T) {
	v := NewViews(nil)
	a := v.Begin("a")
	b := v.Begin("b")
	require.NotEqual(t, a, b)
}

func TestViews_ReadFlagsWithoutFeed(t *testing.T) {
	v := NewViews(nil)
	_, found := v.MarkAsRead("s", "order-1")
	require.False(t, found)
	_, ok := v.MarkAllAsRead("s")
	require.False(t, ok)

	v.Begin("s")
	_, ok = v.Current("s")
	require.False(t, ok)
}

func TestViews_Prune(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
	v := NewViews(clk.Now)
	v.Begin("a")
	v.Begin("b")
	require.Equal(t, 2, v.Prune(clk.Now().Add(time.Minute)))
	require.Equal(t, 0, v.Len())

	v.Begin("c")
	require.Equal(t, 0, v.Prune(clk.Now().Add(-time.Minute)))
	require.Equal(t, 1, v.Len())
}

func TestViews_ReadsKeepStateAlive(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
	v := NewViews(clk.Now)

	orders := []models.Order{{OrderNumber: "A1", Status: models.OrderStatusShipped}}
	for _, sid := range []string{"reader", "idle"} {
		_, res := v.Commit(sid, v.Begin(sid), orders, notifications.Derive(orders, clk.Now(), ""), clk.Now())
		require.Equal(t, Committed, res)
	}

	clk.Advance(50 * time.Minute)
	_, ok := v.Current("reader")
	require.True(t, ok)

	clk.Advance(20 * time.Minute)
	_, ok = v.MarkAllAsRead("reader")
	require.True(t, ok)

	// отсечка: час назад; "reader" трогали 20 минут назад, "idle" 70
	require.Equal(t, 1, v.Prune(clk.Now().Add(-time.Hour)))
	_, ok = v.Current("reader")
	require.True(t, ok)
	_, ok = v.Current("idle")
	require.False(t, ok)
}
