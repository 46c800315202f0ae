package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/StoreFront/internal/cache/rediscache"
	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/cart"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewStore(rediscache.New(mr.Addr()), time.Hour), mr
}

func TestStore_Lifecycle(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	sess, err := s.Start(ctx, models.LoginResult{
		AuthTokens: models.AuthTokens{AccessToken: "tok", RefreshToken: "ref"},
		User:       models.User{ID: "u1", Username: "ann"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, "tok", got.Token)
	require.Equal(t, "u1", got.User.ID)

	require.NoError(t, s.UpdateUser(ctx, sess.ID, models.User{ID: "u1", Username: "ann", Email: "a@x"}))
	got, _ = s.Get(ctx, sess.ID)
	require.Equal(t, "a@x", got.User.Email)
	require.Equal(t, "tok", got.Token)

	require.NoError(t, s.Clear(ctx, sess.ID))
	_, err = s.Get(ctx, sess.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Clear(ctx, sess.ID))
}

func TestStore_StartWithoutToken(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Start(context.Background(), models.LoginResult{})
	require.Error(t, err)
}

func TestStore_GetUnknown(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Expires(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	sess, err := s.Start(ctx, models.LoginResult{AuthTokens: models.AuthTokens{AccessToken: "tok"}})
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = s.Get(ctx, sess.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CartClearedWithSession(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	sess, err := s.Start(ctx, models.LoginResult{AuthTokens: models.AuthTokens{AccessToken: "tok"}})
	require.NoError(t, err)

	c, err := s.Cart(ctx, sess.ID)
	require.NoError(t, err)
	require.Empty(t, c.Items)

	c.Add(models.Product{ProductID: "p1", Price: decimal.NewFromInt(3)})
	require.NoError(t, s.SaveCart(ctx, sess.ID, c))

	c, err = s.Cart(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.True(t, decimal.NewFromInt(3).Equal(c.Items[0].Price))

	require.NoError(t, s.Clear(ctx, sess.ID))
	require.False(t, mr.Exists("cart:"+sess.ID))

	require.NoError(t, s.SaveCart(ctx, sess.ID, cart.Cart{}))
	require.False(t, mr.Exists("cart:"+sess.ID))
}

func TestStore_UpdateCartConcurrent(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	const adds = 8
	var wg sync.WaitGroup
	errs := make(chan error, adds)
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateCart(ctx, "sid", func(c *cart.Cart) error {
				c.Add(models.Product{ProductID: "p1", Price: decimal.NewFromInt(2)})
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	c, err := s.Cart(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, adds, c.Items[0].Quantity)

	c, err = s.UpdateCart(ctx, "sid", func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, c.Items)
	require.False(t, mr.Exists("cart:sid"))

	_, err = s.UpdateCart(ctx, "sid", func(*cart.Cart) error { return cart.ErrUnknownProduct })
	require.ErrorIs(t, err, cart.ErrUnknownProduct)
}
