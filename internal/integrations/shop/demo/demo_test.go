package demo

import (
	"context"
	"testing"

	"github.com/BearBump/StoreFront/internal/integrations/shop"
	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/history"
	"github.com/stretchr/testify/require"
)

func TestStore_LoginAndHistory(t *testing.T) {
	s := New()
	ctx := context.Background()

	res, err := s.Login(ctx, "ann", "pw")
	require.NoError(t, err)
	require.NotEmpty(t, res.User.ID)

	again, err := s.Login(ctx, "ann", "pw")
	require.NoError(t, err)
	require.Equal(t, res.User, again.User)

	raw, err := s.GetUserOrderHistory(ctx, res.AccessToken, res.User.ID)
	require.NoError(t, err)
	orders := history.Normalize(raw)
	require.Len(t, orders, 3)
	require.Equal(t, models.OrderStatusPending, orders[0].Status)
	require.Equal(t, models.OrderStatusDelivered, orders[2].Status)
}

func TestStore_BadToken(t *testing.T) {
	s := New()
	_, err := s.Me(context.Background(), "garbage")
	require.ErrorIs(t, err, shop.ErrUnauthorized)

	_, err = s.Login(context.Background(), "", "pw")
	require.ErrorIs(t, err, ErrBadCredentials)
}

func TestStore_CreateOrderAndReview(t *testing.T) {
	s := New()
	ctx := context.Background()
	res, err := s.Login(ctx, "bob", "pw")
	require.NoError(t, err)

	ps, err := s.GetCartItems(ctx, res.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, ps)

	num, err := s.CreateOrder(ctx, res.AccessToken, models.CreateOrderInput{
		ShippingAddress: "x",
		Items:           []models.OrderItemInput{{ProductID: ps[0].ProductID, Quantity: 2, Price: ps[0].Price}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, num)

	raw, err := s.GetUserOrderHistory(ctx, res.AccessToken, res.User.ID)
	require.NoError(t, err)
	orders := history.Normalize(raw)
	require.Len(t, orders, 4)
	require.Equal(t, num, orders[0].OrderNumber)

	_, err = s.AddReview(ctx, res.AccessToken, models.ReviewInput{UserID: res.User.ID, ProductID: "1", Rating: 5, Comment: "nice"})
	require.NoError(t, err)
	rs, err := s.ListReviews(ctx, res.AccessToken)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	require.Equal(t, "bob", rs[0].UserName)
}
