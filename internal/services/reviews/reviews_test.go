package reviews

import (
	"testing"
	"time"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func day(d int) *time.Time {
	t := time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func ordersFixture() []models.Order {
	return []models.Order{
		{
			OrderNumber: "OLD", Status: models.OrderStatusDelivered, OrderDate: day(1),
			Items: []models.LineItem{{ProductID: "p1", ProductName: "Old wheel", UnitPrice: decimal.NewFromInt(10), Quantity: 1}},
		},
		{
			OrderNumber: "PEND", Status: models.OrderStatusPending, OrderDate: day(5),
			Items: []models.LineItem{{ProductID: "p9", Quantity: 3}},
		},
		{
			OrderNumber: "NEW", Status: models.OrderStatusDelivered, OrderDate: day(3),
			Items: []models.LineItem{
				{ProductID: "p1", ProductName: "Wheel", UnitPrice: decimal.NewFromInt(12), Quantity: 2},
				{ProductID: "p2", Quantity: 0},
			},
		},
	}
}

func TestPurchasedProducts_OnlyDeliveredAndDedup(t *testing.T) {
	ps := PurchasedProducts(ordersFixture())
	require.Len(t, ps, 2)

	require.Equal(t, "p1", ps[0].ProductID)
	require.Equal(t, "Wheel", ps[0].ProductName)
	require.Equal(t, "NEW", ps[0].OrderNumber)
	require.True(t, decimal.NewFromInt(12).Equal(ps[0].Price))

	require.Equal(t, "p2", ps[1].ProductID)
	require.Equal(t, "Product p2", ps[1].ProductName)
	require.Equal(t, 1, ps[1].Quantity)

	for _, p := range ps {
		require.NotEqual(t, "p9", p.ProductID)
	}
}

func TestAggregate(t *testing.T) {
	all := []models.Review{
		{UserID: "u1", ProductID: "p1", Rating: 4, Comment: "ok"},
		{UserID: "u2", ProductID: "p2", Rating: 1, Comment: "someone else"},
		{UserID: "u1", ProductID: "p9", Rating: 5, Comment: "not delivered yet"},
	}
	ov := Aggregate("u1", ordersFixture(), all)

	require.Len(t, ov.Reviewed, 1)
	require.Equal(t, "p1", ov.Reviewed[0].ProductID)
	require.Equal(t, 4, ov.Reviewed[0].Review.Rating)
	require.Equal(t, "★★★★☆", ov.Reviewed[0].Stars)

	require.Len(t, ov.Pending, 1)
	require.Equal(t, "p2", ov.Pending[0].ProductID)

	require.Equal(t, Stats{TotalProducts: 2, Reviewed: 1, Pending: 1, AverageRating: 4.5}, ov.Stats)
}

func TestAggregate_NoDeliveredNeverReviewable(t *testing.T) {
	orders := []models.Order{{OrderNumber: "X", Status: models.OrderStatusShipped, Items: []models.LineItem{{ProductID: "p1"}}}}
	for _, rs := range [][]models.Review{nil, {{UserID: "u1", ProductID: "p1", Rating: 3}}} {
		ov := Aggregate("u1", orders, rs)
		require.Empty(t, ov.Pending)
		require.Empty(t, ov.Reviewed)
	}
}

func TestValidateSubmission(t *testing.T) {
	ov := Aggregate("u1", ordersFixture(), []models.Review{{UserID: "u1", ProductID: "p1", Rating: 4}})

	_, err := ValidateSubmission(models.ReviewInput{ProductID: "p2", Rating: 0, Comment: "x"}, ov)
	require.ErrorIs(t, err, ErrInvalidRating)

	_, err = ValidateSubmission(models.ReviewInput{ProductID: "p2", Rating: 6, Comment: "x"}, ov)
	require.ErrorIs(t, err, ErrInvalidRating)

	_, err = ValidateSubmission(models.ReviewInput{ProductID: "p2", Rating: 5, Comment: "   "}, ov)
	require.ErrorIs(t, err, ErrEmptyComment)

	_, err = ValidateSubmission(models.ReviewInput{ProductID: "p1", Rating: 5, Comment: "again"}, ov)
	require.ErrorIs(t, err, ErrAlreadyReviewed)

	_, err = ValidateSubmission(models.ReviewInput{ProductID: "p9", Rating: 5, Comment: "pending order"}, ov)
	require.ErrorIs(t, err, ErrNotPurchased)

	in, err := ValidateSubmission(models.ReviewInput{ProductID: "p2", Rating: 5, Comment: "  great  "}, ov)
	require.NoError(t, err)
	require.Equal(t, "great", in.Comment)
}

func TestStars(t *testing.T) {
	require.Equal(t, "☆☆☆☆☆", Stars(0))
	require.Equal(t, "★★★☆☆", Stars(3))
	require.Equal(t, "★★★★★", Stars(9))
}
