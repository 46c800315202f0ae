package reviews

import (
	"strings"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/history"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrEmptyComment    = errors.New("comment is required")
	ErrNotPurchased    = errors.New("product was not delivered to this user")
	ErrAlreadyReviewed = errors.New("product is already reviewed")
)

const (
	MinRating = 1
	MaxRating = 5
)

type ReviewedProduct struct {
	models.PurchasedProduct
	Review models.Review `json:"review"`
	Stars  string        `json:"stars"`
}

type Stats struct {
	TotalProducts int     `json:"totalProducts"`
	Reviewed      int     `json:"reviewed"`
	Pending       int     `json:"pending"`
	AverageRating float64 `json:"averageRating"`
}

type Overview struct {
	Pending  []models.PurchasedProduct `json:"pending"`
	Reviewed []ReviewedProduct         `json:"reviewed"`
	Stats    Stats                     `json:"stats"`
}

// PurchasedProducts собирает товары из DELIVERED-заказов, новые заказы первыми.
// Один товар попадает в список один раз, по самому свежему заказу.
func PurchasedProducts(orders []models.Order) []models.PurchasedProduct {
	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	history.SortByDateDesc(sorted)

	seen := make(map[string]struct{})
	out := make([]models.PurchasedProduct, 0)
	for _, o := range sorted {
		if o.Status != models.OrderStatusDelivered {
			continue
		}
		for _, it := range o.Items {
			if it.ProductID == "" {
				continue
			}
			if _, ok := seen[it.ProductID]; ok {
				continue
			}
			seen[it.ProductID] = struct{}{}

			p := models.PurchasedProduct{
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				OrderNumber: o.OrderNumber,
				OrderDate:   o.OrderDate,
				Price:       it.UnitPrice,
				Quantity:    it.Quantity,
			}
			if p.ProductName == "" {
				p.ProductName = "Product " + it.ProductID
			}
			if p.Quantity <= 0 {
				p.Quantity = 1
			}
			out = append(out, p)
		}
	}
	return out
}

func UserReviews(userID string, all []models.Review) []models.Review {
	out := make([]models.Review, 0)
	for _, r := range all {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// Aggregate делит купленные товары на ожидающие отзыва и уже оценённые.
func Aggregate(userID string, orders []models.Order, all []models.Review) Overview {
	mine := UserReviews(userID, all)
	byProduct := make(map[string]models.Review, len(mine))
	for _, r := range mine {
		if _, ok := byProduct[r.ProductID]; !ok {
			byProduct[r.ProductID] = r
		}
	}

	ov := Overview{
		Pending:  []models.PurchasedProduct{},
		Reviewed: []ReviewedProduct{},
	}
	for _, p := range PurchasedProducts(orders) {
		if r, ok := byProduct[p.ProductID]; ok {
			ov.Reviewed = append(ov.Reviewed, ReviewedProduct{PurchasedProduct: p, Review: r, Stars: Stars(r.Rating)})
			continue
		}
		ov.Pending = append(ov.Pending, p)
	}

	ov.Stats = Stats{
		TotalProducts: len(ov.Pending) + len(ov.Reviewed),
		Reviewed:      len(ov.Reviewed),
		Pending:       len(ov.Pending),
		AverageRating: averageRating(mine),
	}
	return ov
}

func averageRating(rs []models.Review) float64 {
	if len(rs) == 0 {
		return 0
	}
	sum := int64(0)
	for _, r := range rs {
		sum += int64(r.Rating)
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(rs)))).Round(1).InexactFloat64()
}

// Stars рисует рейтинг звёздами: Stars(3) == "★★★☆☆".
func Stars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > MaxRating {
		rating = MaxRating
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", MaxRating-rating)
}

// ValidateSubmission проверяет отзыв до отправки в сервис отзывов.
func ValidateSubmission(in models.ReviewInput, ov Overview) (models.ReviewInput, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	if in.Rating < MinRating || in.Rating > MaxRating {
		return in, ErrInvalidRating
	}
	if in.Comment == "" {
		return in, ErrEmptyComment
	}
	for _, p := range ov.Reviewed {
		if p.ProductID == in.ProductID {
			return in, ErrAlreadyReviewed
		}
	}
	for _, p := range ov.Pending {
		if p.ProductID == in.ProductID {
			return in, nil
		}
	}
	return in, ErrNotPurchased
}
