package storefront

import (
	"context"
	"log/slog"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/reviews"
	"github.com/BearBump/StoreFront/internal/session"
)

type ReviewsView struct {
	reviews.Overview
	LoadFailed bool `json:"loadFailed"`
}

func emptyReviews() ReviewsView {
	return ReviewsView{
		Overview: reviews.Overview{
			Pending:  []models.PurchasedProduct{},
			Reviewed: []reviews.ReviewedProduct{},
		},
		LoadFailed: true,
	}
}

func (s *Service) overview(ctx context.Context, sid string, sess session.Session) (reviews.Overview, error) {
	snap, err := s.loadOrders(ctx, sid, sess)
	if err != nil {
		return reviews.Overview{}, err
	}
	all, err := s.backends.Reviews.ListReviews(ctx, sess.Token)
	if err != nil {
		return reviews.Overview{}, s.backendErr(ctx, sid, err)
	}
	return reviews.Aggregate(sess.User.ID, snap.Orders, all), nil
}

// Reviews: страница "мои отзывы": что можно оценить и что уже оценено.
func (s *Service) Reviews(ctx context.Context, sid string) (ReviewsView, error) {
	sess, err := s.session(ctx, sid)
	if err != nil {
		return ReviewsView{}, err
	}
	ov, err := s.overview(ctx, sid, sess)
	if err != nil {
		if sessionGone(err) {
			return ReviewsView{}, err
		}
		slog.Error("load reviews", "user", sess.User.ID, "err", err)
		return emptyReviews(), nil
	}
	return ReviewsView{Overview: ov}, nil
}

// SubmitReview проверяет отзыв локально и только потом отправляет его в review-service.
func (s *Service) SubmitReview(ctx context.Context, sid string, in models.ReviewInput) (models.Review, error) {
	sess, err := s.session(ctx, sid)
	if err != nil {
		return models.Review{}, err
	}
	// рейтинг и текст проверяем до любых запросов
	if _, err := reviews.ValidateSubmission(in, reviews.Overview{
		Pending: []models.PurchasedProduct{{ProductID: in.ProductID}},
	}); err != nil {
		return models.Review{}, err
	}

	ov, err := s.overview(ctx, sid, sess)
	if err != nil {
		return models.Review{}, err
	}
	in.UserID = sess.User.ID
	in, err = reviews.ValidateSubmission(in, ov)
	if err != nil {
		return models.Review{}, err
	}

	r, err := s.backends.Reviews.AddReview(ctx, sess.Token, in)
	if err != nil {
		return models.Review{}, s.backendErr(ctx, sid, err)
	}
	slog.Info("review submitted", "user", in.UserID, "product", in.ProductID, "rating", in.Rating)
	return r, nil
}
