package shophttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/history"
	"github.com/pkg/errors"
)

type ReviewClient struct {
	base
}

func NewReviewClient(baseURL string, timeout time.Duration, obs Observer) *ReviewClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ReviewClient{base: newBase("reviews", baseURL, "http://localhost:8088", timeout, obs)}
}

type reviewResp struct {
	ID          flexID          `json:"id"`
	UserID      flexID          `json:"userId"`
	UserName    string          `json:"userName"`
	ProductID   flexID          `json:"productId"`
	ProductName string          `json:"productName"`
	Rating      int             `json:"rating"`
	Comment     string          `json:"comment"`
	CreatedAt   json.RawMessage `json:"createdAt"`
}

func (r reviewResp) toModel() models.Review {
	return models.Review{
		ID:          string(r.ID),
		UserID:      string(r.UserID),
		UserName:    r.UserName,
		ProductID:   string(r.ProductID),
		ProductName: r.ProductName,
		Rating:      r.Rating,
		Comment:     r.Comment,
		CreatedAt:   history.ParseDate(r.CreatedAt),
	}
}

func (c *ReviewClient) ListReviews(ctx context.Context, token string) ([]models.Review, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/reviews/all", token, nil)
	if err != nil {
		return nil, err
	}
	var rs []reviewResp
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, errors.Wrap(err, "decode reviews")
	}
	out := make([]models.Review, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.toModel())
	}
	return out, nil
}

type addReviewReq struct {
	UserID    any    `json:"userId"`
	ProductID any    `json:"productId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// numericOrString: review-service ждёт Long, но строковые id тоже пропускаем как есть.
func numericOrString(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func (c *ReviewClient) AddReview(ctx context.Context, token string, in models.ReviewInput) (models.Review, error) {
	raw, err := c.do(ctx, http.MethodPost, "/api/reviews", token, addReviewReq{
		UserID:    numericOrString(in.UserID),
		ProductID: numericOrString(in.ProductID),
		Rating:    in.Rating,
		Comment:   in.Comment,
	})
	if err != nil {
		return models.Review{}, err
	}
	var r reviewResp
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r); err != nil {
			return models.Review{}, errors.Wrap(err, "decode review")
		}
	}
	out := r.toModel()
	if out.ProductID == "" {
		out.UserID, out.ProductID, out.Rating, out.Comment = in.UserID, in.ProductID, in.Rating, in.Comment
	}
	return out, nil
}
