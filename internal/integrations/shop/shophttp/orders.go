package shophttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/history"
	"github.com/pkg/errors"
)

type OrderClient struct {
	base
}

func NewOrderClient(baseURL string, timeout time.Duration, obs Observer) *OrderClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OrderClient{base: newBase("orders", baseURL, "http://localhost:8086", timeout, obs)}
}

type productResp struct {
	ProductID   flexID          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       json.RawMessage `json:"price"`
	Image       string          `json:"image"`
}

func (c *OrderClient) GetCartItems(ctx context.Context, token string) ([]models.Product, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/orders/cart-items", token, nil)
	if err != nil {
		return nil, err
	}
	var rs []productResp
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, errors.Wrap(err, "decode cart items")
	}
	out := make([]models.Product, 0, len(rs))
	for _, r := range rs {
		price, _ := history.ParseAmount(r.Price)
		out = append(out, models.Product{
			ProductID:   string(r.ProductID),
			ProductName: r.ProductName,
			Price:       price,
			Image:       r.Image,
		})
	}
	return out, nil
}

// CreateOrder возвращает номер созданного заказа.
func (c *OrderClient) CreateOrder(ctx context.Context, token string, in models.CreateOrderInput) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, "/api/orders/create", token, in)
	if err != nil {
		return "", err
	}
	var r struct {
		OrderNumber flexID `json:"orderNumber"`
		ID          flexID `json:"id"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", errors.Wrap(err, "decode created order")
	}
	if r.OrderNumber != "" {
		return string(r.OrderNumber), nil
	}
	if r.ID != "" {
		return string(r.ID), nil
	}
	return "", errors.New("created order without number")
}
