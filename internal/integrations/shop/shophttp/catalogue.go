package shophttp

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

type CatalogueClient struct {
	base
}

func NewCatalogueClient(baseURL string, timeout time.Duration, obs Observer) *CatalogueClient {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &CatalogueClient{base: newBase("catalogue", baseURL, "http://localhost:8082", timeout, obs)}
}

// GetUserOrderHistory возвращает сырое тело: массив, {"orders": []} или {"history": []}.
func (c *CatalogueClient) GetUserOrderHistory(ctx context.Context, token, userID string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/api/catalogue/users/"+url.PathEscape(userID)+"/history", token, nil)
}
