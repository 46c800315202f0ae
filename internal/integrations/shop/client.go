package shop

import (
	"context"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/pkg/errors"
)

// ErrUnauthorized: любой бэкенд ответил 401: токен просрочен или отозван.
var ErrUnauthorized = errors.New("backend rejected credentials")

type AuthClient interface {
	Login(ctx context.Context, username, password string) (models.LoginResult, error)
	Register(ctx context.Context, in models.RegisterInput) error
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (models.User, error)
}

// CatalogueClient отдаёт историю заказов как есть: формат ответа у каталога плавает,
// разбор делает history.Normalize.
type CatalogueClient interface {
	GetUserOrderHistory(ctx context.Context, token, userID string) ([]byte, error)
}

type OrderClient interface {
	GetCartItems(ctx context.Context, token string) ([]models.Product, error)
	CreateOrder(ctx context.Context, token string, in models.CreateOrderInput) (string, error)
}

type ReviewClient interface {
	ListReviews(ctx context.Context, token string) ([]models.Review, error)
	AddReview(ctx context.Context, token string, in models.ReviewInput) (models.Review, error)
}

// Backends: полный набор внешних сервисов витрины.
type Backends struct {
	Auth      AuthClient
	Catalogue CatalogueClient
	Orders    OrderClient
	Reviews   ReviewClient
}
