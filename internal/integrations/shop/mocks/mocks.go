package mocks

import (
	"context"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockAuthClient struct {
	mock.Mock
}

func (m *MockAuthClient) Login(ctx context.Context, username, password string) (models.LoginResult, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(models.LoginResult), args.Error(1)
}

func (m *MockAuthClient) Register(ctx context.Context, in models.RegisterInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *MockAuthClient) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAuthClient) Me(ctx context.Context, token string) (models.User, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(models.User), args.Error(1)
}

type MockCatalogueClient struct {
	mock.Mock
}

func (m *MockCatalogueClient) GetUserOrderHistory(ctx context.Context, token, userID string) ([]byte, error) {
	args := m.Called(ctx, token, userID)
	var b []byte
	if v := args.Get(0); v != nil {
		b = v.([]byte)
	}
	return b, args.Error(1)
}

type MockOrderClient struct {
	mock.Mock
}

func (m *MockOrderClient) GetCartItems(ctx context.Context, token string) ([]models.Product, error) {
	args := m.Called(ctx, token)
	var ps []models.Product
	if v := args.Get(0); v != nil {
		ps = v.([]models.Product)
	}
	return ps, args.Error(1)
}

func (m *MockOrderClient) CreateOrder(ctx context.Context, token string, in models.CreateOrderInput) (string, error) {
	args := m.Called(ctx, token, in)
	return args.String(0), args.Error(1)
}

type MockReviewClient struct {
	mock.Mock
}

func (m *MockReviewClient) ListReviews(ctx context.Context, token string) ([]models.Review, error) {
	args := m.Called(ctx, token)
	var rs []models.Review
	if v := args.Get(0); v != nil {
		rs = v.([]models.Review)
	}
	return rs, args.Error(1)
}

func (m *MockReviewClient) AddReview(ctx context.Context, token string, in models.ReviewInput) (models.Review, error) {
	args := m.Called(ctx, token, in)
	return args.Get(0).(models.Review), args.Error(1)
}
