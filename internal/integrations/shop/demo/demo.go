package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/StoreFront/internal/integrations/shop"
	"github.com/BearBump/StoreFront/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const tokenPrefix = "demo-"

var ErrBadCredentials = errors.New("demo: username and password are required")

// Store: демо-бэкенды витрины в памяти. Включаются только явно (storefront.mode: demo).
// Данные детерминированы по имени пользователя, заказы и отзывы живут до рестарта.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	products []models.Product
	users    map[string]models.User
	orders   map[string][]models.Order
	reviews  []models.Review
	seq      int
}

func New() *Store {
	return &Store{
		now:      time.Now,
		products: seedProducts(),
		users:    make(map[string]models.User),
		orders:   make(map[string][]models.Order),
	}
}

// Backends собирает все четыре клиента поверх одного Store.
func (s *Store) Backends() shop.Backends {
	return shop.Backends{Auth: s, Catalogue: s, Orders: s, Reviews: s}
}

func seedProducts() []models.Product {
	return []models.Product{
		{ProductID: "1", ProductName: "Ceramic mug", Price: decimal.RequireFromString("12.50")},
		{ProductID: "2", ProductName: "Cotton cap", Price: decimal.RequireFromString("19.90")},
		{ProductID: "3", ProductName: "Notebook", Price: decimal.RequireFromString("7.00")},
		{ProductID: "4", ProductName: "Desk lamp", Price: decimal.RequireFromString("45.00")},
	}
}

func hashOf(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// userLocked заводит пользователя и его стартовую историю при первом обращении.
func (s *Store) userLocked(username string) models.User {
	if u, ok := s.users[username]; ok {
		return u
	}
	v := hashOf(username)
	u := models.User{
		ID:       fmt.Sprintf("%d", 1000+v%9000),
		Username: username,
		Email:    username + "@demo.local",
		Role:     "USER",
	}
	s.users[username] = u

	now := s.now().UTC()
	statuses := []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusShipped, models.OrderStatusPending}
	var orders []models.Order
	for i, st := range statuses {
		p := s.products[(int(v)+i)%len(s.products)]
		qty := 1 + i
		date := now.Add(-time.Duration(24*(len(statuses)-i)) * time.Hour)
		total := p.Price.Mul(decimal.NewFromInt(int64(qty)))
		orders = append(orders, models.Order{
			ID:          fmt.Sprintf("%s-%d", u.ID, i+1),
			OrderNumber: fmt.Sprintf("DEMO-%s-%d", u.ID, i+1),
			OrderDate:   &date,
			Status:      st,
			TotalAmount: total,
			Items: []models.LineItem{{
				ProductID: p.ProductID, ProductName: p.ProductName, Quantity: qty,
				UnitPrice: p.Price, TotalPrice: total,
			}},
			ShippingAddress: "1 Demo street",
		})
	}
	s.orders[u.ID] = orders
	return u
}

func (s *Store) userByToken(token string) (models.User, error) {
	name, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok || name == "" {
		return models.User{}, shop.ErrUnauthorized
	}
	return s.userLocked(name), nil
}

func (s *Store) Login(ctx context.Context, username, password string) (models.LoginResult, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return models.LoginResult{}, ErrBadCredentials
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(username)
	return models.LoginResult{
		AuthTokens: models.AuthTokens{AccessToken: tokenPrefix + username, RefreshToken: "refresh-" + username},
		User:       u,
	}, nil
}

func (s *Store) Register(ctx context.Context, in models.RegisterInput) error {
	if strings.TrimSpace(in.Username) == "" || in.Password == "" {
		return ErrBadCredentials
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userLocked(in.Username)
	return nil
}

func (s *Store) Logout(ctx context.Context, token string) error {
	return nil
}

func (s *Store) Me(ctx context.Context, token string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userByToken(token)
}

// GetUserOrderHistory отдаёт историю в обёртке {"orders": [...]}, как один из вариантов каталога.
// Любой непустой токен подходит: воркер ходит сюда с сервисным токеном.
func (s *Store) GetUserOrderHistory(ctx context.Context, token, userID string) ([]byte, error) {
	if token == "" {
		return nil, shop.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.Marshal(map[string]any{"orders": s.orders[userID]})
	if err != nil {
		return nil, errors.Wrap(err, "encode demo history")
	}
	return b, nil
}

func (s *Store) GetCartItems(ctx context.Context, token string) ([]models.Product, error) {
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *Store) CreateOrder(ctx context.Context, token string, in models.CreateOrderInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.userByToken(token)
	if err != nil {
		return "", err
	}
	if len(in.Items) == 0 {
		return "", errors.New("demo: order without items")
	}

	s.seq++
	now := s.now().UTC()
	o := models.Order{
		ID:              fmt.Sprintf("%s-n%d", u.ID, s.seq),
		OrderNumber:     fmt.Sprintf("DEMO-%s-N%d", u.ID, s.seq),
		OrderDate:       &now,
		Status:          models.OrderStatusPending,
		ShippingAddress: in.ShippingAddress,
		TotalAmount:     decimal.Zero,
	}
	for _, it := range in.Items {
		total := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		o.Items = append(o.Items, models.LineItem{
			ProductID: it.ProductID, ProductName: it.ProductName, Quantity: it.Quantity,
			UnitPrice: it.Price, TotalPrice: total,
		})
		o.TotalAmount = o.TotalAmount.Add(total)
	}
	s.orders[u.ID] = append(s.orders[u.ID], o)
	return o.OrderNumber, nil
}

func (s *Store) ListReviews(ctx context.Context, token string) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Review, len(s.reviews))
	copy(out, s.reviews)
	return out, nil
}

func (s *Store) AddReview(ctx context.Context, token string, in models.ReviewInput) (models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.userByToken(token)
	if err != nil {
		return models.Review{}, err
	}
	now := s.now().UTC()
	s.seq++
	r := models.Review{
		ID:        fmt.Sprintf("r%d", s.seq),
		UserID:    in.UserID,
		UserName:  u.Username,
		ProductID: in.ProductID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: &now,
	}
	s.reviews = append(s.reviews, r)
	return r, nil
}
