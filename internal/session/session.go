package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/BearBump/StoreFront/internal/cache"
	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/cart"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("session not found")

const DefaultTTL = 24 * time.Hour

// Session: токены и денормализованный профиль пользователя.
type Session struct {
	ID           string      `json:"id"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	User         models.User `json:"user"`
	CreatedAt    time.Time   `json:"createdAt"`
}

type Store struct {
	c   cache.BytesCache
	ttl time.Duration
	now func() time.Time
}

func NewStore(c cache.BytesCache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{c: c, ttl: ttl, now: time.Now}
}

func sessionKey(id string) string { return "session:" + id }
func cartKey(id string) string    { return "cart:" + id }

// Start заводит новую сессию после успешного логина.
func (s *Store) Start(ctx context.Context, res models.LoginResult) (Session, error) {
	if strings.TrimSpace(res.AccessToken) == "" {
		return Session{}, errors.New("login result without token")
	}
	sess := Session{
		ID:           uuid.NewString(),
		Token:        res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         res.User,
		CreatedAt:    s.now().UTC(),
	}
	if err := cache.SetJSON(ctx, s.c, sessionKey(sess.ID), sess, s.ttl); err != nil {
		return Session{}, errors.Wrap(err, "save session")
	}
	return sess, nil
}

func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNotFound
	}
	var sess Session
	ok, err := cache.GetJSON(ctx, s.c, sessionKey(id), &sess)
	if err != nil {
		return Session{}, errors.Wrap(err, "load session")
	}
	if !ok || sess.Token == "" {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// UpdateUser обновляет профиль (после /me), токены не трогает.
func (s *Store) UpdateUser(ctx context.Context, id string, u models.User) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.User = u
	return cache.SetJSON(ctx, s.c, sessionKey(id), sess, s.ttl)
}

// Clear удаляет токены, профиль и корзину. Отсутствующая сессия не ошибка.
func (s *Store) Clear(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.c.Del(ctx, sessionKey(id), cartKey(id))
}

func (s *Store) Cart(ctx context.Context, id string) (cart.Cart, error) {
	var c cart.Cart
	if _, err := cache.GetJSON(ctx, s.c, cartKey(id), &c); err != nil {
		return cart.Cart{}, errors.Wrap(err, "load cart")
	}
	return c, nil
}

func (s *Store) SaveCart(ctx context.Context, id string, c cart.Cart) error {
	if len(c.Items) == 0 {
		return s.c.Del(ctx, cartKey(id))
	}
	return cache.SetJSON(ctx, s.c, cartKey(id), c, s.ttl)
}

// UpdateCart меняет корзину атомарно: параллельные запросы одной сессии не теряют изменения.
// fn может вызываться повторно, поэтому должна зависеть только от переданной корзины.
func (s *Store) UpdateCart(ctx context.Context, id string, fn func(c *cart.Cart) error) (cart.Cart, error) {
	var out cart.Cart
	err := cache.Update(ctx, s.c, cartKey(id), s.ttl, func(cur []byte, ok bool) ([]byte, error) {
		var c cart.Cart
		if ok {
			if err := json.Unmarshal(cur, &c); err != nil {
				return nil, errors.Wrap(err, "decode cart")
			}
		}
		if err := fn(&c); err != nil {
			return nil, err
		}
		out = c
		if len(c.Items) == 0 {
			return nil, nil
		}
		return json.Marshal(c)
	})
	if err != nil {
		return cart.Cart{}, err
	}
	return out, nil
}
