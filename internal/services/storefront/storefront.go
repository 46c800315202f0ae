package storefront

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/StoreFront/internal/cache"
	"github.com/BearBump/StoreFront/internal/integrations/shop"
	"github.com/BearBump/StoreFront/internal/metrics"
	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/cart"
	"github.com/BearBump/StoreFront/internal/services/history"
	"github.com/BearBump/StoreFront/internal/services/notifications"
	"github.com/BearBump/StoreFront/internal/session"
	"github.com/pkg/errors"
)

var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	// ErrSessionExpired: бэкенд ответил 401, сессия уже очищена.
	ErrSessionExpired       = errors.New("session expired")
	ErrInvalidInput         = errors.New("invalid input")
	ErrPasswordMismatch     = errors.New("passwords do not match")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrNoOrderHistoryLoaded = errors.New("order history is not loaded")
)

// sessionGone: ошибки, после которых страница не рисуется, а клиента отправляют на логин.
func sessionGone(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrNotAuthenticated)
}

type Sessions interface {
	Start(ctx context.Context, res models.LoginResult) (session.Session, error)
	Get(ctx context.Context, id string) (session.Session, error)
	UpdateUser(ctx context.Context, id string, u models.User) error
	Clear(ctx context.Context, id string) error
	Cart(ctx context.Context, id string) (cart.Cart, error)
	SaveCart(ctx context.Context, id string, c cart.Cart) error
	UpdateCart(ctx context.Context, id string, fn func(c *cart.Cart) error) (cart.Cart, error)
}

// Watcher регистрирует пользователя для фонового отслеживания статусов заказов.
type Watcher interface {
	WatchUser(ctx context.Context, userID string) error
}

type Options struct {
	Currency string
	// HistoryTTL: при 0 кэш истории выключен, каждая загрузка идёт в каталог.
	HistoryTTL time.Duration
	Now        func() time.Time
}

type Service struct {
	backends shop.Backends
	sessions Sessions
	cache    cache.BytesCache
	watcher  Watcher
	metrics  *metrics.Registry
	views    *Views
	opts     Options
}

// New: cache, watcher и metrics могут быть nil.
func New(b shop.Backends, sessions Sessions, c cache.BytesCache, w Watcher, m *metrics.Registry, opts Options) *Service {
	if opts.Currency == "" {
		opts.Currency = notifications.DefaultCurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		backends: b,
		sessions: sessions,
		cache:    c,
		watcher:  w,
		metrics:  m,
		views:    NewViews(opts.Now),
		opts:     opts,
	}
}

func (s *Service) Views() *Views { return s.views }

func (s *Service) session(ctx context.Context, sid string) (session.Session, error) {
	sess, err := s.sessions.Get(ctx, sid)
	if errors.Is(err, session.ErrNotFound) {
		return session.Session{}, ErrNotAuthenticated
	}
	return sess, err
}

// backendErr: единственная сквозная политика: 401 от любого бэкенда очищает сессию.
func (s *Service) backendErr(ctx context.Context, sid string, err error) error {
	if !errors.Is(err, shop.ErrUnauthorized) {
		return err
	}
	if cerr := s.sessions.Clear(ctx, sid); cerr != nil {
		slog.Error("clear expired session", "err", cerr)
	}
	s.views.Drop(sid)
	slog.Info("session expired", "session", sid)
	return ErrSessionExpired
}

func (s *Service) countLoad(result string) {
	if s.metrics != nil {
		s.metrics.OrderLoads.WithLabelValues(result).Inc()
	}
}

func historyKey(userID string) string { return "history:" + userID }

// historyBytes: кэш (если включён), иначе каталог.
func (s *Service) historyBytes(ctx context.Context, sess session.Session) ([]byte, error) {
	useCache := s.cache != nil && s.opts.HistoryTTL > 0
	if useCache {
		if b, ok, err := s.cache.Get(ctx, historyKey(sess.User.ID)); err == nil && ok {
			s.countLoad("cached")
			return b, nil
		} else if err != nil {
			slog.Warn("history cache get", "user", sess.User.ID, "err", err)
		}
	}

	raw, err := s.backends.Catalogue.GetUserOrderHistory(ctx, sess.Token, sess.User.ID)
	if err != nil {
		return nil, err
	}
	if useCache {
		if err := s.cache.Set(ctx, historyKey(sess.User.ID), raw, s.opts.HistoryTTL); err != nil {
			slog.Warn("history cache set", "user", sess.User.ID, "err", err)
		}
	}
	return raw, nil
}

// InvalidateHistory вызывается по событию order.status_changed.
func (s *Service) InvalidateHistory(ctx context.Context, userID string) error {
	if s.cache == nil || userID == "" {
		return nil
	}
	return s.cache.Del(ctx, historyKey(userID))
}

// loadOrders грузит историю, нормализует её и фиксирует снимок с учётом поколений.
// Если загрузку обогнала более новая, возвращается уже зафиксированное состояние.
func (s *Service) loadOrders(ctx context.Context, sid string, sess session.Session) (Snapshot, error) {
	gen := s.views.Begin(sid)

	raw, err := s.historyBytes(ctx, sess)
	if err != nil {
		s.countLoad("failed")
		return Snapshot{}, s.backendErr(ctx, sid, err)
	}

	now := s.opts.Now()
	orders := history.Normalize(raw)
	feed := notifications.Derive(orders, now, s.opts.Currency)

	snap, res := s.views.Commit(sid, gen, orders, feed, now)
	if res == Dropped {
		// состояние сбросили во время загрузки: logout и 401 очищают и сессию
		if _, err := s.session(ctx, sid); err != nil {
			s.countLoad("dropped")
			return Snapshot{}, err
		}
		snap, res = s.views.Commit(sid, s.views.Begin(sid), orders, feed, now)
	}
	switch res {
	case Committed:
		s.countLoad("ok")
	case Stale:
		if s.metrics != nil {
			s.metrics.StaleLoads.Inc()
		}
		slog.Debug("stale order load discarded", "session", sid, "generation", gen)
	default:
		snap = buildSnapshot(gen, now, orders, feed)
	}

	if s.watcher != nil && sess.User.ID != "" {
		if err := s.watcher.WatchUser(ctx, sess.User.ID); err != nil {
			slog.Warn("watch user", "user", sess.User.ID, "err", err)
		}
	}
	return snap, nil
}

type OrdersView struct {
	Orders     []models.Order         `json:"orders"`
	Stats      models.OrderStatistics `json:"stats"`
	Page       int                    `json:"page"`
	PerPage    int                    `json:"perPage"`
	TotalPages int                    `json:"totalPages"`
	Total      int                    `json:"total"`
	LoadFailed bool                   `json:"loadFailed"`
}

// Orders: страница "мои заказы": свежая загрузка, фильтр, пагинация, статистика по всем заказам.
func (s *Service) Orders(ctx context.Context, sid string, q history.Query, page int) (OrdersView, error) {
	sess, err := s.session(ctx, sid)
	if err != nil {
		return OrdersView{}, err
	}

	snap, err := s.loadOrders(ctx, sid, sess)
	if err != nil {
		if sessionGone(err) {
			return OrdersView{}, err
		}
		slog.Error("load orders", "user", sess.User.ID, "err", err)
		return OrdersView{
			Orders:     []models.Order{},
			Stats:      history.Stats(nil),
			Page:       1,
			PerPage:    history.DefaultPerPage,
			LoadFailed: true,
		}, nil
	}

	p := history.Paginate(history.Filter(snap.Orders, q), page, history.DefaultPerPage)
	return OrdersView{
		Orders:     p.Items,
		Stats:      history.Stats(snap.Orders),
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: p.TotalPages,
		Total:      p.Total,
	}, nil
}

type NotificationsView struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
	LoadFailed    bool                  `json:"loadFailed"`
}

func notificationsView(snap Snapshot) NotificationsView {
	n := snap.Notifications
	if n == nil {
		n = []models.Notification{}
	}
	return NotificationsView{Notifications: n, UnreadCount: snap.UnreadCount}
}

// Notifications отдаёт текущую ленту; refresh или отсутствие ленты: новая загрузка
// (флаги прочтения при этом сбрасываются).
func (s *Service) Notifications(ctx context.Context, sid string, refresh bool) (NotificationsView, error) {
	sess, err := s.session(ctx, sid)
	if err != nil {
		return NotificationsView{}, err
	}
	if !refresh {
		if snap, ok := s.views.Current(sid); ok {
			return notificationsView(snap), nil
		}
	}

	snap, err := s.loadOrders(ctx, sid, sess)
	if err != nil {
		if sessionGone(err) {
			return NotificationsView{}, err
		}
		slog.Error("load notifications", "user", sess.User.ID, "err", err)
		return NotificationsView{Notifications: []models.Notification{}, LoadFailed: true}, nil
	}
	return notificationsView(snap), nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, sid, id string) (NotificationsView, error) {
	if _, err := s.session(ctx, sid); err != nil {
		return NotificationsView{}, err
	}
	snap, found := s.views.MarkAsRead(sid, id)
	if !found {
		return NotificationsView{}, ErrNotificationNotFound
	}
	return notificationsView(snap), nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, sid string) (NotificationsView, error) {
	if _, err := s.session(ctx, sid); err != nil {
		return NotificationsView{}, err
	}
	snap, ok := s.views.MarkAllAsRead(sid)
	if !ok {
		return NotificationsView{}, ErrNoOrderHistoryLoaded
	}
	return notificationsView(snap), nil
}
