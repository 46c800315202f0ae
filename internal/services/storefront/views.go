package storefront

import (
	"sync"
	"time"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/notifications"
)

// Snapshot: зафиксированное состояние одной сессии: заказы и лента уведомлений.
type Snapshot struct {
	Generation    uint64
	LoadedAt      time.Time
	Orders        []models.Order
	Notifications []models.Notification
	UnreadCount   int
}

// CommitResult: чем закончился Commit.
type CommitResult int

const (
	Committed CommitResult = iota
	// Stale: уже зафиксировано поколение новее.
	Stale
	// Dropped: состояние сессии сбросили (logout, 401, Prune), пока шла загрузка.
	Dropped
)

type viewState struct {
	touched   time.Time
	committed uint64
	loadedAt  time.Time
	orders    []models.Order
	feed      *notifications.Feed
}

func (st *viewState) snapshot() Snapshot {
	return buildSnapshot(st.committed, st.loadedAt, st.orders, st.feed)
}

func buildSnapshot(gen uint64, at time.Time, orders []models.Order, feed *notifications.Feed) Snapshot {
	s := Snapshot{Generation: gen, LoadedAt: at, Orders: orders}
	if feed != nil {
		s.Notifications = feed.Entries()
		s.UnreadCount = feed.UnreadCount()
	}
	return s
}

// Views хранит состояние представлений по сессиям.
// Каждая загрузка берёт номер поколения до запроса в бэкенд; результат фиксируется,
// только если более новое поколение ещё не зафиксировано.
// Счётчик поколений общий и не сбрасывается Drop/Prune: загрузка, начатая до сброса,
// не перезапишет начатую после.
type Views struct {
	mu        sync.Mutex
	now       func() time.Time
	gen       uint64
	bySession map[string]*viewState
}

// NewViews: now задаёт часы для Prune, nil означает time.Now.
func NewViews(now func() time.Time) *Views {
	if now == nil {
		now = time.Now
	}
	return &Views{now: now, bySession: make(map[string]*viewState)}
}

// lookupLocked возвращает состояние и продлевает ему жизнь.
func (v *Views) lookupLocked(sessionID string) (*viewState, bool) {
	st, ok := v.bySession[sessionID]
	if ok {
		st.touched = v.now()
	}
	return st, ok
}

// Begin выдаёт номер поколения для новой загрузки.
func (v *Views) Begin(sessionID string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.lookupLocked(sessionID)
	if !ok {
		st = &viewState{touched: v.now()}
		v.bySession[sessionID] = st
	}
	v.gen++
	return v.gen
}

// Commit фиксирует результат загрузки gen. При Stale возвращается текущее состояние,
// при Dropped: пустой снимок.
func (v *Views) Commit(sessionID string, gen uint64, orders []models.Order, feed *notifications.Feed, at time.Time) (Snapshot, CommitResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.lookupLocked(sessionID)
	if !ok {
		return Snapshot{}, Dropped
	}
	if gen <= st.committed {
		return st.snapshot(), Stale
	}
	st.committed = gen
	st.loadedAt = at
	st.orders = orders
	st.feed = feed
	return st.snapshot(), Committed
}

func (v *Views) Current(sessionID string) (Snapshot, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.lookupLocked(sessionID)
	if !ok || st.committed == 0 {
		return Snapshot{}, false
	}
	return st.snapshot(), true
}

// MarkAsRead возвращает found=false, если ленты нет или записи с таким id нет.
func (v *Views) MarkAsRead(sessionID, id string) (Snapshot, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.lookupLocked(sessionID)
	if !ok || st.feed == nil {
		return Snapshot{}, false
	}
	found := st.feed.MarkAsRead(id)
	return st.snapshot(), found
}

func (v *Views) MarkAllAsRead(sessionID string) (Snapshot, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.lookupLocked(sessionID)
	if !ok || st.feed == nil {
		return Snapshot{}, false
	}
	st.feed.MarkAllAsRead()
	return st.snapshot(), true
}

func (v *Views) Drop(sessionID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.bySession, sessionID)
}

func (v *Views) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.bySession)
}

// Prune выкидывает состояния, к которым не обращались с before.
func (v *Views) Prune(before time.Time) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for id, st := range v.bySession {
		if st.touched.Before(before) {
			delete(v.bySession, id)
			n++
		}
	}
	return n
}
