package notifications

import (
	"fmt"
	"sort"
	"time"

	"github.com/BearBump/StoreFront/internal/models"
)

const (
	WelcomeID      = "welcome-1"
	welcomeTitle   = "Welcome to the store"
	welcomeMessage = "Check out our best offers"
	// Приветствие всегда "вчерашнее": ниже свежей активности, выше старых заказов.
	welcomeAge = 24 * time.Hour
)

var kindByStatus = map[models.OrderStatus]models.NotificationKind{
	models.OrderStatusPending:    models.NotificationOrderCreated,
	models.OrderStatusConfirmed:  models.NotificationOrderConfirmed,
	models.OrderStatusProcessing: models.NotificationOrderProcessing,
	models.OrderStatusShipped:    models.NotificationOrderShipped,
	models.OrderStatusDelivered:  models.NotificationOrderDelivered,
	models.OrderStatusCancelled:  models.NotificationOrderCancelled,
}

var titleByStatus = map[models.OrderStatus]string{
	models.OrderStatusPending:    "Order created",
	models.OrderStatusConfirmed:  "Order confirmed",
	models.OrderStatusProcessing: "Order processing",
	models.OrderStatusShipped:    "Order shipped",
	models.OrderStatusDelivered:  "Order delivered",
	models.OrderStatusCancelled:  "Order cancelled",
}

func KindFor(status models.OrderStatus) models.NotificationKind {
	if k, ok := kindByStatus[status]; ok {
		return k
	}
	return models.NotificationOrderCreated
}

func Title(status models.OrderStatus, orderNumber string) string {
	t, ok := titleByStatus[status]
	if !ok {
		t = "Order update"
	}
	return fmt.Sprintf("%s #%s", t, orderNumber)
}

func Message(o models.Order, currency string) string {
	amount := FormatCurrency(o.TotalAmount, currency)
	switch o.Status {
	case models.OrderStatusPending:
		return fmt.Sprintf("Your order #%s of %s is awaiting confirmation.", o.OrderNumber, amount)
	case models.OrderStatusConfirmed:
		return fmt.Sprintf("Your order #%s of %s has been confirmed.", o.OrderNumber, amount)
	case models.OrderStatusProcessing:
		return fmt.Sprintf("Your order #%s is being processed.", o.OrderNumber)
	case models.OrderStatusShipped:
		return fmt.Sprintf("Your order #%s has been shipped. Your parcel is on its way.", o.OrderNumber)
	case models.OrderStatusDelivered:
		return fmt.Sprintf("Your order #%s has been delivered. Thank you for your trust!", o.OrderNumber)
	case models.OrderStatusCancelled:
		return fmt.Sprintf("Your order #%s has been cancelled.", o.OrderNumber)
	default:
		return fmt.Sprintf("Update on your order #%s", o.OrderNumber)
	}
}

// Feed: лента уведомлений одной сессии. Не потокобезопасна, синхронизация на вызывающей стороне.
type Feed struct {
	entries []models.Notification
	unread  int
}

// Derive строит ленту: по записи на заказ плюс системное приветствие, новые сверху.
func Derive(orders []models.Order, now time.Time, currency string) *Feed {
	entries := make([]models.Notification, 0, len(orders)+1)
	seen := make(map[string]bool, len(orders))
	for i, o := range orders {
		n := models.Notification{
			ID:          entryID(o.OrderNumber, i, seen),
			Kind:        KindFor(o.Status),
			Title:       Title(o.Status, o.OrderNumber),
			Message:     Message(o, currency),
			Time:        TimeAgo(now, o.OrderDate),
			OrderNumber: o.OrderNumber,
			OrderStatus: o.Status,
		}
		if o.OrderDate != nil {
			n.CreatedAt = *o.OrderDate
		}
		entries = append(entries, n)
	}

	welcomeAt := now.Add(-welcomeAge)
	entries = append(entries, models.Notification{
		ID:        WelcomeID,
		Kind:      models.NotificationSystem,
		Title:     welcomeTitle,
		Message:   welcomeMessage,
		Time:      TimeAgo(now, &welcomeAt),
		Read:      true,
		CreatedAt: welcomeAt,
	})

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	f := &Feed{entries: entries}
	f.unread = countUnread(entries)
	return f
}

// entryID: id записи уникален в ленте, даже если номера заказа нет или он повторяется.
func entryID(orderNumber string, pos int, seen map[string]bool) string {
	id := "order-" + orderNumber
	if orderNumber == "" {
		id = fmt.Sprintf("order-unnumbered-%d", pos)
	}
	if seen[id] {
		id = fmt.Sprintf("%s-%d", id, pos)
	}
	seen[id] = true
	return id
}

func countUnread(entries []models.Notification) int {
	n := 0
	for _, e := range entries {
		if !e.Read && e.Kind != models.NotificationSystem {
			n++
		}
	}
	return n
}

func (f *Feed) Entries() []models.Notification {
	out := make([]models.Notification, len(f.entries))
	copy(out, f.entries)
	return out
}

func (f *Feed) UnreadCount() int {
	return f.unread
}

// MarkAsRead отмечает одну запись; счётчик уменьшается не больше чем на 1 и не уходит ниже нуля.
func (f *Feed) MarkAsRead(id string) bool {
	for i := range f.entries {
		e := &f.entries[i]
		if e.ID != id {
			continue
		}
		if !e.Read {
			e.Read = true
			if e.Kind != models.NotificationSystem && f.unread > 0 {
				f.unread--
			}
		}
		return true
	}
	return false
}

func (f *Feed) MarkAllAsRead() {
	for i := range f.entries {
		f.entries[i].Read = true
	}
	f.unread = 0
}
