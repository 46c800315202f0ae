package models

import "time"

type NotificationKind string

const (
	NotificationOrderCreated    NotificationKind = "ORDER_CREATED"
	NotificationOrderConfirmed  NotificationKind = "ORDER_CONFIRMED"
	NotificationOrderProcessing NotificationKind = "ORDER_PROCESSING"
	NotificationOrderShipped    NotificationKind = "ORDER_SHIPPED"
	NotificationOrderDelivered  NotificationKind = "ORDER_DELIVERED"
	NotificationOrderCancelled  NotificationKind = "ORDER_CANCELLED"
	NotificationSystem          NotificationKind = "SYSTEM"
)

type Notification struct {
	ID          string           `json:"id"`
	Kind        NotificationKind `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Time        string           `json:"time"`
	Read        bool             `json:"read"`
	OrderNumber string           `json:"orderNumber,omitempty"`
	OrderStatus OrderStatus      `json:"orderStatus,omitempty"`
	// Нулевое значение: "дата неизвестна", такие записи уходят в конец ленты.
	CreatedAt time.Time `json:"createdAt"`
}
