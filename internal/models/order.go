package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

// Статусы заказа, как их отдаёт каталог.
const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusPending:    "Pending",
	OrderStatusConfirmed:  "Confirmed",
	OrderStatusProcessing: "Processing",
	OrderStatusShipped:    "Shipped",
	OrderStatusDelivered:  "Delivered",
	OrderStatusCancelled:  "Cancelled",
}

// Label возвращает человекочитаемый статус; неизвестные статусы отдаются как есть.
func (s OrderStatus) Label() string {
	if l, ok := orderStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s OrderStatus) Known() bool {
	_, ok := orderStatusLabels[s]
	return ok
}

// Terminal: после DELIVERED/CANCELLED заказ больше не меняется.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

type LineItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

type Order struct {
	ID              string          `json:"id,omitempty"`
	OrderNumber     string          `json:"orderNumber"`
	OrderDate       *time.Time      `json:"orderDate,omitempty"`
	Status          OrderStatus     `json:"orderStatus"`
	StatusLabel     string          `json:"orderStatusLabel,omitempty"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Items           []LineItem      `json:"items"`
	ShippingAddress string          `json:"shippingAddress,omitempty"`
}

type OrderStatistics struct {
	TotalOrders       int             `json:"totalOrders"`
	TotalSpent        decimal.Decimal `json:"totalSpent"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	LastOrderDate     *time.Time      `json:"lastOrderDate,omitempty"`
	LastOrderNumber   *string         `json:"lastOrderNumber,omitempty"`
}
