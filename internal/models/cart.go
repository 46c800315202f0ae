package models

import "github.com/shopspring/decimal"

// Product: позиция витрины (cart-items у order-service).
type Product struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
}

type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

type CartTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type OrderItemInput struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
}

type CreateOrderInput struct {
	ShippingAddress string           `json:"shippingAddress"`
	UserName        string           `json:"userName,omitempty"`
	UserEmail       string           `json:"userEmail,omitempty"`
	Items           []OrderItemInput `json:"items"`
}
