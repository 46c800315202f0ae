package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Review struct {
	ID          string     `json:"id,omitempty"`
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName,omitempty"`
	ProductID   string     `json:"productId"`
	ProductName string     `json:"productName,omitempty"`
	Rating      int        `json:"rating"`
	Comment     string     `json:"comment"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

type ReviewInput struct {
	UserID    string `json:"userId"`
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// PurchasedProduct: товар из доставленного заказа пользователя.
type PurchasedProduct struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	OrderNumber string          `json:"orderNumber"`
	OrderDate   *time.Time      `json:"orderDate,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}
