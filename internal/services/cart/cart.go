package cart

import (
	"strings"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrNoAddress      = errors.New("shipping address is required")
	ErrUnknownProduct = errors.New("product is not in the cart")
)

// TaxRate: фиксированный налог, 10% от суммы товаров.
var TaxRate = decimal.New(10, -2)

// Cart хранится в сессии целиком (JSON), поэтому без указателей внутри.
type Cart struct {
	Items []models.CartItem `json:"items"`
}

// Add кладёт товар в корзину; повторное добавление увеличивает количество на 1.
func (c *Cart) Add(p models.Product) {
	for i := range c.Items {
		if c.Items[i].ProductID == p.ProductID {
			c.Items[i].Quantity++
			return
		}
	}
	c.Items = append(c.Items, models.CartItem{Product: p, Quantity: 1})
}

func (c *Cart) Remove(productID string) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// SetQuantity: qty <= 0 удаляет позицию.
func (c *Cart) SetQuantity(productID string, qty int) error {
	if qty <= 0 {
		if !c.Remove(productID) {
			return ErrUnknownProduct
		}
		return nil
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = qty
			return nil
		}
	}
	return ErrUnknownProduct
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c Cart) Totals() models.CartTotals {
	sub := decimal.Zero
	for _, it := range c.Items {
		sub = sub.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	sub = sub.Round(2)
	tax := sub.Mul(TaxRate).Round(2)
	return models.CartTotals{
		Subtotal: sub,
		Tax:      tax,
		Total:    sub.Add(tax),
	}
}

// Checkout собирает заказ из корзины. Корзину не очищает:
// это делает вызывающий после успешного создания заказа.
func (c Cart) Checkout(shippingAddress string, user models.User) (models.CreateOrderInput, error) {
	if len(c.Items) == 0 {
		return models.CreateOrderInput{}, ErrEmptyCart
	}
	addr := strings.TrimSpace(shippingAddress)
	if addr == "" {
		return models.CreateOrderInput{}, ErrNoAddress
	}

	in := models.CreateOrderInput{
		ShippingAddress: addr,
		UserName:        user.Username,
		UserEmail:       user.Email,
		Items:           make([]models.OrderItemInput, 0, len(c.Items)),
	}
	for _, it := range c.Items {
		in.Items = append(in.Items, models.OrderItemInput{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Image:       it.Image,
		})
	}
	return in, nil
}
