package storefront

import (
	"context"
	"log/slog"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/cart"
)

type CartView struct {
	Items  []models.CartItem `json:"items"`
	Count  int               `json:"count"`
	Totals models.CartTotals `json:"totals"`
}

func cartView(c cart.Cart) CartView {
	items := c.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return CartView{Items: items, Count: c.Count(), Totals: c.Totals()}
}

// Products: витрина магазина (cart-items у order-service).
func (s *Service) Products(ctx context.Context, sid string) ([]models.Product, error) {
	sess, err := s.session(ctx, sid)
	if err != nil {
		return nil, err
	}
	ps, err := s.backends.Orders.GetCartItems(ctx, sess.Token)
	if err != nil {
		return nil, s.backendErr(ctx, sid, err)
	}
	return ps, nil
}

func (s *Service) Cart(ctx context.Context, sid string) (CartView, error) {
	if _, err := s.session(ctx, sid); err != nil {
		return CartView{}, err
	}
	c, err := s.sessions.Cart(ctx, sid)
	if err != nil {
		return CartView{}, err
	}
	return cartView(c), nil
}

// AddToCart берёт актуальные цену и название из витрины, а не от клиента.
func (s *Service) AddToCart(ctx context.Context, sid, productID string) (CartView, error) {
	ps, err := s.Products(ctx, sid)
	if err != nil {
		return CartView{}, err
	}
	var p *models.Product
	for i := range ps {
		if ps[i].ProductID == productID {
			p = &ps[i]
			break
		}
	}
	if p == nil {
		return CartView{}, ErrProductNotFound
	}
	return s.updateCart(ctx, sid, func(c *cart.Cart) error {
		c.Add(*p)
		return nil
	})
}

func (s *Service) UpdateCartItem(ctx context.Context, sid, productID string, qty int) (CartView, error) {
	return s.updateCart(ctx, sid, func(c *cart.Cart) error {
		return c.SetQuantity(productID, qty)
	})
}

func (s *Service) RemoveCartItem(ctx context.Context, sid, productID string) (CartView, error) {
	return s.updateCart(ctx, sid, func(c *cart.Cart) error {
		if !c.Remove(productID) {
			return cart.ErrUnknownProduct
		}
		return nil
	})
}

func (s *Service) ClearCart(ctx context.Context, sid string) (CartView, error) {
	return s.updateCart(ctx, sid, func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

func (s *Service) updateCart(ctx context.Context, sid string, fn func(c *cart.Cart) error) (CartView, error) {
	if _, err := s.session(ctx, sid); err != nil {
		return CartView{}, err
	}
	c, err := s.sessions.UpdateCart(ctx, sid, fn)
	if err != nil {
		return CartView{}, err
	}
	return cartView(c), nil
}

type CheckoutResult struct {
	OrderNumber string            `json:"orderNumber"`
	Totals      models.CartTotals `json:"totals"`
}

// Checkout создаёт заказ из корзины; корзина очищается только после успеха.
func (s *Service) Checkout(ctx context.Context, sid, shippingAddress string) (CheckoutResult, error) {
	sess, err := s.session(ctx, sid)
	if err != nil {
		return CheckoutResult{}, err
	}
	c, err := s.sessions.Cart(ctx, sid)
	if err != nil {
		return CheckoutResult{}, err
	}
	in, err := c.Checkout(shippingAddress, sess.User)
	if err != nil {
		return CheckoutResult{}, err
	}

	num, err := s.backends.Orders.CreateOrder(ctx, sess.Token, in)
	if err != nil {
		return CheckoutResult{}, s.backendErr(ctx, sid, err)
	}
	res := CheckoutResult{OrderNumber: num, Totals: c.Totals()}

	if err := s.sessions.SaveCart(ctx, sid, cart.Cart{}); err != nil {
		slog.Error("clear cart after checkout", "session", sid, "err", err)
	}
	if err := s.InvalidateHistory(ctx, sess.User.ID); err != nil {
		slog.Warn("invalidate history", "user", sess.User.ID, "err", err)
	}
	slog.Info("order created", "user", sess.User.ID, "order", num, "items", len(in.Items))
	return res, nil
}
