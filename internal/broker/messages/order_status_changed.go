package messages

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const TopicOrderStatusChanged = "order.status_changed"

// OrderStatusChanged публикует воркер, когда у заказа пользователя появился
// новый статус (или появился сам заказ). Ключ сообщения: user_id.
type OrderStatusChanged struct {
	UserID      string `json:"user_id"`
	OrderNumber string `json:"order_number"`

	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status"`

	TotalAmount decimal.Decimal `json:"total_amount"`
	OrderDate   *time.Time      `json:"order_date,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

func (m OrderStatusChanged) Validate() error {
	if m.UserID == "" {
		return errors.New("user_id is required")
	}
	if m.OrderNumber == "" {
		return errors.New("order_number is required")
	}
	if m.NewStatus == "" {
		return errors.New("new_status is required")
	}
	return nil
}
