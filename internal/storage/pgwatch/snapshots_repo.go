package pgwatch

import (
	"context"
	"time"

	"github.com/BearBump/StoreFront/internal/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// CheckResult: итог одной проверки истории пользователя воркером.
type CheckResult struct {
	UserID      string
	CheckedAt   time.Time
	Orders      []models.Order
	NextCheckAt time.Time
	Error       *string
}

// StatusChange: новый заказ (OldStatus == "") или смена статуса существующего.
type StatusChange struct {
	UserID      string
	OrderNumber string
	OldStatus   models.OrderStatus
	NewStatus   models.OrderStatus
	TotalAmount decimal.Decimal
	OrderDate   *time.Time
}

type Snapshot struct {
	UserID      string             `json:"userId"`
	OrderNumber string             `json:"orderNumber"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	OrderDate   *time.Time         `json:"orderDate,omitempty"`
	FirstSeenAt time.Time          `json:"firstSeenAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// ApplyCheck сохраняет результат проверки и возвращает изменения статусов.
// Первая успешная проверка пользователя только запоминает текущее состояние:
// старая история не должна превращаться в поток уведомлений.
func (s *Storage) ApplyCheck(ctx context.Context, res CheckResult) ([]StatusChange, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if res.Error != nil && *res.Error != "" {
		_, err := tx.Exec(ctx, `
UPDATE user_watches
SET
  last_checked_at = $2,
  check_fail_count = check_fail_count + 1,
  last_error = $3,
  next_check_at = $4,
  updated_at = now()
WHERE user_id = $1
`, res.UserID, res.CheckedAt.UTC(), *res.Error, res.NextCheckAt.UTC())
		if err != nil {
			return nil, errors.Wrap(err, "update watch (error)")
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, errors.Wrap(err, "commit tx")
		}
		return nil, nil
	}

	// базу задаёт первая успешная проверка: неудачные до неё снимков не пишут
	var lastSuccess *time.Time
	err = tx.QueryRow(ctx, `SELECT last_success_at FROM user_watches WHERE user_id = $1 FOR UPDATE`, res.UserID).Scan(&lastSuccess)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Errorf("user %s is not watched", res.UserID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock watch")
	}
	baseline := lastSuccess == nil

	var changes []StatusChange
	for _, o := range res.Orders {
		if o.OrderNumber == "" {
			continue
		}
		var prev string
		err := tx.QueryRow(ctx, `SELECT status FROM order_snapshots WHERE user_id = $1 AND order_number = $2`, res.UserID, o.OrderNumber).Scan(&prev)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			prev = ""
		case err != nil:
			return nil, errors.Wrap(err, "select snapshot")
		}

		if prev == string(o.Status) {
			continue
		}
		_, err = tx.Exec(ctx, `
INSERT INTO order_snapshots (user_id, order_number, status, total_amount, order_date, first_seen_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $6)
ON CONFLICT (user_id, order_number)
DO UPDATE SET status = EXCLUDED.status, total_amount = EXCLUDED.total_amount,
              order_date = EXCLUDED.order_date, updated_at = EXCLUDED.updated_at
`, res.UserID, o.OrderNumber, string(o.Status), o.TotalAmount.String(), o.OrderDate, res.CheckedAt.UTC())
		if err != nil {
			return nil, errors.Wrap(err, "upsert snapshot")
		}

		if baseline {
			continue
		}
		changes = append(changes, StatusChange{
			UserID:      res.UserID,
			OrderNumber: o.OrderNumber,
			OldStatus:   models.OrderStatus(prev),
			NewStatus:   o.Status,
			TotalAmount: o.TotalAmount,
			OrderDate:   o.OrderDate,
		})
	}

	_, err = tx.Exec(ctx, `
UPDATE user_watches
SET
  last_checked_at = $2,
  last_success_at = $2,
  check_fail_count = 0,
  last_error = NULL,
  next_check_at = $3,
  updated_at = now()
WHERE user_id = $1
`, res.UserID, res.CheckedAt.UTC(), res.NextCheckAt.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "update watch (ok)")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return changes, nil
}

type SnapshotFilter struct {
	UserID   string
	Statuses []models.OrderStatus
	Since    *time.Time
	Limit    int
	Offset   int
}

// ListSnapshots: выборка для GET /snapshots у воркера; условия собираются squirrel-ом.
func (s *Storage) ListSnapshots(ctx context.Context, f SnapshotFilter) ([]Snapshot, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	b := sq.Select(
		"user_id", "order_number", "status", "total_amount::text",
		"order_date", "first_seen_at", "updated_at",
	).
		From("order_snapshots").
		OrderBy("updated_at DESC", "order_number").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset)).
		PlaceholderFormat(sq.Dollar)

	if f.UserID != "" {
		b = b.Where(sq.Eq{"user_id": f.UserID})
	}
	if len(f.Statuses) > 0 {
		st := make([]string, 0, len(f.Statuses))
		for _, x := range f.Statuses {
			st = append(st, string(x))
		}
		b = b.Where(sq.Eq{"status": st})
	}
	if f.Since != nil {
		b = b.Where(sq.GtOrEq{"updated_at": f.Since.UTC()})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build query")
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select snapshots")
	}
	defer rows.Close()

	out := make([]Snapshot, 0)
	for rows.Next() {
		var sn Snapshot
		var status, amount string
		if err := rows.Scan(&sn.UserID, &sn.OrderNumber, &status, &amount, &sn.OrderDate, &sn.FirstSeenAt, &sn.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan snapshot")
		}
		sn.Status = models.OrderStatus(status)
		if d, err := decimal.NewFromString(amount); err == nil {
			sn.TotalAmount = d
		}
		out = append(out, sn)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// HasActiveOrders: есть ли у пользователя заказы не в финальном статусе.
func (s *Storage) HasActiveOrders(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.db.QueryRow(ctx, `
SELECT count(*) FROM order_snapshots
WHERE user_id = $1 AND status NOT IN ($2, $3)
`, userID, string(models.OrderStatusDelivered), string(models.OrderStatusCancelled)).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "count active orders")
	}
	return n > 0, nil
}
