package pgwatch

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type Watch struct {
	UserID         string     `json:"userId"`
	LastCheckedAt  *time.Time `json:"lastCheckedAt,omitempty"`
	LastSuccessAt  *time.Time `json:"lastSuccessAt,omitempty"`
	NextCheckAt    time.Time  `json:"nextCheckAt"`
	CheckFailCount int        `json:"checkFailCount"`
	LastError      *string    `json:"lastError,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

const watchColumns = `
  user_id, last_checked_at, last_success_at, next_check_at,
  check_fail_count, last_error,
  created_at, updated_at`

func scanWatch(row pgx.Row) (*Watch, error) {
	var w Watch
	if err := row.Scan(
		&w.UserID, &w.LastCheckedAt, &w.LastSuccessAt, &w.NextCheckAt,
		&w.CheckFailCount, &w.LastError,
		&w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &w, nil
}

// WatchUser ставит пользователя на наблюдение. Повторный вызов ничего не меняет,
// чтобы частые загрузки витрины не сбивали расписание проверок.
func (s *Storage) WatchUser(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userId is required")
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO user_watches (user_id, next_check_at, created_at, updated_at)
VALUES ($1, now(), now(), now())
ON CONFLICT (user_id) DO NOTHING
`, userID)
	return errors.Wrap(err, "insert watch")
}

func (s *Storage) UnwatchUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM user_watches WHERE user_id = $1`, userID)
	return errors.Wrap(err, "delete watch")
}

func (s *Storage) GetWatch(ctx context.Context, userID string) (*Watch, error) {
	w, err := scanWatch(s.db.QueryRow(ctx, `SELECT `+watchColumns+` FROM user_watches WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select watch")
	}
	return w, nil
}

// RefreshWatch делает пользователя due прямо сейчас (POST /watches/{userID}/refresh у воркера).
func (s *Storage) RefreshWatch(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `UPDATE user_watches SET next_check_at = now(), updated_at = now() WHERE user_id = $1`, userID)
	return errors.Wrap(err, "refresh watch")
}

// ClaimDueWatches выбирает пачку пользователей, которых пора проверить, и "бронирует" их
// на lease, чтобы параллельные воркеры не взяли их же. SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueWatches(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*Watch, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT `+watchColumns+`
FROM user_watches
WHERE next_check_at <= $1
ORDER BY next_check_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due watches")
	}

	var picked []*Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan due watch")
		}
		picked = append(picked, w)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, w := range picked {
		if _, err := tx.Exec(ctx, `UPDATE user_watches SET next_check_at = $2, updated_at = now() WHERE user_id = $1`, w.UserID, leaseUntil); err != nil {
			return nil, errors.Wrap(err, "lease watch")
		}
		w.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}
