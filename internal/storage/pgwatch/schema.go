package pgwatch

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS user_watches (
  user_id TEXT PRIMARY KEY,
  last_checked_at TIMESTAMPTZ NULL,
  last_success_at TIMESTAMPTZ NULL,
  next_check_at TIMESTAMPTZ NOT NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`ALTER TABLE user_watches ADD COLUMN IF NOT EXISTS last_success_at TIMESTAMPTZ NULL`,
		`CREATE INDEX IF NOT EXISTS idx_user_watches_next_check_at ON user_watches(next_check_at)`,
		`
CREATE TABLE IF NOT EXISTS order_snapshots (
  user_id TEXT NOT NULL REFERENCES user_watches(user_id) ON DELETE CASCADE,
  order_number TEXT NOT NULL,
  status TEXT NOT NULL,
  total_amount NUMERIC NOT NULL DEFAULT 0,
  order_date TIMESTAMPTZ NULL,
  first_seen_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (user_id, order_number)
)`,
		`CREATE INDEX IF NOT EXISTS idx_order_snapshots_status ON order_snapshots(status)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
