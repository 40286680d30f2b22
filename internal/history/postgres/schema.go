package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlHistoryRecords = `
CREATE TABLE IF NOT EXISTS history_records (
    seq         BIGSERIAL   NOT NULL,
    id          UUID        PRIMARY KEY,
    user_id     TEXT        NOT NULL,
    filename    TEXT        NOT NULL DEFAULT '',
    source      TEXT        NOT NULL,
    transcript  TEXT        NOT NULL,
    symbols     TEXT[]      NOT NULL DEFAULT '{}',
    strategy    TEXT        NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_history_records_user_created
    ON history_records (user_id, created_at DESC, seq DESC);
`

// Migrate creates the history table and its index. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlHistoryRecords); err != nil {
		return fmt.Errorf("history postgres: migrate: %w", err)
	}
	return nil
}
