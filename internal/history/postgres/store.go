// Package postgres implements history.Store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/signcascade/internal/history"
	"github.com/MrWong99/signcascade/pkg/types"
)

var _ history.Store = (*Store)(nil)

// Store is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New connects to dsn, verifies the connection and runs Migrate.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool, now: time.Now}, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Save implements history.Store. Saving an existing id overwrites it.
func (s *Store) Save(ctx context.Context, rec history.Record) (history.Record, error) {
	rec = history.Prepare(rec, s.now())
	symbols := []string(rec.Symbols)
	if symbols == nil {
		symbols = []string{}
	}

	const q = `
		INSERT INTO history_records
		    (id, user_id, filename, source, transcript, symbols, strategy, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
		    user_id    = EXCLUDED.user_id,
		    filename   = EXCLUDED.filename,
		    source     = EXCLUDED.source,
		    transcript = EXCLUDED.transcript,
		    symbols    = EXCLUDED.symbols,
		    strategy   = EXCLUDED.strategy,
		    created_at = EXCLUDED.created_at`

	_, err := s.pool.Exec(ctx, q,
		rec.ID, rec.UserID, rec.Filename, string(rec.Source),
		rec.Transcript, symbols, rec.Strategy, rec.CreatedAt,
	)
	if err != nil {
		return history.Record{}, fmt.Errorf("history postgres: save %s: %w", rec.ID, err)
	}
	return rec, nil
}

// List implements history.Store.
func (s *Store) List(ctx context.Context, userID string, limit int) ([]history.Record, error) {
	const q = `
		SELECT id, user_id, filename, source, transcript, symbols, strategy, created_at
		FROM history_records
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, userID, history.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("history postgres: list: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("history postgres: list: %w", err)
	}
	if records == nil {
		records = []history.Record{}
	}
	return records, nil
}

// Get implements history.Store.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (history.Record, error) {
	const q = `
		SELECT id, user_id, filename, source, transcript, symbols, strategy, created_at
		FROM history_records
		WHERE id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return history.Record{}, fmt.Errorf("history postgres: get %s: %w", id, err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return history.Record{}, history.ErrNotFound
	}
	if err != nil {
		return history.Record{}, fmt.Errorf("history postgres: get %s: %w", id, err)
	}
	return rec, nil
}

func scanRecord(row pgx.CollectableRow) (history.Record, error) {
	var (
		rec     history.Record
		source  string
		symbols []string
	)
	if err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Filename, &source,
		&rec.Transcript, &symbols, &rec.Strategy, &rec.CreatedAt,
	); err != nil {
		return history.Record{}, err
	}
	rec.Source = history.Source(source)
	rec.Symbols = types.SymbolSequence(symbols)
	if rec.Symbols == nil {
		rec.Symbols = types.SymbolSequence{}
	}
	return rec, nil
}
