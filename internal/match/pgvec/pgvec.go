// Package pgvec implements match.Matcher on PostgreSQL with the pgvector
// extension.
//
// Corpus rows are copied into a table keyed by (kind, ord) where ord is the
// row's load position, and an HNSW index over cosine distance serves the
// lookups. HNSW is approximate: for large corpora the returned neighbour can
// differ from an exact scan. Among the Candidates closest rows the highest
// score wins and equal scores fall back to the lowest ord, so ties keep the
// load-order rule of the linear matcher.
package pgvec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/signcascade/internal/corpus"
	"github.com/MrWong99/signcascade/internal/match"
	"github.com/MrWong99/signcascade/pkg/types"
)

// DefaultCandidates is the number of nearest rows fetched per lookup.
const DefaultCandidates = 8

var _ match.Matcher = (*Matcher)(nil)

// ErrNotSynced is returned when a lookup targets a corpus that was not copied
// into the database with Sync.
var ErrNotSynced = errors.New("pgvec: corpus not synced")

// Matcher is safe for concurrent use.
type Matcher struct {
	pool       *pgxpool.Pool
	dim        int
	candidates int

	mu     sync.RWMutex
	synced map[*corpus.Corpus]struct{}
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithCandidates sets how many nearest rows are compared per lookup.
func WithCandidates(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.candidates = n
		}
	}
}

// New connects to dsn, registers pgvector types on every pooled connection
// and creates the schema for vectors of width dim.
func New(ctx context.Context, dsn string, dim int, opts ...Option) (*Matcher, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvec: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgvec: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvec: ping: %w", err)
	}
	if err := Migrate(ctx, pool, dim); err != nil {
		pool.Close()
		return nil, err
	}

	m := &Matcher{
		pool:       pool,
		dim:        dim,
		candidates: DefaultCandidates,
		synced:     make(map[*corpus.Corpus]struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Close releases the connection pool.
func (m *Matcher) Close() { m.pool.Close() }

// Ping checks database connectivity. Used by readiness probes.
func (m *Matcher) Ping(ctx context.Context) error { return m.pool.Ping(ctx) }

// Sync replaces the stored rows of c's kind with the rows of c, in one
// transaction, and marks c as available for lookups.
func (m *Matcher) Sync(ctx context.Context, c *corpus.Corpus) error {
	if c.Dim() != m.dim {
		return fmt.Errorf("pgvec: sync %s corpus: width %d, table width %d", c.Kind(), c.Dim(), m.dim)
	}
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgvec: sync: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM corpus_entries WHERE kind = $1`, string(c.Kind())); err != nil {
		return fmt.Errorf("pgvec: sync: clear %s rows: %w", c.Kind(), err)
	}
	rows := make([][]any, 0, c.Len())
	for i, e := range c.All() {
		rows = append(rows, []any{string(c.Kind()), i, e.ID, pgvector.NewVector(e.Vector)})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"corpus_entries"},
		[]string{"kind", "ord", "sign_id", "embedding"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("pgvec: sync: copy %s rows: %w", c.Kind(), err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgvec: sync: commit: %w", err)
	}

	m.mu.Lock()
	m.synced[c] = struct{}{}
	m.mu.Unlock()
	return nil
}

// NearestNeighbor implements match.Matcher.
func (m *Matcher) NearestNeighbor(ctx context.Context, query []float32, c *corpus.Corpus) (types.ReferenceEntry, float64, error) {
	if len(query) != c.Dim() {
		return types.ReferenceEntry{}, 0, &match.DimensionError{Query: len(query), Corpus: c.Dim(), Kind: c.Kind()}
	}
	m.mu.RLock()
	_, ok := m.synced[c]
	m.mu.RUnlock()
	if !ok {
		return types.ReferenceEntry{}, 0, fmt.Errorf("%w: %s corpus %q", ErrNotSynced, c.Kind(), c.Source())
	}

	const q = `
		SELECT ord, 1 - (embedding <=> $2) AS score
		FROM   corpus_entries
		WHERE  kind = $1
		ORDER  BY embedding <=> $2
		LIMIT  $3`

	rows, err := m.pool.Query(ctx, q, string(c.Kind()), pgvector.NewVector(query), m.candidates)
	if err != nil {
		return types.ReferenceEntry{}, 0, fmt.Errorf("pgvec: query: %w", err)
	}
	hits, err := pgx.CollectRows(rows, pgx.RowToStructByPos[hit])
	if err != nil {
		return types.ReferenceEntry{}, 0, fmt.Errorf("pgvec: scan: %w", err)
	}
	if len(hits) == 0 {
		return types.ReferenceEntry{}, 0, fmt.Errorf("pgvec: %s corpus has no stored rows", c.Kind())
	}

	best := pick(hits)
	if best.Ord < 0 || best.Ord >= c.Len() {
		return types.ReferenceEntry{}, 0, fmt.Errorf("pgvec: stored ord %d outside %s corpus of %d rows", best.Ord, c.Kind(), c.Len())
	}
	return c.Entry(best.Ord), best.Score, nil
}

type hit struct {
	Ord   int
	Score float64
}

// pick returns the highest scoring hit, preferring the lowest ord on ties.
func pick(hits []hit) hit {
	best := hits[0]
	for _, h := range hits[1:] {
		if h.Score > best.Score || (h.Score == best.Score && h.Ord < best.Ord) {
			best = h
		}
	}
	return best
}
