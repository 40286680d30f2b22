package pgvec

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlExtension = `CREATE EXTENSION IF NOT EXISTS vector;`

// ddlCorpusEntries is parameterised on the vector width.
const ddlCorpusEntries = `
CREATE TABLE IF NOT EXISTS corpus_entries (
    kind      TEXT        NOT NULL,
    ord       INTEGER     NOT NULL,
    sign_id   TEXT        NOT NULL,
    embedding vector(%d)  NOT NULL,
    PRIMARY KEY (kind, ord)
);

CREATE INDEX IF NOT EXISTS idx_corpus_entries_embedding
    ON corpus_entries USING hnsw (embedding vector_cosine_ops);
`

// Migrate creates the pgvector extension and the corpus table. It is
// idempotent. Changing dim after the first run requires dropping the table.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("pgvec: migrate: invalid vector width %d", dim)
	}
	if _, err := pool.Exec(ctx, ddlExtension); err != nil {
		return fmt.Errorf("pgvec: migrate: create extension: %w", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(ddlCorpusEntries, dim)); err != nil {
		return fmt.Errorf("pgvec: migrate: corpus_entries: %w", err)
	}
	return nil
}
