// Package catalog mirrors the documents and chunks of each committed index
// generation into PostgreSQL, so operators can query what the knowledge
// base holds. The index files stay the source of truth for retrieval.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/postgres"
)

// Schema creates the catalog tables. Sync keeps them equal to the latest
// generation: rows from older generations are deleted.
const Schema = `
CREATE TABLE IF NOT EXISTS kb_document (
    document_id    TEXT PRIMARY KEY,
    filename       TEXT NOT NULL,
    title          TEXT NOT NULL,
    source_type    TEXT NOT NULL,
    objective_slug TEXT NOT NULL,
    generation     BIGINT NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ix_kb_document_objective_slug ON kb_document (objective_slug);

CREATE TABLE IF NOT EXISTS kb_chunk (
    chunk_id       TEXT PRIMARY KEY,
    document_id    TEXT NOT NULL REFERENCES kb_document (document_id) ON DELETE CASCADE,
    position       INTEGER NOT NULL,
    section_type   TEXT NOT NULL,
    objective_slug TEXT NOT NULL,
    content_text   TEXT NOT NULL,
    generation     BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_kb_chunk_document_id ON kb_chunk (document_id);
CREATE INDEX IF NOT EXISTS ix_kb_chunk_section_type ON kb_chunk (section_type);
`

const (
	upsertDocument = `INSERT INTO kb_document (document_id, filename, title, source_type, objective_slug, generation, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (document_id) DO UPDATE SET
    filename = EXCLUDED.filename, title = EXCLUDED.title, source_type = EXCLUDED.source_type,
    objective_slug = EXCLUDED.objective_slug, generation = EXCLUDED.generation, updated_at = NOW()`

	upsertChunk = `INSERT INTO kb_chunk (chunk_id, document_id, position, section_type, objective_slug, content_text, generation)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (chunk_id) DO UPDATE SET
    document_id = EXCLUDED.document_id, position = EXCLUDED.position, section_type = EXCLUDED.section_type,
    objective_slug = EXCLUDED.objective_slug, content_text = EXCLUDED.content_text, generation = EXCLUDED.generation`

	deleteStaleChunks    = `DELETE FROM kb_chunk WHERE generation <> $1 OR NOT (document_id = ANY($2))`
	deleteStaleDocuments = `DELETE FROM kb_document WHERE NOT (document_id = ANY($1))`
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Catalog implements indexer.Catalog on PostgreSQL.
type Catalog struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Catalog {
	return &Catalog{
		db:     db,
		logger: slog.Default().With("component", "catalog"),
	}
}

// EnsureSchema creates the catalog tables when missing.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	return nil
}

// Sync replaces the catalog contents with one generation in a single
// transaction.
func (c *Catalog) Sync(ctx context.Context, generation uint64, docs []corpus.Document, chunks []corpus.Chunk) error {
	err := c.db.InTx(ctx, func(tx *sql.Tx) error {
		return write(ctx, tx, generation, docs, chunks)
	})
	if err != nil {
		return fmt.Errorf("syncing catalog generation %d: %w", generation, err)
	}
	c.logger.Info("catalog synced", "generation", generation, "documents", len(docs), "chunks", len(chunks))
	return nil
}

func write(ctx context.Context, db execer, generation uint64, docs []corpus.Document, chunks []corpus.Chunk) error {
	gen := int64(generation)
	slugs := make(map[string]string, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		slugs[d.ID] = d.ObjectiveSlug
		ids[i] = d.ID
		if _, err := db.ExecContext(ctx, upsertDocument, d.ID, d.Path, d.Title, d.SourceType, d.ObjectiveSlug, gen); err != nil {
			return fmt.Errorf("upserting document %s: %w", d.ID, err)
		}
	}
	for _, ch := range chunks {
		slug, ok := slugs[ch.DocumentID]
		if !ok {
			return fmt.Errorf("chunk %s references unknown document %s", ch.ID, ch.DocumentID)
		}
		if _, err := db.ExecContext(ctx, upsertChunk, ch.ID, ch.DocumentID, ch.Position, ch.SectionType, slug, ch.Text, gen); err != nil {
			return fmt.Errorf("upserting chunk %s: %w", ch.ID, err)
		}
	}
	if _, err := db.ExecContext(ctx, deleteStaleChunks, gen, pq.Array(ids)); err != nil {
		return fmt.Errorf("deleting stale chunks: %w", err)
	}
	if _, err := db.ExecContext(ctx, deleteStaleDocuments, pq.Array(ids)); err != nil {
		return fmt.Errorf("deleting stale documents: %w", err)
	}
	return nil
}
