package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores analyses in two tables, legal_documents and legal_chunks.
// A document and its chunks are written in one transaction.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects and pings the database.
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Initialize creates the tables and indexes if they do not exist.
func (p *Postgres) Initialize(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS legal_documents (
			doc_id              TEXT PRIMARY KEY,
			title               TEXT NOT NULL,
			filename            TEXT,
			content_hash        TEXT NOT NULL,
			structure_source    TEXT NOT NULL,
			disclosing_party    TEXT,
			receiving_party     TEXT,
			has_exhibits        BOOLEAN NOT NULL DEFAULT FALSE,
			has_signature_block BOOLEAN NOT NULL DEFAULT FALSE,
			has_redacted_text   BOOLEAN NOT NULL DEFAULT FALSE,
			structure           JSONB NOT NULL,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create legal_documents table: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS legal_chunks (
			id             TEXT PRIMARY KEY,
			doc_id         TEXT NOT NULL REFERENCES legal_documents(doc_id) ON DELETE CASCADE,
			chunk_index    INTEGER NOT NULL,
			content        TEXT NOT NULL,
			section_path   TEXT[] NOT NULL,
			token_count    INTEGER NOT NULL,
			start_position INTEGER NOT NULL,
			end_position   INTEGER NOT NULL,
			chunk_type     TEXT NOT NULL,
			references_to  TEXT[] NOT NULL,
			skip_embedding BOOLEAN NOT NULL DEFAULT FALSE,
			metadata       JSONB NOT NULL,
			UNIQUE (doc_id, chunk_index)
		)
	`)
	if err != nil {
		return fmt.Errorf("create legal_chunks table: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS legal_documents_hash_idx ON legal_documents (content_hash);
		CREATE INDEX IF NOT EXISTS legal_chunks_type_idx ON legal_chunks (chunk_type);
	`)
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (p *Postgres) SaveAnalysis(ctx context.Context, a Analysis) error {
	structure, err := json.Marshal(a.Structure)
	if err != nil {
		return fmt.Errorf("marshal structure: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO legal_documents (
			doc_id, title, filename, content_hash, structure_source,
			disclosing_party, receiving_party, has_exhibits,
			has_signature_block, has_redacted_text, structure, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (doc_id) DO UPDATE SET
			title = EXCLUDED.title,
			filename = EXCLUDED.filename,
			content_hash = EXCLUDED.content_hash,
			structure_source = EXCLUDED.structure_source,
			disclosing_party = EXCLUDED.disclosing_party,
			receiving_party = EXCLUDED.receiving_party,
			has_exhibits = EXCLUDED.has_exhibits,
			has_signature_block = EXCLUDED.has_signature_block,
			has_redacted_text = EXCLUDED.has_redacted_text,
			structure = EXCLUDED.structure
	`,
		a.DocID, a.Title, a.Filename, a.ContentHash, string(a.Structure.Source),
		a.Structure.Parties.Disclosing, a.Structure.Parties.Receiving,
		a.Structure.HasExhibits, a.Structure.HasSignatureBlock, a.Structure.HasRedactedText,
		structure, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM legal_chunks WHERE doc_id = $1`, a.DocID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range a.Chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk %d metadata: %w", c.Index, err)
		}
		refs := c.Metadata.References
		if refs == nil {
			refs = []string{}
		}
		batch.Queue(`
			INSERT INTO legal_chunks (
				id, doc_id, chunk_index, content, section_path, token_count,
				start_position, end_position, chunk_type, references_to,
				skip_embedding, metadata
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			c.ID, a.DocID, c.Index, c.Content, c.SectionPath, c.TokenCount,
			c.StartPosition, c.EndPosition, string(c.ChunkType), refs,
			c.SkipEmbedding(), meta)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) FindByHash(ctx context.Context, contentHash string) (string, bool, error) {
	var docID string
	err := p.pool.QueryRow(ctx,
		`SELECT doc_id FROM legal_documents WHERE content_hash = $1 ORDER BY created_at LIMIT 1`,
		contentHash).Scan(&docID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find by hash: %w", err)
	}
	return docID, true, nil
}

// Close closes the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
