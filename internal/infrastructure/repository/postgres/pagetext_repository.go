package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/scanreader/internal/core/domain"
)

type PageTextRepository struct {
	db *sql.DB
}

func NewPageTextRepository(db *sql.DB) *PageTextRepository {
	return &PageTextRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *PageTextRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS page_texts (
	document_id TEXT NOT NULL,
	page_number INTEGER NOT NULL,
	raw_text TEXT NOT NULL,
	normalized_text TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (document_id, page_number)
);

CREATE INDEX IF NOT EXISTS idx_page_texts_document ON page_texts(document_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// UpsertPageText writes a page record keyed by (document, page) so retries
// across sessions cannot duplicate rows.
func (r *PageTextRepository) UpsertPageText(ctx context.Context, documentID string, rec domain.PageTextRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO page_texts (document_id, page_number, raw_text, normalized_text, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (document_id, page_number)
DO UPDATE SET raw_text = EXCLUDED.raw_text, normalized_text = EXCLUDED.normalized_text, updated_at = EXCLUDED.updated_at
`, documentID, rec.PageNumber, rec.RawText, rec.NormalizedText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert page text: %w", err)
	}
	return nil
}

// ListPageText returns every stored record for a document in ascending page
// order, used to hydrate the session cache on open.
func (r *PageTextRepository) ListPageText(ctx context.Context, documentID string) ([]domain.PageTextRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT page_number, raw_text, normalized_text
FROM page_texts
WHERE document_id = $1
ORDER BY page_number
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list page text: %w", err)
	}
	defer rows.Close()

	var records []domain.PageTextRecord
	for rows.Next() {
		rec := domain.PageTextRecord{Origin: domain.OriginFromStore}
		if err := rows.Scan(&rec.PageNumber, &rec.RawText, &rec.NormalizedText); err != nil {
			return nil, fmt.Errorf("scan page text: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page text: %w", err)
	}
	return records, nil
}
