package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/scanreader/internal/core/domain"
)

type JobStatusRepository struct {
	db *sql.DB
}

func NewJobStatusRepository(db *sql.DB) *JobStatusRepository {
	return &JobStatusRepository{db: db}
}

func (r *JobStatusRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	document_id TEXT PRIMARY KEY,
	total_pages INTEGER NOT NULL,
	processed_count INTEGER NOT NULL,
	succeeded_count INTEGER NOT NULL,
	status TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// UpdateJobProgress upserts the latest checkpoint for a document, one row per
// document so dashboards read a single current state.
func (r *JobStatusRepository) UpdateJobProgress(ctx context.Context, state domain.BulkJobState) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extraction_jobs (document_id, total_pages, processed_count, succeeded_count, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (document_id)
DO UPDATE SET total_pages = EXCLUDED.total_pages,
	processed_count = EXCLUDED.processed_count,
	succeeded_count = EXCLUDED.succeeded_count,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at
`, state.DocumentID, state.TotalPages, state.ProcessedCount, state.SucceededCount, string(state.Status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

func (r *JobStatusRepository) GetJobProgress(ctx context.Context, documentID string) (domain.BulkJobState, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT document_id, total_pages, processed_count, succeeded_count, status
FROM extraction_jobs
WHERE document_id = $1
`, documentID)

	var state domain.BulkJobState
	var status string
	err := row.Scan(&state.DocumentID, &state.TotalPages, &state.ProcessedCount, &state.SucceededCount, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BulkJobState{}, domain.WrapError(domain.ErrDocumentNotFound, "get job progress", err)
		}
		return domain.BulkJobState{}, fmt.Errorf("scan job progress: %w", err)
	}
	state.Status = domain.JobStatus(status)
	return state, nil
}
