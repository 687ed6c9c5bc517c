package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Save inserts one append-only audit row per attempt.
func (r *AuditRepository) Save(ctx context.Context, rec *domain.AuditRecord) error {
	const q = `
INSERT INTO analysis_audit
  (id, task_id, attempt, question, files_json, status, error_detail,
   generated_code, artifact_url, execution_time, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status, error_detail=EXCLUDED.error_detail,
  artifact_url=EXCLUDED.artifact_url, execution_time=EXCLUDED.execution_time;
`
	filesJSON, err := json.Marshal(rec.Files)
	if err != nil {
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = r.db.ExecContext(ctx, q,
		rec.ID, rec.TaskID, rec.Attempt, rec.Question, string(filesJSON),
		rec.Status, rec.ErrorDetail, rec.GeneratedCode,
		rec.ArtifactURL, rec.ExecutionTime, created,
	)
	return err
}

// Get returns the latest attempt for a task.
func (r *AuditRepository) Get(ctx context.Context, id domain.TaskID) (*domain.AuditRecord, error) {
	const q = `
SELECT id, task_id, attempt, question, files_json, status, error_detail,
       generated_code, artifact_url, execution_time, created_at
FROM analysis_audit
WHERE task_id=$1 ORDER BY attempt DESC LIMIT 1;
`
	return scanRecord(r.db.QueryRowContext(ctx, q, id))
}

// Latest returns recent audit records ordered by creation time.
func (r *AuditRepository) Latest(ctx context.Context, limit int) ([]*domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, task_id, attempt, question, files_json, status, error_detail,
       generated_code, artifact_url, execution_time, created_at
FROM analysis_audit
ORDER BY created_at DESC, attempt DESC LIMIT $1;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.AuditRecord, error) {
	var rec domain.AuditRecord
	var filesJSON string
	if err := row.Scan(
		&rec.ID, &rec.TaskID, &rec.Attempt, &rec.Question, &filesJSON,
		&rec.Status, &rec.ErrorDetail, &rec.GeneratedCode,
		&rec.ArtifactURL, &rec.ExecutionTime, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(filesJSON), &rec.Files); err != nil {
		rec.Files = nil
	}
	return &rec, nil
}
