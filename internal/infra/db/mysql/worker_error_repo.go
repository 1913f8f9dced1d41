package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/claimdesk/incident-api/internal/domain/workererrors"
)

type WorkerErrorRepository struct {
	db *sql.DB
}

func NewWorkerErrorRepository(db *sql.DB) *WorkerErrorRepository {
	return &WorkerErrorRepository{db: db}
}

func (r *WorkerErrorRepository) Save(ctx context.Context, e *domain.WorkerError) error {
	const q = `
INSERT INTO analysis_failures
  (company_id, report_id, stage, message, details_json, created_at)
VALUES (?,?,?,?,?,?);
`
	company := stringOrDash(e.CompanyID)
	report := stringOrDash(e.ReportID)
	stage := stringOrDash(e.Stage)
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	details := e.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	} else {
		// ensure valid json; if invalid, wrap as string field
		var js any
		if json.Unmarshal([]byte(details), &js) != nil {
			b, _ := json.Marshal(map[string]string{"raw": details})
			details = string(b)
		}
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, company, report, stage, msg, details, created)
	return err
}

func (r *WorkerErrorRepository) ListByReport(ctx context.Context, reportID string, limit int) ([]*domain.WorkerError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, company_id, report_id, stage, message, details_json, created_at
FROM analysis_failures
WHERE report_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, reportID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.WorkerError
	for rows.Next() {
		var e domain.WorkerError
		var created time.Time
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.ReportID, &e.Stage, &e.Message, &e.DetailsJSON, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = created
		out = append(out, &e)
	}
	return out, rows.Err()
}
