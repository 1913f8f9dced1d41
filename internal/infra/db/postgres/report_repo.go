package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/claimdesk/incident-api/internal/domain/reports"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, company_id, submitted_by, title, description, photo_keys_json,
       status, result_json, summary, analysis_error, submitted_at, updated_at`

func (r *ReportRepository) Create(ctx context.Context, rep *domain.IncidentReport) error {
	const q = `
INSERT INTO incident_reports
  (id, company_id, submitted_by, title, description, photo_keys_json,
   status, result_json, summary, analysis_error, submitted_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);
`
	photos, err := encodePhotoKeys(rep.PhotoKeys)
	if err != nil {
		return err
	}
	submitted := rep.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}
	updated := rep.UpdatedAt
	if updated.IsZero() {
		updated = submitted
	}
	result := rep.AnalysisResult
	if result == "" {
		result = "{}"
	}
	_, err = r.db.ExecContext(ctx, q,
		rep.ID, rep.CompanyID, rep.SubmittedBy, rep.Title, rep.Description, photos,
		rep.Status, result, rep.AnalysisSummary, rep.AnalysisError, submitted, updated,
	)
	return err
}

func (r *ReportRepository) Get(ctx context.Context, id domain.ReportID) (*domain.IncidentReport, error) {
	q := `
SELECT ` + reportColumns + `
FROM incident_reports
WHERE id=$1 LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return rep, err
}

func (r *ReportRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.IncidentReport, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	q := `
SELECT ` + reportColumns + `
FROM incident_reports
WHERE 1=1`
	args := []any{}
	if f.CompanyID != "" {
		args = append(args, f.CompanyID)
		q += fmt.Sprintf(" AND company_id = $%d", len(args))
	}
	if f.SubmittedBy != "" {
		args = append(args, f.SubmittedBy)
		q += fmt.Sprintf(" AND submitted_by = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf("\nORDER BY submitted_at DESC LIMIT $%d;", len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.IncidentReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *ReportRepository) Update(ctx context.Context, rep *domain.IncidentReport) error {
	const q = `
UPDATE incident_reports
SET title = $1, description = $2, photo_keys_json = $3, status = $4, updated_at = $5
WHERE id = $6;
`
	photos, err := encodePhotoKeys(rep.PhotoKeys)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, rep.Title, rep.Description, photos, rep.Status, rep.UpdatedAt, rep.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, rep.ID)
	}
	return nil
}

func (r *ReportRepository) UpdateStatus(ctx context.Context, id domain.ReportID, status domain.Status) error {
	const q = `
UPDATE incident_reports
SET status = $1, updated_at = $2
WHERE id = $3;
`
	res, err := r.db.ExecContext(ctx, q, status, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return nil
}

func (r *ReportRepository) AttachAnalysis(ctx context.Context, id domain.ReportID, resultJSON, summary string, status domain.Status) error {
	if resultJSON == "" {
		resultJSON = "{}"
	}
	const q = `
UPDATE incident_reports
SET result_json = $1, summary = $2, analysis_error = '', status = $3, updated_at = $4
WHERE id = $5;
`
	res, err := r.db.ExecContext(ctx, q, resultJSON, summary, status, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return nil
}

func (r *ReportRepository) SetAnalysisError(ctx context.Context, id domain.ReportID, message string) error {
	const q = `
UPDATE incident_reports
SET analysis_error = $1, updated_at = $2
WHERE id = $3;
`
	_, err := r.db.ExecContext(ctx, q, message, time.Now(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.IncidentReport, error) {
	var rep domain.IncidentReport
	var photos string
	if err := row.Scan(
		&rep.ID, &rep.CompanyID, &rep.SubmittedBy, &rep.Title, &rep.Description, &photos,
		&rep.Status, &rep.AnalysisResult, &rep.AnalysisSummary, &rep.AnalysisError,
		&rep.SubmittedAt, &rep.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if photos != "" && photos != "[]" {
		if err := json.Unmarshal([]byte(photos), &rep.PhotoKeys); err != nil {
			return nil, fmt.Errorf("decoding photo keys for %s: %w", rep.ID, err)
		}
	}
	return &rep, nil
}

func encodePhotoKeys(keys []string) (string, error) {
	if len(keys) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("encoding photo keys: %w", err)
	}
	return string(b), nil
}
