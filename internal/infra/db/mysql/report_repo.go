package mysql

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

// Create inserts an IncidentReport record
func (r *ReportRepository) Create(ctx context.Context, rep *domain.IncidentReport) error {
	const q = `
INSERT INTO incident_reports
  (id, company_id, submitted_by, title, description, photo_keys_json,
   status, result_json, summary, analysis_error, submitted_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?);
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
	_, err = r.db.ExecContext(ctx, q,
		rep.ID, rep.CompanyID, rep.SubmittedBy, rep.Title, rep.Description, photos,
		stringOrDash(string(rep.Status)), emptyJSONIfBlank(rep.AnalysisResult),
		rep.AnalysisSummary, rep.AnalysisError, submitted, updated,
	)
	if isDuplicateEntry(err) {
		return fmt.Errorf("report %s already exists: %w", rep.ID, err)
	}
	return err
}

// Get by ID
func (r *ReportRepository) Get(ctx context.Context, id domain.ReportID) (*domain.IncidentReport, error) {
	q := `
SELECT ` + reportColumns + `
FROM incident_reports
WHERE id=? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return rep, err
}

// List reports matching the filter, newest first
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
		q += " AND company_id = ?"
		args = append(args, f.CompanyID)
	}
	if f.SubmittedBy != "" {
		q += " AND submitted_by = ?"
		args = append(args, f.SubmittedBy)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	q += "\nORDER BY submitted_at DESC LIMIT ?;"
	args = append(args, limit)

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

// Update rewrites the mutable report fields
func (r *ReportRepository) Update(ctx context.Context, rep *domain.IncidentReport) error {
	const q = `
UPDATE incident_reports
SET title = ?, description = ?, photo_keys_json = ?, status = ?, updated_at = ?
WHERE id = ?;
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

// UpdateStatus only touches the status column
func (r *ReportRepository) UpdateStatus(ctx context.Context, id domain.ReportID, status domain.Status) error {
	const q = `
UPDATE incident_reports
SET status = ?, updated_at = ?
WHERE id = ?;
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

// AttachAnalysis persists the merged detection result, summary, and status
// reset in one write, clearing any previous failure annotation.
func (r *ReportRepository) AttachAnalysis(ctx context.Context, id domain.ReportID, resultJSON, summary string, status domain.Status) error {
	const q = `
UPDATE incident_reports
SET result_json = ?, summary = ?, analysis_error = '', status = ?, updated_at = ?
WHERE id = ?;
`
	res, err := r.db.ExecContext(ctx, q, emptyJSONIfBlank(resultJSON), summary, status, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return nil
}

// SetAnalysisError records a failure annotation without touching the result
func (r *ReportRepository) SetAnalysisError(ctx context.Context, id domain.ReportID, message string) error {
	const q = `
UPDATE incident_reports
SET analysis_error = ?, updated_at = ?
WHERE id = ?;
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

// emptyJSONIfBlank keeps JSON columns valid when no result is present
func emptyJSONIfBlank(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
