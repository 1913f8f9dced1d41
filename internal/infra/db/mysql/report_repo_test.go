package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/claimdesk/incident-api/internal/domain/reports"
)

func newMock(t *testing.T) (*ReportRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReportRepository(db), mock
}

var reportCols = []string{
	"id", "company_id", "submitted_by", "title", "description", "photo_keys_json",
	"status", "result_json", "summary", "analysis_error", "submitted_at", "updated_at",
}

func TestReportCreate_EncodesPhotoKeys(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectExec("INSERT INTO incident_reports").
		WithArgs("r1", "acme", "rep@acme.example", "hail damage", "roof",
			`["acme/r1/photos/a.jpg"]`, "submitted", "{}", "", "", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &domain.IncidentReport{
		ID: "r1", CompanyID: "acme", SubmittedBy: "rep@acme.example",
		Title: "hail damage", Description: "roof",
		PhotoKeys: []string{"acme/r1/photos/a.jpg"},
		Status:    domain.StatusSubmitted,
		SubmittedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportGet_DecodesPhotoKeys(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM incident_reports").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(reportCols).AddRow(
			"r1", "acme", "rep@acme.example", "hail damage", "",
			`["acme/r1/photos/a.jpg","acme/r1/photos/b.png"]`,
			"submitted", "{}", "", "", now, now,
		))

	rep, err := repo.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/r1/photos/a.jpg", "acme/r1/photos/b.png"}, rep.PhotoKeys)
	assert.Equal(t, domain.StatusSubmitted, rep.Status)
}

func TestReportGet_NotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM incident_reports").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(reportCols))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReportList_AppliesFilters(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM incident_reports WHERE 1=1 AND company_id = \\? AND status = \\?").
		WithArgs("acme", "in_review", 50).
		WillReturnRows(sqlmock.NewRows(reportCols).AddRow(
			"r1", "acme", "rep@acme.example", "t", "", "[]",
			"in_review", "{}", "", "", now, now,
		))

	out, err := repo.List(context.Background(), domain.ListFilter{
		CompanyID: "acme", Status: domain.StatusInReview,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].PhotoKeys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportAttachAnalysis_ClearsFailureAnnotation(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("UPDATE incident_reports SET result_json = \\?, summary = \\?, analysis_error = '', status = \\?").
		WithArgs(`{"detections":[]}`, "no damage visible", "submitted", sqlmock.AnyArg(), "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AttachAnalysis(context.Background(), "r1", `{"detections":[]}`, "no damage visible", domain.StatusSubmitted)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportUpdate_NotFoundOnZeroRows(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("UPDATE incident_reports").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.IncidentReport{ID: "missing", Title: "t"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
