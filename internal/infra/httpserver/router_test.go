package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimdesk/incident-api/internal/application"
	appadmin "github.com/claimdesk/incident-api/internal/application/admin"
	appanalysis "github.com/claimdesk/incident-api/internal/application/analysis"
	appcompanies "github.com/claimdesk/incident-api/internal/application/companies"
	appreports "github.com/claimdesk/incident-api/internal/application/reports"
	"github.com/claimdesk/incident-api/internal/domain/companies"
	"github.com/claimdesk/incident-api/internal/domain/detection"
	"github.com/claimdesk/incident-api/internal/domain/identity"
	"github.com/claimdesk/incident-api/internal/domain/reports"
	"github.com/claimdesk/incident-api/internal/domain/workererrors"
	"github.com/claimdesk/incident-api/internal/middleware"
)

type memDirectory struct {
	users  map[string]identity.DirectoryUser
	groups map[string][]string
}

func (m *memDirectory) ListUsers(ctx context.Context) ([]identity.DirectoryUser, error) {
	var out []identity.DirectoryUser
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}
func (m *memDirectory) GetUser(ctx context.Context, username string) (*identity.DirectoryUser, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return &u, nil
}
func (m *memDirectory) CreateUser(ctx context.Context, nu identity.NewDirectoryUser) (*identity.DirectoryUser, error) {
	u := identity.DirectoryUser{Username: nu.Username, Attributes: nu.Attributes, Enabled: true}
	m.users[nu.Username] = u
	return &u, nil
}
func (m *memDirectory) SetPassword(ctx context.Context, username, password string, permanent bool) error {
	return nil
}
func (m *memDirectory) AddToGroup(ctx context.Context, username, group string) error {
	m.groups[username] = append(m.groups[username], group)
	return nil
}
func (m *memDirectory) DeleteUser(ctx context.Context, username string) error {
	delete(m.users, username)
	return nil
}
func (m *memDirectory) ListGroups(ctx context.Context, username string) ([]string, error) {
	return m.groups[username], nil
}

type memCompanyRepo struct {
	companies map[companies.CompanyID]*companies.Company
}

func (m *memCompanyRepo) Create(ctx context.Context, c *companies.Company) error {
	for _, existing := range m.companies {
		if existing.Name == c.Name {
			return fmt.Errorf("%w: %s", companies.ErrAlreadyExists, c.Name)
		}
	}
	cp := *c
	m.companies[c.ID] = &cp
	return nil
}
func (m *memCompanyRepo) Get(ctx context.Context, id companies.CompanyID) (*companies.Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", companies.ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}
func (m *memCompanyRepo) List(ctx context.Context, limit int) ([]*companies.Company, error) {
	var out []*companies.Company
	for _, c := range m.companies {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}
func (m *memCompanyRepo) Update(ctx context.Context, c *companies.Company) error {
	if _, ok := m.companies[c.ID]; !ok {
		return fmt.Errorf("%w: %s", companies.ErrNotFound, c.ID)
	}
	cp := *c
	m.companies[c.ID] = &cp
	return nil
}

type memReportRepo struct {
	reports map[reports.ReportID]*reports.IncidentReport
}

func (m *memReportRepo) Create(ctx context.Context, r *reports.IncidentReport) error {
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}
func (m *memReportRepo) Get(ctx context.Context, id reports.ReportID) (*reports.IncidentReport, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", reports.ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}
func (m *memReportRepo) List(ctx context.Context, f reports.ListFilter) ([]*reports.IncidentReport, error) {
	var out []*reports.IncidentReport
	for _, r := range m.reports {
		if f.CompanyID != "" && r.CompanyID != f.CompanyID {
			continue
		}
		if f.SubmittedBy != "" && r.SubmittedBy != f.SubmittedBy {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}
func (m *memReportRepo) Update(ctx context.Context, r *reports.IncidentReport) error {
	if _, ok := m.reports[r.ID]; !ok {
		return fmt.Errorf("%w: %s", reports.ErrNotFound, r.ID)
	}
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}
func (m *memReportRepo) UpdateStatus(ctx context.Context, id reports.ReportID, status reports.Status) error {
	r, ok := m.reports[id]
	if !ok {
		return fmt.Errorf("%w: %s", reports.ErrNotFound, id)
	}
	r.Status = status
	return nil
}
func (m *memReportRepo) AttachAnalysis(ctx context.Context, id reports.ReportID, resultJSON, summary string, status reports.Status) error {
	r, ok := m.reports[id]
	if !ok {
		return fmt.Errorf("%w: %s", reports.ErrNotFound, id)
	}
	r.AnalysisResult = resultJSON
	r.AnalysisSummary = summary
	r.Status = status
	return nil
}
func (m *memReportRepo) SetAnalysisError(ctx context.Context, id reports.ReportID, message string) error {
	if r, ok := m.reports[id]; ok {
		r.AnalysisError = message
	}
	return nil
}

type memFailureRepo struct{ entries []*workererrors.WorkerError }

func (m *memFailureRepo) Save(ctx context.Context, e *workererrors.WorkerError) error {
	m.entries = append(m.entries, e)
	return nil
}
func (m *memFailureRepo) ListByReport(ctx context.Context, reportID string, limit int) ([]*workererrors.WorkerError, error) {
	return m.entries, nil
}

type nopDetector struct{}

func (nopDetector) Analyze(ctx context.Context, req detection.Request) (*detection.Result, error) {
	return &detection.Result{}, nil
}

type nopPhotoStore struct{}

func (nopPhotoStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	return "bucket/" + key, nil
}
func (nopPhotoStore) Copy(ctx context.Context, srcLocation, destKey string) (string, error) {
	return "bucket/" + destKey, nil
}

type testEnv struct {
	handler    http.Handler
	reportRepo *memReportRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := &memDirectory{users: map[string]identity.DirectoryUser{}, groups: map[string][]string{}}
	companyRepo := &memCompanyRepo{companies: map[companies.CompanyID]*companies.Company{}}
	reportRepo := &memReportRepo{reports: map[reports.ReportID]*reports.IncidentReport{}}
	failures := &memFailureRepo{}
	clock := application.SystemClock{}

	adminSvc := &appadmin.Service{Dir: dir}
	companySvc := &appcompanies.Service{Repo: companyRepo, Clock: clock}
	reportSvc := &appreports.Service{Repo: reportRepo, Photos: nopPhotoStore{}, Clock: clock}
	analysisSvc := &appanalysis.Service{
		Reports:  reportRepo,
		Detector: nopDetector{},
		Photos:   nopPhotoStore{},
		Failures: failures,
		Clock:    clock,
	}

	return &testEnv{
		handler:    NewRouter(adminSvc, companySvc, reportSvc, analysisSvc, failures),
		reportRepo: reportRepo,
	}
}

func doAs(t *testing.T, h http.Handler, id identity.Identity, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), id))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func routerSuperAdmin() identity.Identity {
	return identity.Identity{Username: "root@claimdesk.io", Role: identity.RoleSuperAdmin, Groups: []string{"SuperAdmin"}}
}

func TestCreateCompany_ValidationAndConflict(t *testing.T) {
	env := newTestEnv(t)

	rec := doAs(t, env.handler, routerSuperAdmin(), http.MethodPost, "/v1/companies", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var envlp errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envlp))
	assert.NotEmpty(t, envlp.Details)

	rec = doAs(t, env.handler, routerSuperAdmin(), http.MethodPost, "/v1/companies", map[string]string{"name": "Acme"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doAs(t, env.handler, routerSuperAdmin(), http.MethodPost, "/v1/companies", map[string]string{"name": "Acme"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateCompany_ForbiddenForScopedRoles(t *testing.T) {
	env := newTestEnv(t)
	admin := identity.Identity{Username: "a@acme.example", Role: identity.RoleAdmin, CompanyID: "acme"}

	rec := doAs(t, env.handler, admin, http.MethodPost, "/v1/companies", map[string]string{"name": "Rogue"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetCompany_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := doAs(t, env.handler, routerSuperAdmin(), http.MethodGet, "/v1/companies/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnauthenticatedRequestIs401(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/reports/", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReportLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	reporter := identity.Identity{
		Username: "rep@acme.example", Role: identity.RoleIncidentReporter,
		CompanyID: "acme", Groups: []string{"IncidentReporter"},
	}

	rec := doAs(t, env.handler, reporter, http.MethodPost, "/v1/reports", map[string]any{
		"title": "hail damage on roof",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created reports.IncidentReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, reports.StatusSubmitted, created.Status)
	assert.Equal(t, "acme", created.CompanyID)

	// invalid transition submitted -> resolved
	rec = doAs(t, env.handler, reporter, http.MethodPut, "/v1/reports/"+string(created.ID), map[string]string{
		"status": "resolved",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doAs(t, env.handler, reporter, http.MethodPut, "/v1/reports/"+string(created.ID), map[string]string{
		"status": "in_review",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doAs(t, env.handler, reporter, http.MethodGet, "/v1/reports/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []reports.IncidentReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)
}

func TestReportCrossTenantGetForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.reportRepo.reports["r1"] = &reports.IncidentReport{
		ID: "r1", CompanyID: "globex", SubmittedBy: "x@globex.example",
		Title: "x", Status: reports.StatusSubmitted,
	}
	admin := identity.Identity{Username: "a@acme.example", Role: identity.RoleAdmin, CompanyID: "acme"}

	rec := doAs(t, env.handler, admin, http.MethodGet, "/v1/reports/r1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAnalyzeEndpointQueuesAndReturnsAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.reportRepo.reports["r1"] = &reports.IncidentReport{
		ID: "r1", CompanyID: "acme", SubmittedBy: "rep@acme.example",
		Title: "dented door", Status: reports.StatusSubmitted,
	}
	admin := identity.Identity{Username: "a@acme.example", Role: identity.RoleAdmin, CompanyID: "acme"}

	rec := doAs(t, env.handler, admin, http.MethodPost, "/v1/reports/r1/analyze", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "queued")

	// background goroutine races the assertion; give it a moment
	time.Sleep(50 * time.Millisecond)
}

func TestAdminUsersOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := doAs(t, env.handler, routerSuperAdmin(), http.MethodPost, "/v1/admin/users", map[string]string{
		"email": "new@acme.example", "group": "Admin", "company_id": "acme",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doAs(t, env.handler, routerSuperAdmin(), http.MethodGet, "/v1/admin/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []identity.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, identity.RoleAdmin, users[0].Role)

	// missing group → 400
	rec = doAs(t, env.handler, routerSuperAdmin(), http.MethodPost, "/v1/admin/users", map[string]string{
		"email": "x@acme.example",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doAs(t, env.handler, routerSuperAdmin(), http.MethodDelete, "/v1/admin/users/new@acme.example", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminActionDispatchOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := doAs(t, env.handler, routerSuperAdmin(), http.MethodPost, "/v1/admin/actions", map[string]any{
		"action": "listUsers",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doAs(t, env.handler, routerSuperAdmin(), http.MethodPost, "/v1/admin/actions", map[string]any{
		"action": "unknownAction",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
