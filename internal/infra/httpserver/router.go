package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appadmin "github.com/claimdesk/incident-api/internal/application/admin"
	appanalysis "github.com/claimdesk/incident-api/internal/application/analysis"
	appcompanies "github.com/claimdesk/incident-api/internal/application/companies"
	appreports "github.com/claimdesk/incident-api/internal/application/reports"
	domcompanies "github.com/claimdesk/incident-api/internal/domain/companies"
	"github.com/claimdesk/incident-api/internal/domain/identity"
	domreports "github.com/claimdesk/incident-api/internal/domain/reports"
	"github.com/claimdesk/incident-api/internal/domain/workererrors"
	"github.com/claimdesk/incident-api/internal/middleware"
)

const maxPhotoUploadBytes = 16 << 20

type Router struct {
	adminSvc    *appadmin.Service
	companySvc  *appcompanies.Service
	reportSvc   *appreports.Service
	analysisSvc *appanalysis.Service
	failures    workererrors.Repository
}

func NewRouter(adminSvc *appadmin.Service, companySvc *appcompanies.Service, reportSvc *appreports.Service, analysisSvc *appanalysis.Service, failures workererrors.Repository) http.Handler {
	r := &Router{
		adminSvc:    adminSvc,
		companySvc:  companySvc,
		reportSvc:   reportSvc,
		analysisSvc: analysisSvc,
		failures:    failures,
	}
	mux := chi.NewRouter()

	mux.Route("/v1", func(rt chi.Router) {
		rt.Route("/admin", func(ad chi.Router) {
			ad.Get("/users", r.wrap(r.handleListUsers))
			ad.Post("/users", r.wrap(r.handleCreateUser))
			ad.Delete("/users/{username}", r.wrap(r.handleDeleteUser))
			ad.Post("/actions", r.wrap(r.handleAdminAction))
		})

		rt.Route("/companies", func(co chi.Router) {
			co.Get("/", r.wrap(r.handleListCompanies))
			co.Post("/", r.wrap(r.handleCreateCompany))
			co.Get("/{id}", r.wrap(r.handleGetCompany))
			co.Put("/{id}", r.wrap(r.handleUpdateCompany))
		})

		rt.Route("/reports", func(re chi.Router) {
			re.Get("/", r.wrap(r.handleListReports))
			re.Post("/", r.wrap(r.handleCreateReport))
			re.Get("/{id}", r.wrap(r.handleGetReport))
			re.Put("/{id}", r.wrap(r.handleUpdateReport))
			re.Post("/{id}/photos", r.wrap(r.handleUploadPhoto))
			re.Post("/{id}/analyze", r.wrap(r.handleAnalyzeReport))
			re.Get("/{id}/failures", r.wrap(r.handleListFailures))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			writeError(w, err)
		}
	}
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, domcompanies.ErrInvalidInput),
		errors.Is(err, domreports.ErrInvalidInput),
		errors.Is(err, domreports.ErrInvalidTransition):
		status = http.StatusBadRequest
	case errors.Is(err, identity.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, identity.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, sql.ErrNoRows),
		errors.Is(err, identity.ErrNotFound),
		errors.Is(err, domcompanies.ErrNotFound),
		errors.Is(err, domreports.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, identity.ErrExists),
		errors.Is(err, domcompanies.ErrAlreadyExists):
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorEnvelope{
		Error:   http.StatusText(status),
		Details: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func caller(req *http.Request) (identity.Identity, error) {
	id, ok := middleware.IdentityFromContext(req.Context())
	if !ok {
		return identity.Identity{}, fmt.Errorf("%w: no authenticated caller", identity.ErrUnauthorized)
	}
	return id, nil
}

// GET /v1/admin/users
func (r *Router) handleListUsers(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	users, err := r.adminSvc.ListUsers(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, users)
}

// POST /v1/admin/users
func (r *Router) handleCreateUser(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	var cmd appadmin.CreateUserCommand
	if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
		return fmt.Errorf("%w: %v", identity.ErrInvalidInput, err)
	}
	u, err := r.adminSvc.CreateUser(req.Context(), id, cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, u)
}

// DELETE /v1/admin/users/{username}
func (r *Router) handleDeleteUser(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	username := chi.URLParam(req, "username")
	if err := r.adminSvc.DeleteUser(req.Context(), id, username); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"deleted": username})
}

// POST /v1/admin/actions
// Body: {"action": "...", "payload": {...}} — the event-style dispatch
// entry point used by non-HTTP invokers.
func (r *Router) handleAdminAction(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	var body struct {
		Action  appadmin.Action `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", identity.ErrInvalidInput, err)
	}
	res, err := r.adminSvc.Handle(req.Context(), id, body.Action, body.Payload)
	if err != nil {
		return err
	}
	if res == nil {
		res = map[string]string{"status": "ok"}
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/companies?limit=50
func (r *Router) handleListCompanies(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.companySvc.List(req.Context(), id, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/companies
func (r *Router) handleCreateCompany(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	var cmd appcompanies.CreateCompanyCommand
	if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
		return fmt.Errorf("%w: %v", domcompanies.ErrInvalidInput, err)
	}
	c, err := r.companySvc.Create(req.Context(), id, cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, c)
}

// GET /v1/companies/{id}
func (r *Router) handleGetCompany(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	c, err := r.companySvc.Get(req.Context(), id, domcompanies.CompanyID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, c)
}

// PUT /v1/companies/{id}
func (r *Router) handleUpdateCompany(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	var cmd appcompanies.UpdateCompanyCommand
	if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
		return fmt.Errorf("%w: %v", domcompanies.ErrInvalidInput, err)
	}
	c, err := r.companySvc.Update(req.Context(), id, domcompanies.CompanyID(chi.URLParam(req, "id")), cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, c)
}

// GET /v1/reports?status=&limit=
func (r *Router) handleListReports(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	status := domreports.Status(req.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domreports.ErrInvalidInput, status)
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.reportSvc.List(req.Context(), id, status, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/reports
func (r *Router) handleCreateReport(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	var cmd appreports.CreateReportCommand
	if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
		return fmt.Errorf("%w: %v", domreports.ErrInvalidInput, err)
	}
	rep, err := r.reportSvc.Create(req.Context(), id, cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, rep)
}

// GET /v1/reports/{id}
func (r *Router) handleGetReport(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	rep, err := r.reportSvc.Get(req.Context(), id, domreports.ReportID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rep)
}

// PUT /v1/reports/{id}
func (r *Router) handleUpdateReport(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	var cmd appreports.UpdateReportCommand
	if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
		return fmt.Errorf("%w: %v", domreports.ErrInvalidInput, err)
	}
	rep, err := r.reportSvc.Update(req.Context(), id, domreports.ReportID(chi.URLParam(req, "id")), cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rep)
}

// POST /v1/reports/{id}/photos (multipart, field "photo")
func (r *Router) handleUploadPhoto(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	if err := req.ParseMultipartForm(maxPhotoUploadBytes); err != nil {
		return fmt.Errorf("%w: %v", domreports.ErrInvalidInput, err)
	}
	file, header, err := req.FormFile("photo")
	if err != nil {
		return fmt.Errorf("%w: photo file is required", domreports.ErrInvalidInput)
	}
	defer file.Close()

	if err := middleware.ValidatePhotoKey(header.Filename); err != nil {
		return fmt.Errorf("%w: %v", domreports.ErrInvalidInput, err)
	}

	rep, err := r.reportSvc.AttachPhoto(req.Context(), id,
		domreports.ReportID(chi.URLParam(req, "id")),
		header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rep)
}

// POST /v1/reports/{id}/analyze
// The analysis runs in the background until done; the response returns
// immediately with a queued status.
func (r *Router) handleAnalyzeReport(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	reportID := domreports.ReportID(chi.URLParam(req, "id"))

	// the report must exist and be visible to the caller before queueing
	if _, err := r.reportSvc.Get(req.Context(), id, reportID); err != nil {
		return err
	}

	go func() {
		middleware.ObserveAnalysisStarted()
		res, err := r.analysisSvc.AnalyzeReport(context.Background(), reportID)
		if err != nil {
			middleware.ObserveAnalysisFailed()
			log.Printf("background analysis error report=%s err=%v", reportID, err)
			return
		}
		log.Printf("analysis finished report=%s skipped=%v detections=%d copies=%d",
			reportID, res.Skipped, res.Detections, len(res.CopiedPaths))
	}()

	return writeJSON(w, http.StatusAccepted, map[string]any{
		"status":    "queued",
		"report_id": reportID,
		"queuedAt":  time.Now(),
	})
}

// GET /v1/reports/{id}/failures?limit=
func (r *Router) handleListFailures(w http.ResponseWriter, req *http.Request) error {
	id, err := caller(req)
	if err != nil {
		return err
	}
	reportID := domreports.ReportID(chi.URLParam(req, "id"))
	if _, err := r.reportSvc.Get(req.Context(), id, reportID); err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.failures.ListByReport(req.Context(), string(reportID), limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*workererrors.WorkerError{}
	}
	return writeJSON(w, http.StatusOK, list)
}
