package reports

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/claimdesk/incident-api/internal/application"
	"github.com/claimdesk/incident-api/internal/domain/identity"
	domain "github.com/claimdesk/incident-api/internal/domain/reports"
)

// Service implements incident-report CRUD with role-based scoping:
// SuperAdmin sees everything, Admin and IncidentReporter see their
// company's reports, Customer sees only reports they submitted.
type Service struct {
	Repo   domain.Repository
	Photos domain.PhotoStore
	Clock  application.Clock
}

type CreateReportCommand struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	PhotoKeys   []string `json:"photo_keys,omitempty"`
}

type UpdateReportCommand struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (s *Service) Create(ctx context.Context, caller identity.Identity, cmd CreateReportCommand) (*domain.IncidentReport, error) {
	if strings.TrimSpace(cmd.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}

	now := s.Clock.Now()
	r := &domain.IncidentReport{
		ID:          domain.ReportID(uuid.NewString()),
		CompanyID:   caller.CompanyID, // empty for stand-alone reports
		SubmittedBy: caller.Username,
		Title:       cmd.Title,
		Description: cmd.Description,
		PhotoKeys:   cmd.PhotoKeys,
		Status:      domain.StatusSubmitted,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := s.Repo.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, caller identity.Identity, id domain.ReportID) (*domain.IncidentReport, error) {
	r, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(caller, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, caller identity.Identity, status domain.Status, limit int) ([]*domain.IncidentReport, error) {
	f := domain.ListFilter{Status: status, Limit: limit}
	switch caller.Role {
	case identity.RoleSuperAdmin:
		// no scoping
	case identity.RoleAdmin, identity.RoleIncidentReporter:
		f.CompanyID = caller.CompanyID
	case identity.RoleCustomer:
		f.SubmittedBy = caller.Username
	default:
		return nil, fmt.Errorf("%w: no role resolved for caller", identity.ErrForbidden)
	}
	return s.Repo.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, caller identity.Identity, id domain.ReportID, cmd UpdateReportCommand) (*domain.IncidentReport, error) {
	r, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeWrite(caller, r); err != nil {
		return nil, err
	}

	if cmd.Title != nil {
		if strings.TrimSpace(*cmd.Title) == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrInvalidInput)
		}
		r.Title = *cmd.Title
	}
	if cmd.Description != nil {
		r.Description = *cmd.Description
	}
	if cmd.Status != nil {
		next := domain.Status(*cmd.Status)
		if !next.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, *cmd.Status)
		}
		if next != r.Status {
			if !domain.CanTransition(r.Status, next) {
				return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, r.Status, next)
			}
			r.Status = next
		}
	}
	r.UpdatedAt = s.Clock.Now()
	if err := s.Repo.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// AttachPhoto stores an uploaded photo under the report's path and appends
// its location to the report's photo list.
func (s *Service) AttachPhoto(ctx context.Context, caller identity.Identity, id domain.ReportID, filename string, body io.Reader, size int64, contentType string) (*domain.IncidentReport, error) {
	r, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeWrite(caller, r); err != nil {
		return nil, err
	}

	key := photoKey(r, filename)
	loc, err := s.Photos.Put(ctx, key, body, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}
	r.PhotoKeys = append(r.PhotoKeys, loc)
	r.UpdatedAt = s.Clock.Now()
	if err := s.Repo.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) authorizeRead(caller identity.Identity, r *domain.IncidentReport) error {
	switch caller.Role {
	case identity.RoleSuperAdmin:
		return nil
	case identity.RoleAdmin, identity.RoleIncidentReporter:
		if r.CompanyID != "" && r.CompanyID == caller.CompanyID {
			return nil
		}
	case identity.RoleCustomer:
		if r.SubmittedBy == caller.Username {
			return nil
		}
	}
	return fmt.Errorf("%w: report %s is not visible to caller", identity.ErrForbidden, r.ID)
}

func (s *Service) authorizeWrite(caller identity.Identity, r *domain.IncidentReport) error {
	switch caller.Role {
	case identity.RoleSuperAdmin:
		return nil
	case identity.RoleAdmin, identity.RoleIncidentReporter:
		if r.CompanyID != "" && r.CompanyID == caller.CompanyID {
			return nil
		}
	case identity.RoleCustomer:
		if r.SubmittedBy == caller.Username {
			return nil
		}
	}
	return fmt.Errorf("%w: report %s is not writable by caller", identity.ErrForbidden, r.ID)
}

func photoKey(r *domain.IncidentReport, filename string) string {
	tenant := r.CompanyID
	if tenant == "" {
		tenant = "standalone"
	}
	return fmt.Sprintf("%s/%s/photos/%s", tenant, r.ID, path.Base(filename))
}
