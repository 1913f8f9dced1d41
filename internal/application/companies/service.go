package companies

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/claimdesk/incident-api/internal/application"
	domain "github.com/claimdesk/incident-api/internal/domain/companies"
	"github.com/claimdesk/incident-api/internal/domain/identity"
)

// Service implements company CRUD. Company administration is a SuperAdmin
// concern; scoped roles may only read their own company record.
type Service struct {
	Repo  domain.Repository
	Clock application.Clock
}

type CreateCompanyCommand struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type UpdateCompanyCommand struct {
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

func (s *Service) Create(ctx context.Context, caller identity.Identity, cmd CreateCompanyCommand) (*domain.Company, error) {
	if !caller.IsSuperAdmin() {
		return nil, fmt.Errorf("%w: only SuperAdmin may create companies", identity.ErrForbidden)
	}
	if strings.TrimSpace(cmd.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	id := cmd.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.Clock.Now()
	c := &domain.Company{
		ID:        domain.CompanyID(id),
		Name:      cmd.Name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, caller identity.Identity, id domain.CompanyID) (*domain.Company, error) {
	if !caller.IsSuperAdmin() && caller.CompanyID != string(id) {
		return nil, fmt.Errorf("%w: company %s is not visible to caller", identity.ErrForbidden, id)
	}
	return s.Repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, caller identity.Identity, limit int) ([]*domain.Company, error) {
	if caller.IsSuperAdmin() {
		return s.Repo.List(ctx, limit)
	}
	if caller.CompanyID == "" {
		return []*domain.Company{}, nil
	}
	c, err := s.Repo.Get(ctx, domain.CompanyID(caller.CompanyID))
	if err != nil {
		return nil, err
	}
	return []*domain.Company{c}, nil
}

func (s *Service) Update(ctx context.Context, caller identity.Identity, id domain.CompanyID, cmd UpdateCompanyCommand) (*domain.Company, error) {
	if !caller.IsSuperAdmin() {
		return nil, fmt.Errorf("%w: only SuperAdmin may update companies", identity.ErrForbidden)
	}
	c, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cmd.Name != nil {
		if strings.TrimSpace(*cmd.Name) == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidInput)
		}
		c.Name = *cmd.Name
	}
	if cmd.Active != nil {
		c.Active = *cmd.Active
	}
	c.UpdatedAt = s.Clock.Now()
	if err := s.Repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
