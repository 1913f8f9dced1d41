package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	domain "github.com/claimdesk/incident-api/internal/domain/identity"
)

// Service implements the identity administration use-cases: listing,
// creating and deleting directory users with tenant scoping. It is
// stateless between invocations; the directory is the only collaborator.
type Service struct {
	Dir domain.Directory
}

// Action names accepted by Handle.
type Action string

const (
	ActionListUsers  Action = "listUsers"
	ActionCreateUser Action = "createUser"
	ActionDeleteUser Action = "deleteUser"
)

// CreateUserCommand carries the createUser payload.
type CreateUserCommand struct {
	Email        string `json:"email"`
	TempPassword string `json:"temp_password,omitempty"`
	Group        string `json:"group"`
	CompanyID    string `json:"company_id,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
}

// DeleteUserCommand carries the deleteUser payload.
type DeleteUserCommand struct {
	Username string `json:"username"`
}

// Handle is the single dispatch entry point: an action name, a raw JSON
// payload and the caller's identity. Unknown actions are an input error.
func (s *Service) Handle(ctx context.Context, caller domain.Identity, action Action, payload json.RawMessage) (any, error) {
	switch action {
	case ActionListUsers:
		return s.ListUsers(ctx, caller)
	case ActionCreateUser:
		var cmd CreateUserCommand
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &cmd); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
			}
		}
		return s.CreateUser(ctx, caller, cmd)
	case ActionDeleteUser:
		var cmd DeleteUserCommand
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &cmd); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
			}
		}
		return nil, s.DeleteUser(ctx, caller, cmd.Username)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, action)
	}
}

// ListUsers fetches every directory user, resolves group memberships per
// user, and scopes the result: SuperAdmin sees all users, every other role
// sees only users in its own company. Ordering follows the directory.
func (s *Service) ListUsers(ctx context.Context, caller domain.Identity) ([]domain.User, error) {
	dirUsers, err := s.Dir.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	// Group lookups run concurrently, one per user. A failed lookup
	// degrades that user to an empty group set instead of aborting the
	// whole listing.
	groups := make([][]string, len(dirUsers))
	var wg sync.WaitGroup
	for i, du := range dirUsers {
		wg.Add(1)
		go func(i int, username string) {
			defer wg.Done()
			gs, err := s.Dir.ListGroups(ctx, username)
			if err != nil {
				log.Printf("admin: list groups failed user=%s err=%v", username, err)
				return
			}
			groups[i] = gs
		}(i, du.Username)
	}
	wg.Wait()

	out := make([]domain.User, 0, len(dirUsers))
	for i, du := range dirUsers {
		u := domain.ProjectUser(du, groups[i])
		if !caller.IsSuperAdmin() && u.CompanyID != caller.CompanyID {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// CreateUser provisions a directory user: create entry, set a temporary
// credential, add to the requested group. Partial failure after the create
// step is not compensated; re-invocation with the same email is the
// expected recovery path.
func (s *Service) CreateUser(ctx context.Context, caller domain.Identity, cmd CreateUserCommand) (*domain.User, error) {
	if cmd.Email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if cmd.Group == "" {
		return nil, fmt.Errorf("%w: group is required", domain.ErrInvalidInput)
	}
	if !domain.Role(cmd.Group).Valid() {
		return nil, fmt.Errorf("%w: unknown group %q", domain.ErrInvalidInput, cmd.Group)
	}

	companyID, companyName := cmd.CompanyID, cmd.CompanyName
	if !caller.IsSuperAdmin() {
		// A scoped caller can only provision into its own company;
		// any company supplied in the payload is overridden.
		if caller.CompanyID == "" {
			return nil, fmt.Errorf("%w: caller has no company assignment", domain.ErrForbidden)
		}
		companyID = caller.CompanyID
		companyName = caller.CompanyName
	}

	tempPassword := cmd.TempPassword
	if tempPassword == "" {
		tempPassword = generateTempPassword()
	}

	attrs := map[string]string{domain.AttrEmail: cmd.Email}
	if companyID != "" {
		attrs[domain.AttrCompanyID] = companyID
	}
	if companyName != "" {
		attrs[domain.AttrCompanyName] = companyName
	}

	created, err := s.Dir.CreateUser(ctx, domain.NewDirectoryUser{
		Username:   cmd.Email,
		Attributes: attrs,
	})
	if err != nil {
		return nil, fmt.Errorf("create directory entry: %w", err)
	}
	if err := s.Dir.SetPassword(ctx, created.Username, tempPassword, false); err != nil {
		return nil, fmt.Errorf("set temporary credential: %w", err)
	}
	if err := s.Dir.AddToGroup(ctx, created.Username, cmd.Group); err != nil {
		return nil, fmt.Errorf("assign group: %w", err)
	}

	u := domain.ProjectUser(*created, []string{cmd.Group})
	return &u, nil
}

// DeleteUser removes a directory user. SuperAdmin may delete anyone; Admin
// may delete only users in its own company, verified with one extra
// directory lookup before the delete call; other roles are rejected.
func (s *Service) DeleteUser(ctx context.Context, caller domain.Identity, username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}

	switch caller.Role {
	case domain.RoleSuperAdmin:
		// no tenant restriction
	case domain.RoleAdmin:
		target, err := s.Dir.GetUser(ctx, username)
		if err != nil {
			return err
		}
		if target.Attr(domain.AttrCompanyID) != caller.CompanyID {
			return fmt.Errorf("%w: user %s belongs to another company", domain.ErrForbidden, username)
		}
	case domain.RoleIncidentReporter, domain.RoleCustomer:
		return fmt.Errorf("%w: role %s may not delete users", domain.ErrForbidden, caller.Role)
	default:
		return fmt.Errorf("%w: no role resolved for caller", domain.ErrForbidden)
	}

	return s.Dir.DeleteUser(ctx, username)
}

// generateTempPassword builds a random one-time credential that satisfies
// the directory's complexity policy.
func generateTempPassword() string {
	return "Tmp1!" + uuid.NewString()
}
