package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/claimdesk/incident-api/internal/domain/identity"
)

// fakeDirectory is an in-memory Directory that records mutating calls.
type fakeDirectory struct {
	mu     sync.Mutex
	users  map[string]domain.DirectoryUser
	groups map[string][]string
	calls  []string

	listGroupsErr  map[string]error
	createErr      error
	setPasswordErr error
	addToGroupErr  error
	deleteErr      error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:         make(map[string]domain.DirectoryUser),
		groups:        make(map[string][]string),
		listGroupsErr: make(map[string]error),
	}
}

func (f *fakeDirectory) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeDirectory) seed(username, companyID string, groups ...string) {
	f.users[username] = domain.DirectoryUser{
		Username: username,
		Attributes: map[string]string{
			domain.AttrEmail:     username,
			domain.AttrCompanyID: companyID,
		},
		Enabled: true,
	}
	f.groups[username] = groups
}

func (f *fakeDirectory) ListUsers(ctx context.Context) ([]domain.DirectoryUser, error) {
	f.record("ListUsers")
	names := make([]string, 0, len(f.users))
	for n := range f.users {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]domain.DirectoryUser, 0, len(names))
	for _, n := range names {
		out = append(out, f.users[n])
	}
	return out, nil
}

func (f *fakeDirectory) GetUser(ctx context.Context, username string) (*domain.DirectoryUser, error) {
	f.record("GetUser:" + username)
	u, ok := f.users[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (f *fakeDirectory) CreateUser(ctx context.Context, nu domain.NewDirectoryUser) (*domain.DirectoryUser, error) {
	f.record("CreateUser:" + nu.Username)
	if f.createErr != nil {
		return nil, f.createErr
	}
	u := domain.DirectoryUser{Username: nu.Username, Attributes: nu.Attributes, Enabled: true}
	f.users[nu.Username] = u
	return &u, nil
}

func (f *fakeDirectory) SetPassword(ctx context.Context, username, password string, permanent bool) error {
	f.record(fmt.Sprintf("SetPassword:%s:permanent=%v", username, permanent))
	return f.setPasswordErr
}

func (f *fakeDirectory) AddToGroup(ctx context.Context, username, group string) error {
	f.record("AddToGroup:" + username + ":" + group)
	if f.addToGroupErr != nil {
		return f.addToGroupErr
	}
	f.groups[username] = append(f.groups[username], group)
	return nil
}

func (f *fakeDirectory) DeleteUser(ctx context.Context, username string) error {
	f.record("DeleteUser:" + username)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.users, username)
	return nil
}

func (f *fakeDirectory) ListGroups(ctx context.Context, username string) ([]string, error) {
	if err := f.listGroupsErr[username]; err != nil {
		return nil, err
	}
	return f.groups[username], nil
}

func superAdmin() domain.Identity {
	return domain.Identity{Username: "root@claimdesk.io", Role: domain.RoleSuperAdmin, Groups: []string{"SuperAdmin"}}
}

func companyAdmin(companyID string) domain.Identity {
	return domain.Identity{
		Username:    "admin@" + companyID + ".example",
		Role:        domain.RoleAdmin,
		Groups:      []string{"Admin"},
		CompanyID:   companyID,
		CompanyName: companyID + " Inc",
	}
}

func TestListUsers_SuperAdminSeesAll(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed("a@acme.example", "acme", "Admin")
	dir.seed("b@acme.example", "acme", "IncidentReporter")
	dir.seed("c@globex.example", "globex", "Customer")
	svc := &Service{Dir: dir}

	users, err := svc.ListUsers(context.Background(), superAdmin())
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestListUsers_ScopedCallerSeesOwnCompanyOnly(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed("a@acme.example", "acme", "Admin")
	dir.seed("b@acme.example", "acme", "IncidentReporter")
	dir.seed("c@globex.example", "globex", "Customer")
	svc := &Service{Dir: dir}

	users, err := svc.ListUsers(context.Background(), companyAdmin("acme"))
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Equal(t, "acme", u.CompanyID)
	}
}

func TestListUsers_GroupLookupFailureDegradesToEmptySet(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed("a@acme.example", "acme", "Admin")
	dir.seed("b@acme.example", "acme", "IncidentReporter")
	dir.listGroupsErr["b@acme.example"] = errors.New("directory throttled")
	svc := &Service{Dir: dir}

	users, err := svc.ListUsers(context.Background(), superAdmin())
	require.NoError(t, err, "one failed group lookup must not abort the listing")
	require.Len(t, users, 2)

	byName := map[string]domain.User{}
	for _, u := range users {
		byName[u.Username] = u
	}
	assert.Equal(t, domain.RoleAdmin, byName["a@acme.example"].Role)
	assert.Empty(t, byName["b@acme.example"].Groups)
	assert.Empty(t, byName["b@acme.example"].Role)
}

func TestCreateUser_RequiredFields(t *testing.T) {
	svc := &Service{Dir: newFakeDirectory()}

	_, err := svc.CreateUser(context.Background(), superAdmin(), CreateUserCommand{Group: "Admin"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateUser(context.Background(), superAdmin(), CreateUserCommand{Email: "x@example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateUser_ScopedCallerCompanyOverridesPayload(t *testing.T) {
	dir := newFakeDirectory()
	svc := &Service{Dir: dir}

	u, err := svc.CreateUser(context.Background(), companyAdmin("acme"), CreateUserCommand{
		Email:     "new@acme.example",
		Group:     "IncidentReporter",
		CompanyID: "globex", // must be ignored
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", u.CompanyID)
	assert.Equal(t, "acme Inc", u.CompanyName)
	assert.Equal(t, domain.RoleIncidentReporter, u.Role)
}

func TestCreateUser_SuperAdminKeepsPayloadCompany(t *testing.T) {
	dir := newFakeDirectory()
	svc := &Service{Dir: dir}

	u, err := svc.CreateUser(context.Background(), superAdmin(), CreateUserCommand{
		Email:     "new@globex.example",
		Group:     "Customer",
		CompanyID: "globex",
	})
	require.NoError(t, err)
	assert.Equal(t, "globex", u.CompanyID)
}

func TestCreateUser_CallerWithoutCompanyFailsBeforeAnyMutation(t *testing.T) {
	dir := newFakeDirectory()
	svc := &Service{Dir: dir}

	caller := domain.Identity{Username: "orphan@example.com", Role: domain.RoleAdmin}
	_, err := svc.CreateUser(context.Background(), caller, CreateUserCommand{
		Email: "new@acme.example",
		Group: "Customer",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, dir.calls, "no directory call may happen on an authorization failure")
}

func TestCreateUser_ProvisioningOrder(t *testing.T) {
	dir := newFakeDirectory()
	svc := &Service{Dir: dir}

	_, err := svc.CreateUser(context.Background(), superAdmin(), CreateUserCommand{
		Email: "new@acme.example",
		Group: "Admin",
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"CreateUser:new@acme.example",
		"SetPassword:new@acme.example:permanent=false",
		"AddToGroup:new@acme.example:Admin",
	}, dir.calls)
}

func TestCreateUser_NoRollbackOnGroupFailure(t *testing.T) {
	dir := newFakeDirectory()
	dir.addToGroupErr = errors.New("group service down")
	svc := &Service{Dir: dir}

	_, err := svc.CreateUser(context.Background(), superAdmin(), CreateUserCommand{
		Email: "new@acme.example",
		Group: "Admin",
	})
	require.Error(t, err)
	// the created entry stays; re-invocation is the recovery path
	_, ok := dir.users["new@acme.example"]
	assert.True(t, ok)
	assert.NotContains(t, dir.calls, "DeleteUser:new@acme.example")
}

func TestDeleteUser_AdminCrossTenantRejectedWithoutDeleting(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed("victim@globex.example", "globex", "Customer")
	svc := &Service{Dir: dir}

	err := svc.DeleteUser(context.Background(), companyAdmin("acme"), "victim@globex.example")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.NotContains(t, dir.calls, "DeleteUser:victim@globex.example")
	_, ok := dir.users["victim@globex.example"]
	assert.True(t, ok)
}

func TestDeleteUser_AdminSameTenantSucceeds(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed("target@acme.example", "acme", "Customer")
	svc := &Service{Dir: dir}

	err := svc.DeleteUser(context.Background(), companyAdmin("acme"), "target@acme.example")
	require.NoError(t, err)
	_, ok := dir.users["target@acme.example"]
	assert.False(t, ok)
}

func TestDeleteUser_SuperAdminSkipsTenantLookup(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed("target@globex.example", "globex", "Customer")
	svc := &Service{Dir: dir}

	err := svc.DeleteUser(context.Background(), superAdmin(), "target@globex.example")
	require.NoError(t, err)
	assert.NotContains(t, dir.calls, "GetUser:target@globex.example")
}

func TestDeleteUser_LowRolesRejectedOutright(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed("target@acme.example", "acme", "Customer")
	svc := &Service{Dir: dir}

	for _, role := range []domain.Role{domain.RoleIncidentReporter, domain.RoleCustomer} {
		caller := domain.Identity{Username: "low@acme.example", Role: role, CompanyID: "acme"}
		err := svc.DeleteUser(context.Background(), caller, "target@acme.example")
		assert.ErrorIs(t, err, domain.ErrForbidden, "role %s", role)
	}
}

func TestHandle_DispatchAndUnknownAction(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed("a@acme.example", "acme", "Admin")
	svc := &Service{Dir: dir}

	res, err := svc.Handle(context.Background(), superAdmin(), ActionListUsers, nil)
	require.NoError(t, err)
	users, ok := res.([]domain.User)
	require.True(t, ok)
	assert.Len(t, users, 1)

	payload, _ := json.Marshal(DeleteUserCommand{Username: "a@acme.example"})
	_, err = svc.Handle(context.Background(), superAdmin(), ActionDeleteUser, payload)
	require.NoError(t, err)

	_, err = svc.Handle(context.Background(), superAdmin(), Action("rebootTheMatrix"), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
