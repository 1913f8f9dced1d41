package identity

import "context"

// NewDirectoryUser carries the fields for a directory create call.
type NewDirectoryUser struct {
	Username   string
	Attributes map[string]string
}

// Directory port (interface for the identity directory backend)
type Directory interface {
	ListUsers(ctx context.Context) ([]DirectoryUser, error)
	GetUser(ctx context.Context, username string) (*DirectoryUser, error)
	CreateUser(ctx context.Context, u NewDirectoryUser) (*DirectoryUser, error)
	SetPassword(ctx context.Context, username, password string, permanent bool) error
	AddToGroup(ctx context.Context, username, group string) error
	DeleteUser(ctx context.Context, username string) error
	ListGroups(ctx context.Context, username string) ([]string, error)
}

// GroupAdmin extends Directory with group provisioning, used by the
// bootstrap scripts only.
type GroupAdmin interface {
	EnsureGroup(ctx context.Context, name string) error
}
