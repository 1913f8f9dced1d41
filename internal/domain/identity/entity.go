package identity

import "time"

// Directory attribute keys. The directory stores users as flat key/value
// attribute lists; these are the keys this application reads and writes.
const (
	AttrEmail       = "email"
	AttrCompanyID   = "custom:companyId"
	AttrCompanyName = "custom:companyName"
)

// DirectoryUser is a raw directory record: username plus flat attributes.
type DirectoryUser struct {
	Username   string
	Attributes map[string]string
	Enabled    bool
	Verified   bool
	CreatedAt  time.Time
}

// Attr returns an attribute value or "" when absent.
func (d DirectoryUser) Attr(key string) string {
	if d.Attributes == nil {
		return ""
	}
	return d.Attributes[key]
}

// User is the application-facing projection of a directory record plus its
// resolved group memberships.
type User struct {
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Role        Role     `json:"role"`
	Groups      []string `json:"groups"`
	CompanyID   string   `json:"company_id,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
	Enabled     bool     `json:"enabled"`
	Verified    bool     `json:"verified"`
}

// Identity carries the authenticated caller's claims for a single request.
type Identity struct {
	Username    string
	Groups      []string
	Role        Role
	CompanyID   string
	CompanyName string
}

func (id Identity) IsSuperAdmin() bool { return id.Role == RoleSuperAdmin }

// ProjectUser maps a raw directory record plus groups to the User entity.
// The effective role follows the precedence order; users with no known
// role group project with an empty role.
func ProjectUser(d DirectoryUser, groups []string) User {
	role, _ := ResolveRole(groups)
	return User{
		Username:    d.Username,
		Email:       d.Attr(AttrEmail),
		Role:        role,
		Groups:      groups,
		CompanyID:   d.Attr(AttrCompanyID),
		CompanyName: d.Attr(AttrCompanyName),
		Enabled:     d.Enabled,
		Verified:    d.Verified,
	}
}
