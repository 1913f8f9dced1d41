package identity

// Role enum, closed set
type Role string

const (
	RoleSuperAdmin       Role = "SuperAdmin"
	RoleAdmin            Role = "Admin"
	RoleIncidentReporter Role = "IncidentReporter"
	RoleCustomer         Role = "Customer"
)

// precedence order, highest first
var rolePrecedence = []Role{RoleSuperAdmin, RoleAdmin, RoleIncidentReporter, RoleCustomer}

// AllRoles returns every known role in precedence order.
func AllRoles() []Role {
	out := make([]Role, len(rolePrecedence))
	copy(out, rolePrecedence)
	return out
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range rolePrecedence {
		if r == known {
			return true
		}
	}
	return false
}

// ResolveRole picks the effective role from a set of group memberships,
// highest precedence wins. The boolean is false when no group maps to a
// known role.
func ResolveRole(groups []string) (Role, bool) {
	for _, candidate := range rolePrecedence {
		for _, g := range groups {
			if Role(g) == candidate {
				return candidate, true
			}
		}
	}
	return "", false
}
