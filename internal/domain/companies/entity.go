package companies

import "time"

// CompanyID identifier type
type CompanyID string

// Company is the tenant record, the unit of data isolation for
// non-SuperAdmin roles.
type Company struct {
	ID        CompanyID `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
