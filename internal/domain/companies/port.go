package companies

import "context"

// Repository port (interface for persistence)
type Repository interface {
	Create(ctx context.Context, c *Company) error
	Get(ctx context.Context, id CompanyID) (*Company, error)
	List(ctx context.Context, limit int) ([]*Company, error)
	Update(ctx context.Context, c *Company) error
}
