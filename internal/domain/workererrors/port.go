package workererrors

import (
	"context"
)

// Repository defines persistence for worker failure annotations
type Repository interface {
	Save(ctx context.Context, e *WorkerError) error
	ListByReport(ctx context.Context, reportID string, limit int) ([]*WorkerError, error)
}
