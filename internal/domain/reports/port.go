package reports

import (
	"context"
	"io"
)

// ListFilter narrows a listing; zero values mean "no constraint".
type ListFilter struct {
	CompanyID   string
	SubmittedBy string
	Status      Status
	Limit       int
}

// Repository port (interface for persistence)
type Repository interface {
	Create(ctx context.Context, r *IncidentReport) error
	Get(ctx context.Context, id ReportID) (*IncidentReport, error)
	List(ctx context.Context, f ListFilter) ([]*IncidentReport, error)
	Update(ctx context.Context, r *IncidentReport) error
	UpdateStatus(ctx context.Context, id ReportID, status Status) error
	// AttachAnalysis persists the merged detection result, the optional
	// narrative summary, and the status reset in one write.
	AttachAnalysis(ctx context.Context, id ReportID, resultJSON, summary string, status Status) error
	// SetAnalysisError records a best-effort failure annotation.
	SetAnalysisError(ctx context.Context, id ReportID, message string) error
}

// PhotoStore port (interface for object storage)
type PhotoStore interface {
	// Put stores an uploaded photo and returns its storage location.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Copy reads an object from srcLocation ("bucket/key") and writes it
	// under destKey in the application's own bucket, returning the new
	// location.
	Copy(ctx context.Context, srcLocation, destKey string) (string, error)
}
