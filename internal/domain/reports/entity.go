package reports

import "time"

// ReportID identifier type
type ReportID string

// Status enum
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusInReview  Status = "in_review"
	StatusResolved  Status = "resolved"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusInReview, StatusResolved:
		return true
	}
	return false
}

// CanTransition enforces the report lifecycle: submitted -> in_review ->
// resolved, with in_review allowed to fall back to submitted.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusSubmitted:
		return to == StatusInReview
	case StatusInReview:
		return to == StatusResolved || to == StatusSubmitted
	case StatusResolved:
		return false
	}
	return false
}

// Aggregate Root: IncidentReport
type IncidentReport struct {
	ID          ReportID  `json:"id"`
	CompanyID   string    `json:"company_id,omitempty"` // empty for stand-alone reports
	SubmittedBy string    `json:"submitted_by"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PhotoKeys   []string  `json:"photo_keys,omitempty"` // object storage locations
	Status      Status    `json:"status"`
	// AnalysisResult is the opaque JSON blob produced by the detection
	// pipeline; empty until the background worker has run.
	AnalysisResult  string    `json:"analysis_result,omitempty"`
	AnalysisSummary string    `json:"analysis_summary,omitempty"`
	AnalysisError   string    `json:"analysis_error,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
