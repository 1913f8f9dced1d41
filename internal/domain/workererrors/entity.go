package workererrors

import "time"

// WorkerError represents a persisted background-analysis failure entry
type WorkerError struct {
	ID          int64     `json:"id"`
	CompanyID   string    `json:"company_id"`
	ReportID    string    `json:"report_id"`
	Stage       string    `json:"stage,omitempty"` // detect | copy | persist | other
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
