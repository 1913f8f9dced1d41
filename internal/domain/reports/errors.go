package reports

import "errors"

var (
	ErrInvalidInput      = errors.New("reports: invalid input")
	ErrNotFound          = errors.New("reports: not found")
	ErrInvalidTransition = errors.New("reports: invalid status transition")
)
