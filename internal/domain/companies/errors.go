package companies

import "errors"

var (
	ErrInvalidInput  = errors.New("companies: invalid input")
	ErrNotFound      = errors.New("companies: not found")
	ErrAlreadyExists = errors.New("companies: already exists")
)
