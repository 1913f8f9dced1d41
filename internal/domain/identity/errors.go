package identity

import "errors"

var (
	ErrInvalidInput = errors.New("identity: invalid input")
	ErrUnauthorized = errors.New("identity: unauthorized")
	ErrForbidden    = errors.New("identity: forbidden")
	ErrNotFound     = errors.New("identity: user not found")
	ErrExists       = errors.New("identity: user already exists")
)
