package auth

import "errors"

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
)
