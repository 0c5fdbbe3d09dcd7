package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrPathEscape         = errors.New("path escapes books root")
	ErrCorruptFile        = errors.New("file cannot be parsed as its format")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
)
