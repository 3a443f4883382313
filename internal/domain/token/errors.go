package token

import "errors"

var (
	ErrNotFound = errors.New("token not found")
	ErrConflict = errors.New("token already exists")
)
