package token

import "errors"

var (
	// ErrInvalidToken covers missing, expired, used and revoked tokens alike.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrReuseDetected is returned after a stale refresh token was replayed
	// and its whole family has been revoked.
	ErrReuseDetected = errors.New("refresh token reuse detected - all sessions revoked")
)
