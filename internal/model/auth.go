package model

import "errors"

// Error codes for token failures
const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeRateLimited  = "RATE_LIMITED"
)

// Viewer is the authenticated caller, taken from a Supabase access token.
type Viewer struct {
	ID   string
	Role string
}

var ErrMissingSubject = errors.New("token has no subject")
