package errors

import (
	stderrors "errors"
	"fmt"
)

// AuthError is the structured error returned by every failing API call.
// Raw provider errors are translated into this taxonomy at the service
// boundary and never reach callers.
type AuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes for the login/session taxonomy.
const (
	InvalidInput        = "invalid_input"
	ChallengeNotFound   = "challenge_not_found"
	InvalidCode         = "invalid_code"
	Unauthorized        = "unauthorized"
	SessionExpired      = "session_expired"
	ProviderUnavailable = "provider_unavailable"
	ServerError         = "server_error"
)

// Common error constructors
func NewInvalidInput(description string) *AuthError {
	return &AuthError{
		Code:        InvalidInput,
		Description: description,
	}
}

func NewChallengeNotFound(description string) *AuthError {
	return &AuthError{
		Code:        ChallengeNotFound,
		Description: description,
	}
}

func NewInvalidCode(description string) *AuthError {
	return &AuthError{
		Code:        InvalidCode,
		Description: description,
	}
}

func NewUnauthorized(description string) *AuthError {
	return &AuthError{
		Code:        Unauthorized,
		Description: description,
	}
}

func NewSessionExpired(description string) *AuthError {
	return &AuthError{
		Code:        SessionExpired,
		Description: description,
	}
}

func NewProviderUnavailable(description string) *AuthError {
	return &AuthError{
		Code:        ProviderUnavailable,
		Description: description,
	}
}

func NewServerError(description string) *AuthError {
	return &AuthError{
		Code:        ServerError,
		Description: description,
	}
}

// CodeOf returns the taxonomy code carried by err, or ServerError when a
// foreign error slipped through.
func CodeOf(err error) string {
	var authErr *AuthError
	if stderrors.As(err, &authErr) {
		return authErr.Code
	}
	return ServerError
}
