// Package errs defines the error taxonomy shared by the client packages.
// Every error ends up as one user-visible string; none is fatal.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoSession means no token is stored.
	ErrNoSession = errors.New("not logged in")
	// ErrUnauthorized matches any request rejected with 401.
	ErrUnauthorized = errors.New("unauthorized")
)

// RequestError represents a failed HTTP call to the backend
type RequestError struct {
	Op      string // "list chats", "send message", ...
	Status  int    // 0 when no response was received
	Message string // server-provided or generic fallback
	Err     error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *RequestError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// AuthError represents invalid credentials or an expired/missing token
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error: %s: %v", e.Message, e.Err)
	}
	return "auth error: " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ValidationError represents input rejected before any request is made
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UserMessage returns the single string to show the user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		ve *ValidationError
		ae *AuthError
		re *RequestError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.As(err, &ae):
		return ae.Message
	case errors.As(err, &re):
		return re.Message
	case errors.Is(err, ErrNoSession):
		return "Please log in to continue."
	default:
		return err.Error()
	}
}
