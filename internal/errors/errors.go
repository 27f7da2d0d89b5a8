package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Family returns the code prefix before the dash (e.g. "AUTH" for "AUTH-001").
func (c ErrorCode) Family() string {
	if i := strings.IndexByte(string(c), '-'); i > 0 {
		return string(c)[:i]
	}
	return string(c)
}

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeAuthRejected      ErrorCode = "AUTH-001"
	ErrCodeAuthTokenExpired  ErrorCode = "AUTH-002"
	ErrCodeAuthAdminRequired ErrorCode = "AUTH-003"
	ErrCodeAuthUnknownRole   ErrorCode = "AUTH-004"

	// Session errors (SESSION-001 to SESSION-099)
	ErrCodeSessionNotAuthenticated ErrorCode = "SESSION-001"
	ErrCodeSessionBootFailed       ErrorCode = "SESSION-002"
	ErrCodeSessionInProgress       ErrorCode = "SESSION-003"

	// Credential store errors (STORE-001 to STORE-099)
	ErrCodeStoreReadFailed  ErrorCode = "STORE-001"
	ErrCodeStoreWriteFailed ErrorCode = "STORE-002"
	ErrCodeStoreClearFailed ErrorCode = "STORE-003"

	// Backend API errors (API-001 to API-099)
	ErrCodeAPIRequest   ErrorCode = "API-001"
	ErrCodeAPITransport ErrorCode = "API-002"
	ErrCodeAPIDecode    ErrorCode = "API-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigRead    ErrorCode = "CONFIG-002"

	// Validation errors (VALIDATION-001 to VALIDATION-099)
	ErrCodeValidationFailed   ErrorCode = "VALIDATION-001"
	ErrCodePasswordMismatch   ErrorCode = "VALIDATION-002"
	ErrCodeInvalidPhoneNumber ErrorCode = "VALIDATION-003"
)

// AgriError represents an enhanced error with code, suggestions, and documentation
type AgriError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *AgriError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *AgriError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AgriError carrying the same code.
func (e *AgriError) Is(target error) bool {
	t, ok := target.(*AgriError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AgriError
func New(code ErrorCode, message string) *AgriError {
	return &AgriError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AgriError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *AgriError {
	return &AgriError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *AgriError) WithSuggestion(suggestion string) *AgriError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *AgriError) WithSuggestions(suggestions ...string) *AgriError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *AgriError) WithDocs(url string) *AgriError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the first AgriError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var agriErr *AgriError
	if stderrors.As(err, &agriErr) {
		return agriErr.Code
	}
	return ""
}

// HasCode reports whether err's chain contains an AgriError with code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &AgriError{Code: code})
}

// Common error constructors for frequently used errors

// NewNotAuthenticatedError is returned by commands that need a session.
func NewNotAuthenticatedError() *AgriError {
	return New(ErrCodeSessionNotAuthenticated, "not logged in").
		WithSuggestion("Run 'agriconnect auth login' to authenticate").
		WithSuggestion("Use 'agriconnect auth login --admin' for the back-office")
}

// NewCredentialRejectedError wraps a login failure reported by the backend.
func NewCredentialRejectedError(reason string) *AgriError {
	return New(ErrCodeAuthRejected, reason).
		WithSuggestion("Check your username and password").
		WithSuggestion("Register a new account with 'agriconnect auth register'")
}

// NewOperationInProgressError is returned when a login or registration is already pending.
func NewOperationInProgressError(operation string) *AgriError {
	return New(ErrCodeSessionInProgress, fmt.Sprintf("%s already in progress", operation)).
		WithSuggestion("Wait for the pending request to finish")
}

// NewAPIUnreachableError wraps a transport failure.
func NewAPIUnreachableError(baseURL string, cause error) *AgriError {
	return Wrap(ErrCodeAPITransport, fmt.Sprintf("cannot reach API at %s", baseURL), cause).
		WithSuggestion("Check that the AgriConnect backend is running").
		WithSuggestion("Override the endpoint with --api-url or AGRICONNECT_API_URL")
}

// NewPasswordMismatchError is the registration confirmation failure.
func NewPasswordMismatchError() *AgriError {
	return New(ErrCodePasswordMismatch, "passwords do not match").
		WithSuggestion("Re-enter the password confirmation")
}

// NewStoreWriteError wraps a credential persistence failure.
func NewStoreWriteError(location string, cause error) *AgriError {
	return Wrap(ErrCodeStoreWriteFailed, fmt.Sprintf("failed to persist credentials to %s", location), cause).
		WithSuggestion("Verify the directory exists and you have write permissions")
}

// NewStoreReadError wraps a credential load failure.
func NewStoreReadError(location string, cause error) *AgriError {
	return Wrap(ErrCodeStoreReadFailed, fmt.Sprintf("failed to read credentials from %s", location), cause).
		WithSuggestion("Remove the file and log in again if it is corrupted")
}

// NewConfigInvalidError reports a bad configuration value.
func NewConfigInvalidError(key string, value interface{}, valid string) *AgriError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid value for %s: %v", key, value)).
		WithSuggestion(fmt.Sprintf("Valid values: %s", valid)).
		WithSuggestion("Check ~/.agriconnect/config.yaml and AGRICONNECT_* environment variables")
}

// NewValidationError wraps a request that failed client-side validation.
func NewValidationError(cause error) *AgriError {
	return Wrap(ErrCodeValidationFailed, "invalid request: "+cause.Error(), cause)
}
