package ux

import (
	stderrors "errors"
	"fmt"
	"strings"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
)

// ErrorWithSuggestion wraps an error with a recovery suggestion
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{Err: err, Suggestion: suggestion}
}

// EnhanceError adds a suggestion to uncoded errors. Coded errors already
// carry their own suggestions and are returned unchanged.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}
	var agriErr *agerrors.AgriError
	if stderrors.As(err, &agriErr) {
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused") && strings.Contains(msg, "6379"):
		return NewErrorWithSuggestion(err, "Start Redis or switch to the file store with --store file")
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no route to host"):
		return NewErrorWithSuggestion(err, "Check that the AgriConnect backend is running and --api-url is correct")
	case strings.Contains(msg, "permission denied"):
		return NewErrorWithSuggestion(err, "Check permissions on ~/.agriconnect")
	case strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown command"):
		return NewErrorWithSuggestion(err, "Run 'agriconnect --help' for usage")
	}
	return err
}
