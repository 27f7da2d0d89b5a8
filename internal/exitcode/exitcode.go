// Package exitcode maps command errors to process exit statuses.
package exitcode

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"strings"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
)

const (
	Success         = 0
	GeneralError    = 1
	UsageError      = 2 // bad flags, arguments or configuration
	ValidationError = 3 // input rejected before any backend call
	StorageError    = 4 // credential store unreadable or unwritable
	AuthError       = 5 // signed out, rejected credentials, busy session
	NetworkError    = 6 // backend unreachable
	Interrupted     = 130
)

var familyCodes = map[string]int{
	"AUTH":       AuthError,
	"SESSION":    AuthError,
	"STORE":      StorageError,
	"VALIDATION": ValidationError,
	"CONFIG":     UsageError,
	"API":        GeneralError,
}

var descriptions = map[int]string{
	Success:         "Success",
	GeneralError:    "General error",
	UsageError:      "Usage error (invalid flags, arguments or configuration)",
	ValidationError: "Validation error",
	StorageError:    "Credential storage error",
	AuthError:       "Authentication error",
	NetworkError:    "Network error",
	Interrupted:     "Interrupted",
}

// cobra reports usage problems as plain errors with these prefixes.
var usagePrefixes = []string{
	"unknown command",
	"unknown flag",
	"unknown shorthand flag",
	"invalid argument",
	"required flag",
	"accepts ",
	"flag needs an argument",
}

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with the code DetermineExitCode picks for err.
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode picks an exit code for err. Coded errors map by family.
// Uncoded errors are classified by type, then by cobra's usage messages.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if code := agerrors.CodeOf(err); code != "" {
		if code == agerrors.ErrCodeAPITransport {
			return NetworkError
		}
		if exit, ok := familyCodes[code.Family()]; ok {
			return exit
		}
		return GeneralError
	}

	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.As(err, &netErr) {
		return NetworkError
	}

	msg := err.Error()
	for _, prefix := range usagePrefixes {
		if strings.HasPrefix(msg, prefix) {
			return UsageError
		}
	}
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return "Unknown error"
}
