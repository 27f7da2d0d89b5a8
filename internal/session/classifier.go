package session

import (
	stderrors "errors"
	"net/http"
	"strings"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
	"github.com/felixgeelhaar/agriconnect/internal/platform"
)

// Verdict is the outcome of triaging a boot confirmation failure.
type Verdict int

const (
	// Transient failures keep the optimistic session.
	Transient Verdict = iota
	// AuthFailure resets the session and clears the store.
	AuthFailure
)

func (v Verdict) String() string {
	if v == AuthFailure {
		return "auth_failure"
	}
	return "transient"
}

// Classifier decides whether a confirmation error means the credentials are
// no longer valid.
type Classifier interface {
	Classify(err error) Verdict
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(err error) Verdict

func (f ClassifierFunc) Classify(err error) Verdict { return f(err) }

// DefaultClassifier treats 401 and 403 responses, and any error whose
// message mentions "unauthorized" or "token", as auth failures. Everything
// else is transient.
var DefaultClassifier Classifier = ClassifierFunc(classifyDefault)

func classifyDefault(err error) Verdict {
	if err == nil {
		return Transient
	}

	var apiErr *platform.APIError
	if stderrors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return AuthFailure
		}
		if mentionsAuth(apiErr.Message) {
			return AuthFailure
		}
		return Transient
	}

	if agerrors.HasCode(err, agerrors.ErrCodeAuthTokenExpired) || agerrors.HasCode(err, agerrors.ErrCodeAuthRejected) {
		return AuthFailure
	}

	// Transport failures can carry URLs or hostnames; only the coded
	// message is matched for them.
	var agriErr *agerrors.AgriError
	if stderrors.As(err, &agriErr) && agriErr.Code == agerrors.ErrCodeAPITransport {
		return Transient
	}

	if mentionsAuth(err.Error()) {
		return AuthFailure
	}
	return Transient
}

func mentionsAuth(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "unauthorized") || strings.Contains(msg, "token")
}
