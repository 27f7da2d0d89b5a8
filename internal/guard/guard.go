// Package guard decides whether a protected page may be shown for the
// current session.
package guard

import (
	"io"
	"net/http"
	"net/url"

	"github.com/felixgeelhaar/agriconnect/internal/principal"
	"github.com/felixgeelhaar/agriconnect/internal/session"
)

// Well-known locations.
const (
	UserLoginPath         = "/user-login"
	AdminLoginPath        = "/admin-login"
	FarmerDashboardPath   = "/user/dashboard"
	SupplierDashboardPath = "/supplier/dashboard"
	AdminDashboardPath    = "/admin/dashboard"
)

// Outcome is the kind of decision.
type Outcome int

const (
	// Loading defers the decision until the session has booted.
	Loading Outcome = iota
	Redirect
	Allow
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// Decision is the result of Decide. Location is set for redirects; From is
// the originally requested location, set only on redirects to a login page.
type Decision struct {
	Outcome  Outcome
	Location string
	From     string
}

// Decide is a pure function of the session, the page group's adminOnly flag
// and the requested location.
func Decide(s session.Session, adminOnly bool, requested string) Decision {
	if s.IsBooting() {
		return Decision{Outcome: Loading}
	}

	if !s.IsAuthenticated() {
		login := UserLoginPath
		if adminOnly {
			login = AdminLoginPath
		}
		return Decision{Outcome: Redirect, Location: login, From: requested}
	}

	if adminOnly && !s.IsAdmin() {
		return Decision{Outcome: Redirect, Location: DashboardFor(s)}
	}

	if !adminOnly && s.IsAdmin() {
		return Decision{Outcome: Redirect, Location: AdminDashboardPath}
	}

	return Decision{Outcome: Allow}
}

// DashboardFor is the landing page of an authenticated session. A user that
// is not a farmer lands on the supplier dashboard.
func DashboardFor(s session.Session) string {
	switch s.Role {
	case principal.RoleAdmin:
		return AdminDashboardPath
	case principal.RoleUser:
		if s.IsFarmer() {
			return FarmerDashboardPath
		}
		return SupplierDashboardPath
	default:
		return UserLoginPath
	}
}

// Source supplies the session the middleware decides on.
type Source interface {
	Snapshot() session.Session
}

// Middleware gates next behind Decide.
//
// Loading answers 503 with Retry-After so clients poll until boot is done.
// Login redirects carry the requested location in the "from" query
// parameter.
func Middleware(src Source, adminOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := Decide(src.Snapshot(), adminOnly, r.URL.RequestURI())

			switch d.Outcome {
			case Allow:
				next.ServeHTTP(w, r)
			case Redirect:
				location := d.Location
				if d.From != "" {
					location += "?" + url.Values{"from": {d.From}}.Encode()
				}
				http.Redirect(w, r, location, http.StatusFound)
			default:
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, "Loading...\n")
			}
		})
	}
}
