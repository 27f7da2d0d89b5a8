// Package session owns who is logged in and as what.
//
// A Controller is constructed once per process and handed to every consumer
// (CLI commands, the console router, the route guard). It reconciles the
// in-memory session with the credential store at boot and exposes the
// login, register, logout and profile-update operations.
package session

import (
	"time"

	"github.com/felixgeelhaar/agriconnect/internal/principal"
)

// State is the controller's lifecycle state.
type State int

const (
	// Booting is the initial state. Route decisions are deferred.
	Booting State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is an immutable view of the controller's state.
type Session struct {
	State     State
	Principal principal.Principal
	Role      principal.Role
	Token     string

	// ExpiresAt is the token's exp claim when the token is a JWT.
	ExpiresAt time.Time

	// Confirming is true between an optimistic restore and the end of the
	// backend confirmation.
	Confirming bool
}

// IsBooting reports whether no route decision should be made yet.
func (s Session) IsBooting() bool { return s.State == Booting }

// IsAuthenticated requires a token, a principal and a role.
func (s Session) IsAuthenticated() bool {
	return s.State == Authenticated && s.Token != "" && s.Principal != nil && s.Role != ""
}

func (s Session) IsAdmin() bool { return s.IsAuthenticated() && s.Role == principal.RoleAdmin }
func (s Session) IsUser() bool  { return s.IsAuthenticated() && s.Role == principal.RoleUser }

// IsFarmer reports a user principal registered as a farmer.
func (s Session) IsFarmer() bool {
	u, ok := s.Principal.(*principal.User)
	return s.IsUser() && ok && u.IsFarmer()
}

// IsSupplier reports a user principal registered as a supplier.
func (s Session) IsSupplier() bool {
	u, ok := s.Principal.(*principal.User)
	return s.IsUser() && ok && u.IsSupplier()
}

// Result is what login and register return. Failures are reported here and
// never as a Go error.
type Result struct {
	Success   bool
	Error     string
	Code      string
	Message   string
	Principal principal.Principal
	Role      principal.Role
}
