// Package principal models the authenticated identity returned by the
// AgriConnect backend.
//
// The backend tags every identity with a "type" field that selects either a
// "user" or an "admin" sub-object. Here that is a closed union: a Principal is
// always exactly one of *User or *Admin, so callers type-switch instead of
// probing optional fields.
package principal

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
)

// Role is the coarse-grained tag deciding which dashboard applies.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts exactly "user" or "admin".
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", agerrors.New(agerrors.ErrCodeAuthUnknownRole, fmt.Sprintf("unknown principal type %q", s))
	}
}

// Principal is implemented by *User and *Admin only.
type Principal interface {
	Role() Role
	PrincipalID() int64
	DisplayName() string
	sealed()
}

// Profile is the nested farmer/supplier profile carried by user principals.
type Profile struct {
	FirstName      string   `json:"first_name" yaml:"first_name"`
	LastName       string   `json:"last_name" yaml:"last_name"`
	Phone          string   `json:"phone,omitempty" yaml:"phone,omitempty"`
	Address        string   `json:"address,omitempty" yaml:"address,omitempty"`
	Region         string   `json:"region,omitempty" yaml:"region,omitempty"`
	FarmSize       *float64 `json:"farm_size,omitempty" yaml:"farm_size,omitempty"`
	Gender         string   `json:"gender,omitempty" yaml:"gender,omitempty"`
	DateOfBirth    string   `json:"date_of_birth,omitempty" yaml:"date_of_birth,omitempty"`
	ProfilePicture string   `json:"profile_picture,omitempty" yaml:"profile_picture,omitempty"`
	UpdatedAt      string   `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// User is a farmer or supplier account.
type User struct {
	ID         int64    `json:"id" yaml:"id"`
	Username   string   `json:"username" yaml:"username"`
	Email      string   `json:"email" yaml:"email"`
	UserType   string   `json:"user_type" yaml:"user_type"`
	IsActive   bool     `json:"is_active" yaml:"is_active"`
	IsVerified bool     `json:"is_verified" yaml:"is_verified"`
	CreatedAt  string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Profile    *Profile `json:"profile,omitempty" yaml:"profile,omitempty"`
}

const (
	UserTypeFarmer   = "farmer"
	UserTypeSupplier = "supplier"
)

func (*User) Role() Role { return RoleUser }
func (u *User) PrincipalID() int64 { return u.ID }
func (*User) sealed() {}

// DisplayName prefers the profile's full name and falls back to the username.
func (u *User) DisplayName() string {
	if u.Profile != nil {
		if name := strings.TrimSpace(u.Profile.FirstName + " " + u.Profile.LastName); name != "" {
			return name
		}
	}
	return u.Username
}

// IsFarmer reports whether the account was registered as a farmer.
func (u *User) IsFarmer() bool { return u.UserType == UserTypeFarmer }

// IsSupplier reports whether the account was registered as a supplier.
func (u *User) IsSupplier() bool { return u.UserType == UserTypeSupplier }

// Admin is a back-office account.
type Admin struct {
	ID        int64  `json:"id" yaml:"id"`
	Username  string `json:"username" yaml:"username"`
	Email     string `json:"email" yaml:"email"`
	AdminRole string `json:"role,omitempty" yaml:"role,omitempty"`
	IsActive  bool   `json:"is_active" yaml:"is_active"`
	CreatedAt string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

func (*Admin) Role() Role { return RoleAdmin }
func (a *Admin) PrincipalID() int64 { return a.ID }
func (a *Admin) DisplayName() string { return a.Username }
func (*Admin) sealed() {}

// Decode parses raw JSON as the principal variant selected by role.
func Decode(role Role, raw []byte) (Principal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, agerrors.New(agerrors.ErrCodeAPIDecode, fmt.Sprintf("missing %s object", role))
	}

	var (
		p   Principal
		err error
	)
	switch role {
	case RoleUser:
		var u User
		err = json.Unmarshal(raw, &u)
		p = &u
	case RoleAdmin:
		var a Admin
		err = json.Unmarshal(raw, &a)
		p = &a
	default:
		_, err = ParseRole(string(role))
		return nil, err
	}
	if err != nil {
		return nil, agerrors.Wrap(agerrors.ErrCodeAPIDecode, fmt.Sprintf("failed to decode %s", role), err)
	}
	return p, nil
}

// Encode serializes p in the same shape the backend returns it.
func Encode(p Principal) ([]byte, error) {
	if p == nil {
		return nil, agerrors.New(agerrors.ErrCodeAPIDecode, "cannot encode nil principal")
	}
	return json.Marshal(p)
}

// IDString is the denormalized id kept next to the serialized principal.
func IDString(p Principal) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(p.PrincipalID(), 10)
}

// Envelope is the backend's role-tagged identity document:
// {"type": "user", "user": {...}} or {"type": "admin", "admin": {...}}.
type Envelope struct {
	Type  string          `json:"type"`
	User  json.RawMessage `json:"user,omitempty"`
	Admin json.RawMessage `json:"admin,omitempty"`
}

// Principal resolves the envelope into its variant.
func (e Envelope) Principal() (Principal, error) {
	role, err := ParseRole(e.Type)
	if err != nil {
		return nil, err
	}
	if role == RoleAdmin {
		return Decode(role, e.Admin)
	}
	return Decode(role, e.User)
}
