package platform

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/felixgeelhaar/agriconnect/internal/principal"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Success     bool            `json:"success"`
	AccessToken string          `json:"access_token"`
	Type        string          `json:"type"`
	UserType    string          `json:"user_type"`
	User        json.RawMessage `json:"user,omitempty"`
	Admin       json.RawMessage `json:"admin,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Envelope returns the role-tagged principal carried by the response.
func (r *LoginResponse) Envelope() principal.Envelope {
	return principal.Envelope{Type: r.Type, User: r.User, Admin: r.Admin}
}

// AccountFields are the credentials half of a registration.
type AccountFields struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

// ProfileFields are the profile half of a registration.
type ProfileFields struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Phone     string   `json:"phone,omitempty"`
	Address   string   `json:"address,omitempty"`
	Region    string   `json:"region,omitempty"`
	FarmSize  *float64 `json:"farm_size,omitempty"`
	Gender    string   `json:"gender,omitempty"`
}

// RegistrationRequest is the nested {user, profile} body the backend expects.
type RegistrationRequest struct {
	User    AccountFields `json:"user"`
	Profile ProfileFields `json:"profile"`
}

// RegisterResponse represents a successful registration
type RegisterResponse struct {
	Message string          `json:"message"`
	User    json.RawMessage `json:"user,omitempty"`
}

// Login exchanges credentials for an access token and a role-tagged principal.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var loginResp LoginResponse
	if err := parseResponse(resp, &loginResp); err != nil {
		return nil, err
	}

	return &loginResp, nil
}

// Register creates a new farmer or supplier account. It does not log in.
func (c *Client) Register(ctx context.Context, reg RegistrationRequest) (*RegisterResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/register", reg)
	if err != nil {
		return nil, err
	}

	var regResp RegisterResponse
	if err := parseResponse(resp, &regResp); err != nil {
		return nil, err
	}

	return &regResp, nil
}

// Profile retrieves the identity bound to the current token.
func (c *Client) Profile(ctx context.Context) (principal.Envelope, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/auth/profile", nil)
	if err != nil {
		return principal.Envelope{}, err
	}

	var env principal.Envelope
	if err := parseResponse(resp, &env); err != nil {
		return principal.Envelope{}, err
	}

	return env, nil
}

// Logout notifies the backend that token is no longer in use. The token is
// passed explicitly because the session has usually been reset, and the
// binding cleared, by the time this runs. Tokens are stateless server-side,
// so callers treat failures as informational.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.doRequestAs(ctx, StaticToken(token), http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	return parseResponse(resp, nil)
}
