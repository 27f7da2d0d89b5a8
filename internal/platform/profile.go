package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/felixgeelhaar/agriconnect/internal/principal"
)

// UpdateProfileResponse represents the result of a profile edit
type UpdateProfileResponse struct {
	Message string            `json:"message"`
	Profile principal.Profile `json:"profile"`
}

// UpdateProfile edits the current user's profile. The backend reads the
// fields from a form body and ignores unknown keys.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]string) (*UpdateProfileResponse, error) {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}

	resp, err := c.doForm(ctx, http.MethodPut, "/profile", form)
	if err != nil {
		return nil, err
	}

	var out UpdateProfileResponse
	if err := parseResponse(resp, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Dashboard fetches the role's dashboard statistics as an opaque document.
func (c *Client) Dashboard(ctx context.Context, role principal.Role) (json.RawMessage, error) {
	path := "/user/dashboard"
	if role == principal.RoleAdmin {
		path = "/admin/dashboard"
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var doc json.RawMessage
	if err := parseResponse(resp, &doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// Ping issues an unauthenticated GET against the base URL and returns the
// status code. The bound token is never sent. Used by health checks.
func (c *Client) Ping(ctx context.Context) (int, error) {
	resp, err := c.send(ctx, NoToken, http.MethodGet, "/", "application/json", nil)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
