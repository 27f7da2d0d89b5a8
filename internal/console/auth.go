package console

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
	"github.com/felixgeelhaar/agriconnect/internal/guard"
	"github.com/felixgeelhaar/agriconnect/internal/platform"
	"github.com/felixgeelhaar/agriconnect/internal/principal"
	"github.com/felixgeelhaar/agriconnect/internal/session"
)

const maxBody = 1 << 20

// AuthResponse answers JSON login, registration and logout posts.
type AuthResponse struct {
	Success   bool                `json:"success"`
	Error     string              `json:"error,omitempty"`
	Code      string              `json:"code,omitempty"`
	Message   string              `json:"message,omitempty"`
	Redirect  string              `json:"redirect,omitempty"`
	Principal principal.Principal `json:"principal,omitempty"`
	Role      principal.Role      `json:"role,omitempty"`
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// readFields returns the request body as flat string fields, from either a
// JSON object or a form.
func readFields(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if isJSON(r) {
		var m map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			return nil, nil, agerrors.Wrap(agerrors.ErrCodeValidationFailed, "malformed JSON body", err)
		}
		return m, nil, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, nil, agerrors.Wrap(agerrors.ErrCodeValidationFailed, "malformed form body", err)
	}
	return nil, r.PostForm, nil
}

func jsonString(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// numbers and booleans keep their literal text
	return strings.Trim(string(raw), `"`)
}

// safeRedirect accepts only local absolute paths.
func safeRedirect(from string) string {
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return ""
	}
	return from
}

func (c *console) respond(w http.ResponseWriter, r *http.Request, status int, resp AuthResponse) {
	if !isJSON(r) && resp.Success && resp.Redirect != "" {
		http.Redirect(w, r, resp.Redirect, http.StatusSeeOther)
		return
	}
	writeJSON(w, status, resp)
}

func failureStatus(res session.Result) int {
	switch res.Code {
	case string(agerrors.ErrCodeSessionInProgress):
		return http.StatusConflict
	case string(agerrors.ErrCodeValidationFailed), string(agerrors.ErrCodePasswordMismatch), string(agerrors.ErrCodeInvalidPhoneNumber):
		return http.StatusBadRequest
	default:
		return http.StatusUnauthorized
	}
}

func (c *console) handleLogin(adminPortal bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var username, password, from string
		m, form, err := readFields(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, AuthResponse{Error: errorText(err), Code: string(agerrors.CodeOf(err))})
			return
		}
		if m != nil {
			username, password, from = jsonString(m, "username"), jsonString(m, "password"), jsonString(m, "from")
		} else {
			username, password, from = form.Get("username"), form.Get("password"), form.Get("from")
		}
		if from == "" {
			from = r.URL.Query().Get("from")
		}

		res := c.cfg.Session.Login(r.Context(), username, password)
		if !res.Success {
			c.recordError(res.Code)
			c.respond(w, r, failureStatus(res), AuthResponse{Error: res.Error, Code: res.Code})
			return
		}

		if u, ok := res.Principal.(*principal.User); ok && !u.IsActive {
			c.cfg.Session.Logout(r.Context())
			c.respond(w, r, http.StatusForbidden, AuthResponse{
				Error: "Your account has been deactivated. Please contact support.",
				Code:  string(agerrors.ErrCodeAuthRejected),
			})
			return
		}

		if adminPortal && res.Role != principal.RoleAdmin {
			// the session stays; the guard sends it to its own dashboard
			c.logger.InfoContext(r.Context(), "non-admin signed in through the admin portal", "role", string(res.Role))
		}

		target := safeRedirect(from)
		if target == "" {
			target = guard.DashboardFor(c.cfg.Session.Snapshot())
		}
		c.respond(w, r, http.StatusOK, AuthResponse{
			Success:   true,
			Redirect:  target,
			Principal: res.Principal,
			Role:      res.Role,
		})
	}
}

func (c *console) handleRegister(w http.ResponseWriter, r *http.Request) {
	m, form, err := readFields(w, r)
	var reg session.Registration
	if err == nil {
		if m != nil {
			reg, err = RegistrationFromJSON(m)
		} else {
			reg, err = RegistrationFromForm(form)
		}
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Error: errorText(err), Code: string(agerrors.CodeOf(err))})
		return
	}

	res := c.cfg.Session.Register(r.Context(), reg)
	if !res.Success {
		c.recordError(res.Code)
		status := failureStatus(res)
		if status == http.StatusUnauthorized {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, AuthResponse{Error: res.Error, Code: res.Code})
		return
	}
	c.respond(w, r, http.StatusCreated, AuthResponse{Success: true, Message: res.Message, Redirect: guard.UserLoginPath})
}

func (c *console) handleLogout(w http.ResponseWriter, r *http.Request) {
	c.cfg.Session.Logout(r.Context())
	c.respond(w, r, http.StatusOK, AuthResponse{Success: true, Redirect: "/"})
}

// RegistrationFromForm reads the flat field names of the registration form.
func RegistrationFromForm(form url.Values) (session.Registration, error) {
	get := func(k string) string { return form.Get(k) }
	return registrationFrom(get)
}

// RegistrationFromJSON accepts both the nested {user, profile} document and
// the flat form layout.
func RegistrationFromJSON(m map[string]json.RawMessage) (session.Registration, error) {
	userRaw, hasUser := m["user"]
	profileRaw, hasProfile := m["profile"]
	if !hasUser || !hasProfile {
		return registrationFrom(func(k string) string { return jsonString(m, k) })
	}

	var user, profile map[string]json.RawMessage
	if err := json.Unmarshal(userRaw, &user); err != nil {
		return session.Registration{}, agerrors.Wrap(agerrors.ErrCodeValidationFailed, "user must be an object", err)
	}
	if err := json.Unmarshal(profileRaw, &profile); err != nil {
		return session.Registration{}, agerrors.Wrap(agerrors.ErrCodeValidationFailed, "profile must be an object", err)
	}
	return registrationFrom(func(k string) string {
		if _, ok := user[k]; ok {
			return jsonString(user, k)
		}
		return jsonString(profile, k)
	})
}

func registrationFrom(get func(string) string) (session.Registration, error) {
	reg := session.Registration{
		Username:        get("username"),
		Email:           get("email"),
		Password:        get("password"),
		ConfirmPassword: get("confirm_password"),
		UserType:        get("user_type"),
		FirstName:       get("first_name"),
		LastName:        get("last_name"),
		Phone:           get("phone"),
		Address:         get("address"),
		Region:          get("region"),
		Gender:          get("gender"),
	}
	if raw := strings.TrimSpace(get("farm_size")); raw != "" && raw != "null" {
		size, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return session.Registration{}, agerrors.New(agerrors.ErrCodeValidationFailed, fmt.Sprintf("farm_size: %q is not a number", raw))
		}
		reg.FarmSize = &size
	}
	return reg, nil
}

// errorText is the user-facing message of err without suggestions.
func errorText(err error) string {
	var agriErr *agerrors.AgriError
	if stderrors.As(err, &agriErr) {
		return agriErr.Message
	}
	var apiErr *platform.APIError
	if stderrors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
