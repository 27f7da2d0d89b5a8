package console

import (
	"encoding/json"
	"net/http"

	"github.com/felixgeelhaar/agriconnect/internal/principal"
)

// Page is the body of every page response.
type Page struct {
	Page      string              `json:"page"`
	Principal principal.Principal `json:"principal,omitempty"`
	Role      principal.Role      `json:"role,omitempty"`
	Data      interface{}         `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (c *console) render(w http.ResponseWriter, name string, data interface{}) {
	s := c.cfg.Session.Snapshot()
	p := Page{Page: name, Data: data}
	if s.IsAuthenticated() {
		p.Principal = s.Principal
		p.Role = s.Role
	}
	writeJSON(w, http.StatusOK, p)
}

func (c *console) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		c.render(w, name, nil)
	}
}

func (c *console) loginPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data interface{}
		if from := r.URL.Query().Get("from"); from != "" {
			data = map[string]string{"from": from}
		}
		c.render(w, name, data)
	}
}

func (c *console) userPage(name string) http.HandlerFunc {
	switch name {
	case "dashboard":
		return c.dashboard("user-dashboard")
	case "ecommerce":
		return c.ecommercePage
	case "my-orders":
		return c.ordersPage
	case "skills":
		return c.skillsPage
	case "communicate":
		return c.conversationsPage
	case "profile":
		return func(w http.ResponseWriter, _ *http.Request) {
			s := c.cfg.Session.Snapshot()
			var profile *principal.Profile
			if u, ok := s.Principal.(*principal.User); ok {
				profile = u.Profile
			}
			c.render(w, "user-profile", map[string]interface{}{"profile": profile})
		}
	default:
		return c.page("user-" + name)
	}
}

func (c *console) adminPage(name string) http.HandlerFunc {
	if name == "dashboard" {
		return c.dashboard("admin-dashboard")
	}
	return c.page("admin-" + name)
}

// dashboard fetches the role's statistics from the backend. A backend
// failure still renders the page, with the error in data.
func (c *console) dashboard(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := c.cfg.Session.Snapshot()
		doc, err := c.cfg.Backend.Dashboard(r.Context(), s.Role)
		if err != nil {
			c.logger.WithError(err).Warn("dashboard fetch failed", "page", name)
			c.render(w, name, map[string]string{"error": errorText(err)})
			return
		}
		c.render(w, name, doc)
	}
}
