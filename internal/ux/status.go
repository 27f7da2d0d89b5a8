package ux

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/agriconnect/internal/principal"
	"github.com/felixgeelhaar/agriconnect/internal/session"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	offStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// SessionView is the printable form of a session. Tokens are never included.
type SessionView struct {
	State       string              `json:"state" yaml:"state"`
	Role        string              `json:"role,omitempty" yaml:"role,omitempty"`
	DisplayName string              `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	UserType    string              `json:"user_type,omitempty" yaml:"user_type,omitempty"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Unconfirmed bool                `json:"unconfirmed,omitempty" yaml:"unconfirmed,omitempty"`
	Principal   principal.Principal `json:"principal,omitempty" yaml:"principal,omitempty"`
}

// NewSessionView builds a view. unconfirmed marks a session kept after a
// failed boot confirmation.
func NewSessionView(s session.Session, unconfirmed bool) SessionView {
	v := SessionView{State: s.State.String()}
	if !s.IsAuthenticated() {
		return v
	}
	v.Role = string(s.Role)
	v.DisplayName = s.Principal.DisplayName()
	v.Principal = s.Principal
	v.Unconfirmed = unconfirmed
	if u, ok := s.Principal.(*principal.User); ok {
		v.UserType = u.UserType
	}
	if !s.ExpiresAt.IsZero() {
		exp := s.ExpiresAt
		v.ExpiresAt = &exp
	}
	return v
}

// Render implements Styler.
func (v SessionView) Render(color bool) string {
	style := func(st lipgloss.Style, s string) string {
		if !color {
			return s
		}
		return st.Render(s)
	}

	var b strings.Builder
	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", style(labelStyle, fmt.Sprintf("%-10s", label)), value)
	}

	if v.Role == "" {
		row("Status:", style(offStyle, "not logged in"))
		return strings.TrimRight(b.String(), "\n")
	}

	status := style(okStyle, "logged in")
	if v.Unconfirmed {
		status += " " + style(warnStyle, "(not confirmed by backend)")
	}
	row("Status:", status)
	row("Name:", v.DisplayName)
	role := v.Role
	if v.UserType != "" {
		role += " (" + v.UserType + ")"
	}
	row("Role:", role)
	if v.ExpiresAt != nil {
		row("Expires:", v.ExpiresAt.Local().Format(time.RFC1123))
	}
	return strings.TrimRight(b.String(), "\n")
}

// String renders without color.
func (v SessionView) String() string { return v.Render(false) }
