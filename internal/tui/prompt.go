// Package tui holds the interactive terminal prompts used by the CLI.
package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/agriconnect/internal/principal"
	"github.com/felixgeelhaar/agriconnect/internal/session"
)

// Credentials are the login form values.
type Credentials struct {
	Username string
	Password string
}

func required(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

// loginFields returns inputs for the values still missing from c.
func loginFields(c *Credentials, admin bool) []huh.Field {
	var fields []huh.Field
	title := "Username"
	if admin {
		title = "Admin username"
	}
	if c.Username == "" {
		fields = append(fields, huh.NewInput().
			Title(title).
			Value(&c.Username).
			Validate(required("username")))
	}
	if c.Password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&c.Password).
			Validate(required("password")))
	}
	return fields
}

// PromptLogin asks for whatever c is missing.
func PromptLogin(c *Credentials, admin bool) error {
	fields := loginFields(c, admin)
	if len(fields) == 0 {
		return nil
	}
	return run(fields)
}

// registrationFields returns inputs for the account values still missing
// from r. Profile fields are only asked for when both names are empty.
func registrationFields(r *session.Registration) []huh.Field {
	var fields []huh.Field
	if r.Username == "" {
		fields = append(fields, huh.NewInput().Title("Username").Value(&r.Username).Validate(required("username")))
	}
	if r.Email == "" {
		fields = append(fields, huh.NewInput().Title("Email").Value(&r.Email).Validate(required("email")))
	}
	if r.Password == "" {
		fields = append(fields,
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&r.Password).Validate(required("password")),
			huh.NewInput().Title("Confirm password").EchoMode(huh.EchoModePassword).Value(&r.ConfirmPassword),
		)
	}
	if r.UserType == "" {
		r.UserType = principal.UserTypeFarmer
		fields = append(fields, huh.NewSelect[string]().
			Title("I am a").
			Options(
				huh.NewOption("Farmer", principal.UserTypeFarmer),
				huh.NewOption("Supplier", principal.UserTypeSupplier),
			).
			Value(&r.UserType))
	}
	if r.FirstName == "" && r.LastName == "" {
		fields = append(fields,
			huh.NewInput().Title("First name").Value(&r.FirstName),
			huh.NewInput().Title("Last name").Value(&r.LastName),
			huh.NewInput().Title("Phone").Placeholder("+254712345678").Value(&r.Phone),
		)
	}
	return fields
}

// PromptRegistration asks for whatever r is missing.
func PromptRegistration(r *session.Registration) error {
	fields := registrationFields(r)
	if len(fields) == 0 {
		return nil
	}
	return run(fields)
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue
	if err := run([]huh.Field{huh.NewConfirm().Title(message).Value(&confirmed)}); err != nil {
		return false, err
	}
	return confirmed, nil
}

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("prompt aborted")

func run(fields []huh.Field) error {
	err := huh.NewForm(huh.NewGroup(fields...)).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	if err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ciEnvVars disable prompting when any is set.
var ciEnvVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"BUILDKITE",
}

// ShouldPrompt returns true if prompts should be shown based on environment
func ShouldPrompt() bool {
	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}
	return IsInteractive()
}
