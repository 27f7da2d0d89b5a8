package cmd

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
	"github.com/felixgeelhaar/agriconnect/internal/principal"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit the signed-in user's profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the confirmed principal",
	RunE:  withApp(runProfileShow),
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Edit profile fields",
	Long: `Edit profile fields with repeated --field key=value pairs.

Recognised keys: first_name, last_name, phone, address, region, farm_size,
gender, date_of_birth.

Example:
  agriconnect profile set --field region=Nakuru --field farm_size=4.5`,
	RunE: withApp(runProfileSet),
}

var (
	profileFields   []string
	profileDocument string
)

// editableProfileFields are the keys the backend accepts on PUT /profile.
var editableProfileFields = map[string]bool{
	"first_name":    true,
	"last_name":     true,
	"phone":         true,
	"address":       true,
	"region":        true,
	"farm_size":     true,
	"gender":        true,
	"date_of_birth": true,
}

func init() {
	profileSetCmd.Flags().StringArrayVar(&profileFields, "field", nil, "key=value to update (repeatable)")
	profileSetCmd.Flags().StringVar(&profileDocument, "json", "", "fields as a JSON object")

	profileCmd.AddCommand(profileShowCmd, profileSetCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileShow(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	a.boot(ctx)
	s := a.session.Snapshot()
	if !s.IsAuthenticated() {
		return agerrors.NewNotAuthenticatedError()
	}
	if outFormat == "text" || outFormat == "" {
		data, err := json.MarshalIndent(s.Principal, "", "  ")
		if err != nil {
			return err
		}
		return a.print(string(data))
	}
	return a.print(s.Principal)
}

func runProfileSet(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	fields, err := parseProfileFields(profileFields, profileDocument)
	if err != nil {
		return err
	}
	return updateProfile(ctx, a, fields)
}

func updateProfile(ctx context.Context, a *app, fields map[string]string) error {
	a.boot(ctx)
	s := a.session.Snapshot()
	if !s.IsAuthenticated() {
		return agerrors.NewNotAuthenticatedError()
	}
	u, ok := s.Principal.(*principal.User)
	if !ok {
		return agerrors.New(agerrors.ErrCodeAuthUnknownRole, "only user accounts have a profile")
	}

	resp, err := a.client.UpdateProfile(ctx, fields)
	if err != nil {
		return err
	}

	updated := *u
	profile := resp.Profile
	updated.Profile = &profile
	if err := a.session.UpdatePrincipal(ctx, &updated); err != nil {
		return err
	}

	msg := resp.Message
	if msg == "" {
		msg = "Profile updated"
	}
	a.printf("%s.\n", msg)
	return nil
}

// parseProfileFields merges --json and --field values; --field wins.
func parseProfileFields(pairs []string, doc string) (map[string]string, error) {
	fields := map[string]string{}
	if doc != "" {
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(doc), &raw); err != nil {
			return nil, agerrors.Wrap(agerrors.ErrCodeValidationFailed, "--json must be an object", err)
		}
		for k, v := range raw {
			switch v := v.(type) {
			case string:
				fields[k] = v
			default:
				b, _ := json.Marshal(v)
				fields[k] = string(b)
			}
		}
	}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, agerrors.New(agerrors.ErrCodeValidationFailed, "--field expects key=value, got "+pair)
		}
		fields[strings.TrimSpace(k)] = v
	}
	if len(fields) == 0 {
		return nil, agerrors.New(agerrors.ErrCodeValidationFailed, "nothing to update").
			WithSuggestion("Pass at least one --field key=value")
	}
	for k := range fields {
		if !editableProfileFields[k] {
			return nil, agerrors.New(agerrors.ErrCodeValidationFailed, "unknown profile field "+k)
		}
	}
	return fields, nil
}
