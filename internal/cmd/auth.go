package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
	"github.com/felixgeelhaar/agriconnect/internal/guard"
	"github.com/felixgeelhaar/agriconnect/internal/principal"
	"github.com/felixgeelhaar/agriconnect/internal/session"
	"github.com/felixgeelhaar/agriconnect/internal/tui"
	"github.com/felixgeelhaar/agriconnect/internal/ux"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the marketplace session",
	Long: `Sign in, register, sign out and inspect the current session.

Subcommands:
  login     Sign in as a farmer, supplier or administrator
  register  Create a farmer or supplier account
  logout    Sign out and clear stored credentials
  status    Show the current session
  whoami    Print the signed-in display name

Examples:
  agriconnect auth login --username wanjiku
  agriconnect auth login --admin --username ops
  agriconnect auth register --username otieno --email otieno@example.com --user-type supplier
  agriconnect auth status -o json
  agriconnect auth logout`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the marketplace",
	Long: `Sign in with a username and password. Missing values are prompted for
when the terminal is interactive.

The token and principal are written to the credential store and restored
by every later command.`,
	RunE: withApp(runLogin),
}

var authRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a farmer or supplier account",
	Long: `Create an account. Registration does not sign in; run
'agriconnect auth login' afterwards.

Phone numbers without a country prefix are read in the configured default
region (phone.default_region) and stored in E.164 form.`,
	RunE: withApp(runRegister),
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear stored credentials",
	RunE:  withApp(runLogout),
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE:  withApp(runStatus),
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the signed-in display name",
	RunE:  withApp(runWhoami),
}

var (
	loginUsername string
	loginPassword string
	loginAdmin    bool

	registerInput    session.Registration
	registerFarmSize float64
)

func init() {
	authLoginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username")
	authLoginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (prompted when omitted)")
	authLoginCmd.Flags().BoolVar(&loginAdmin, "admin", false, "sign in through the back-office portal")

	rf := authRegisterCmd.Flags()
	rf.StringVar(&registerInput.Username, "username", "", "username (3-80 characters)")
	rf.StringVar(&registerInput.Email, "email", "", "email address")
	rf.StringVar(&registerInput.Password, "password", "", "password (prompted when omitted)")
	rf.StringVar(&registerInput.ConfirmPassword, "confirm-password", "", "password confirmation")
	rf.StringVar(&registerInput.UserType, "user-type", "", "farmer or supplier (default farmer)")
	rf.StringVar(&registerInput.FirstName, "first-name", "", "first name")
	rf.StringVar(&registerInput.LastName, "last-name", "", "last name")
	rf.StringVar(&registerInput.Phone, "phone", "", "phone number")
	rf.StringVar(&registerInput.Address, "address", "", "postal or street address")
	rf.StringVar(&registerInput.Region, "region", "", "county or region")
	rf.StringVar(&registerInput.Gender, "gender", "", "gender")
	rf.Float64Var(&registerFarmSize, "farm-size", 0, "farm size in acres")

	authCmd.AddCommand(authLoginCmd, authRegisterCmd, authLogoutCmd, authStatusCmd, authWhoamiCmd)
	rootCmd.AddCommand(authCmd)
}

func runLogin(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	a.boot(ctx)

	creds := tui.Credentials{Username: loginUsername, Password: loginPassword}
	if (creds.Username == "" || creds.Password == "") && tui.ShouldPrompt() {
		if err := tui.PromptLogin(&creds, loginAdmin); err != nil {
			return err
		}
	}
	if creds.Username == "" || creds.Password == "" {
		return agerrors.New(agerrors.ErrCodeValidationFailed, "username and password are required").
			WithSuggestion("Pass --username and --password, or run in an interactive terminal")
	}

	return login(ctx, a, creds, loginAdmin)
}

func login(ctx context.Context, a *app, creds tui.Credentials, admin bool) error {
	res := a.session.Login(ctx, creds.Username, creds.Password)
	if !res.Success {
		return resultError(res)
	}

	if u, ok := res.Principal.(*principal.User); ok && !u.IsActive {
		a.session.Logout(ctx)
		return agerrors.New(agerrors.ErrCodeAuthRejected, "Your account has been deactivated. Please contact support.")
	}

	s := a.session.Snapshot()
	if admin && !s.IsAdmin() {
		a.logger.Warn("account is not an administrator; signed in as a regular user", "username", creds.Username)
	}

	a.printf("Signed in as %s. Landing page: %s\n", res.Principal.DisplayName(), guard.DashboardFor(s))
	if outFormat != "text" && outFormat != "" {
		return a.print(ux.NewSessionView(s, false))
	}
	return nil
}

func runRegister(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
	reg := registerInput
	if cmd.Flags().Changed("farm-size") {
		size := registerFarmSize
		reg.FarmSize = &size
	}
	if tui.ShouldPrompt() {
		if err := tui.PromptRegistration(&reg); err != nil {
			return err
		}
	}
	return register(ctx, a, reg)
}

func register(ctx context.Context, a *app, reg session.Registration) error {
	res := a.session.Register(ctx, reg)
	if !res.Success {
		return resultError(res)
	}
	msg := res.Message
	if msg == "" {
		msg = "Registration successful"
	}
	a.printf("%s. Sign in with 'agriconnect auth login --username %s'.\n", msg, reg.Username)
	return nil
}

func runLogout(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	a.boot(ctx)
	wasSignedIn := a.session.Snapshot().IsAuthenticated()
	a.session.Logout(ctx)
	if wasSignedIn {
		a.printf("Signed out.\n")
	} else {
		a.printf("Not signed in.\n")
	}
	return nil
}

func runStatus(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	unconfirmed := a.session.Boot(ctx) != nil
	return a.print(ux.NewSessionView(a.session.Snapshot(), unconfirmed))
}

func runWhoami(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	a.boot(ctx)
	s := a.session.Snapshot()
	if !s.IsAuthenticated() {
		return agerrors.NewNotAuthenticatedError()
	}
	_, err := fmt.Fprintln(a.out, s.Principal.DisplayName())
	return err
}

// resultError turns a failed Result back into a coded error.
func resultError(res session.Result) error {
	code := agerrors.ErrorCode(res.Code)
	if code == "" {
		code = agerrors.ErrCodeAuthRejected
	}
	return agerrors.New(code, res.Error)
}
