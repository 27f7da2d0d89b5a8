package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agriconnect/internal/ux"
)

var (
	cfgFile   string
	envFile   string
	noColor   bool
	outFormat string
)

var rootCmd = &cobra.Command{
	Use:   "agriconnect",
	Short: "Farmers Home marketplace client",
	Long: `agriconnect signs farmers, suppliers and administrators in to the
AgriConnect marketplace and keeps the session between runs.

The session is restored from the credential store on every command and
re-confirmed with the backend. The console subcommand serves the
marketplace pages locally behind the same session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, cancelled on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.agriconnect/config.yaml)")
	pf.StringVar(&envFile, "env-file", "", "dotenv file to load (default is ./.env)")
	pf.String("api-url", "", "backend API base URL")
	pf.String("store", "", "credential store backend: file, memory or redis")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.StringVarP(&outFormat, "format", "o", "text", "output format: "+strings.Join(ux.Formats, ", "))
	pf.BoolVar(&noColor, "no-color", false, "disable styled output")
}
