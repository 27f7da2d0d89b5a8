package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agriconnect/internal/ux"
	"github.com/felixgeelhaar/agriconnect/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := ux.NewFormatter(outFormat, &ux.FormatterOptions{Writer: cmd.OutOrStdout(), NoColor: noColor})
		if err != nil {
			return err
		}
		return f.Format(version.GetInfo())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
