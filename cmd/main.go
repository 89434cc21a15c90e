package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sellcomet/eddlicense/internal/cmd"
	"github.com/sellcomet/eddlicense/internal/cmn/config"
)

var rootCmd = &cobra.Command{
	Use:   config.AppSlug,
	Short: "eddlicense manages Easy Digital Downloads extension licenses",
	Long: `eddlicense manages the licenses of Easy Digital Downloads extensions.

It activates and deactivates license keys against the licensing server,
refreshes the stored status every week, checks for new versions and serves
the admin screens that host the license forms and notices.
`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cmd.Serve())
	rootCmd.AddCommand(cmd.Activate())
	rootCmd.AddCommand(cmd.Deactivate())
	rootCmd.AddCommand(cmd.Check())
	rootCmd.AddCommand(cmd.Status())
	rootCmd.AddCommand(cmd.Updates())
	rootCmd.AddCommand(cmd.Beta())
	rootCmd.AddCommand(cmd.Version())

	config.Version = version
}

var version = "0.0.0"
