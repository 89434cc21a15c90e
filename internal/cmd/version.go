package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sellcomet/eddlicense/internal/cmn/config"
)

func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the binary version",
		Long:  `Print the version of the eddlicense executable.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), config.Version)
		},
	}
}
