// Package cli contains the Cobra commands of the blogpipe binary.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs the root command and registers every subcommand.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "blogpipe",
		Short:         "Publish markdown folders as blog posts keyed by Snowflake ids",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		NewIDCommand(),
		NewRunCommand(),
		NewMigrateCommand(),
		NewTokenCommand(),
	)
	return root
}
