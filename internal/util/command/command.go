package command

import (
	"github.com/spf13/cobra"
)

// NewSubcommandGroup returns a parent command that only dispatches to its
// subcommands, printing usage when invoked bare.
func NewSubcommandGroup(use string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use: use,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}
