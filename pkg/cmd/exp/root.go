package exp

import (
	"github.com/spf13/cobra"
)

func NewCmdExp() *cobra.Command {
	expCmd := &cobra.Command{
		Use:   "exp",
		Short: "Experimental commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	expCmd.AddCommand(newCmdPublish())
	return expCmd
}
