package get

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gradle-enterprise-insights/build-report/pkg"
)

func NewCmdGet(config *pkg.Config) *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Get information from the server.",
		Run:   runGet,
	}
	getCmd.AddCommand(newCmdBuilds(config))
	return getCmd
}

func runGet(cmd *cobra.Command, args []string) {
	fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do. See -h for more options.")
}
