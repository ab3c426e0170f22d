// Package version contains all identifiable versioning info for
// describing the build report project.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gradle-enterprise-insights/build-report/pkg"
)

var (
	projectName = pkg.ProjectName
	version     = "unknown"
	commit      = "unknown"
)

var Version = VersionContext{
	Name:    projectName,
	Version: version,
	Commit:  commit,
}

type VersionContext struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func (vc *VersionContext) String() string {
	return fmt.Sprintf("%s: %s+%s", vc.Name, vc.Version, vc.Commit)
}

// UserAgent is sent on the requests to the server.
func (vc *VersionContext) UserAgent() string {
	return fmt.Sprintf("%s/%s (%s/%s)", vc.Name, vc.Version, runtime.GOOS, runtime.GOARCH)
}

func NewCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build report tool version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version.String())
			fmt.Fprintf(cmd.OutOrStdout(), "Go: %s\n", runtime.Version())
		},
	}
}
