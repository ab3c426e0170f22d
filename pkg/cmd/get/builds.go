package get

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	table "github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gradle-enterprise-insights/build-report/internal/api"
	"github.com/gradle-enterprise-insights/build-report/internal/pipeline"
	"github.com/gradle-enterprise-insights/build-report/pkg"
	"github.com/gradle-enterprise-insights/build-report/pkg/version"
)

type buildsOptions struct {
	window    pkg.Window
	pageSize  int
	maxPages  int
	buildTool string
	json      bool
}

func newCmdBuilds(config *pkg.Config) *cobra.Command {
	options := &buildsOptions{}
	cmd := &cobra.Command{
		Use:   "builds",
		Short: "List the builds of a time window, without their details.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := options.window.Validate(); err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true
			builds, err := listBuilds(cmd.Context(), config, options)
			if err != nil {
				return errors.Wrap(err, "could not list the builds")
			}
			return printBuilds(cmd.OutOrStdout(), builds, options.json)
		},
	}

	pkg.AddWindowFlags(cmd, &options.window)
	cmd.Flags().IntVar(&options.pageSize, "page-size", pipeline.DefaultPageSize, "Number of builds requested by page.")
	cmd.Flags().IntVar(&options.maxPages, "max-pages", 0, "Stop after N pages, 0 walks every page of the window.")
	cmd.Flags().StringVar(&options.buildTool, "build-tool", "", "Show only the builds of the build tool type. Example: gradle")
	cmd.Flags().BoolVar(&options.json, "json", false, "Show the builds in json format")
	return cmd
}

// listBuilds walks the pages of the window, serially.
func listBuilds(ctx context.Context, config *pkg.Config, options *buildsOptions) ([]api.Build, error) {
	client := api.NewHTTPClient(config.ServerURL, config.AuthKey, config.Timeout)
	client.UserAgent = version.Version.UserAgent()

	p := pipeline.NewPaginator(client, options.window.Since(time.Now()), options.pageSize, pipeline.PageErrorFail).
		WithMaxPages(options.maxPages)
	filter := pipeline.BuildToolFilter(options.buildTool)

	builds := []api.Build{}
	for {
		page, err := p.Next(ctx)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return builds, nil
		}
		for _, b := range page {
			if filter(b) {
				builds = append(builds, b)
			}
		}
	}
}

func printBuilds(w io.Writer, builds []api.Build, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(builds, "", "    ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	tb := table.NewWriter()
	tb.SetOutputMirror(w)
	tb.AppendHeader(table.Row{"ID", "Available At", "Build Tool", "Version", "Agent"})
	for _, b := range builds {
		tb.AppendRow(table.Row{
			b.ID,
			time.UnixMilli(b.AvailableAt).UTC().Format(time.RFC3339),
			b.BuildToolType,
			b.BuildToolVersion,
			b.BuildAgentVersion,
		})
	}
	tb.AppendFooter(table.Row{"", "", "", "Total", len(builds)})
	tb.Render()
	return nil
}
