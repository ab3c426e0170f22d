package report

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gradle-enterprise-insights/build-report/internal/api"
	"github.com/gradle-enterprise-insights/build-report/internal/archive"
	"github.com/gradle-enterprise-insights/build-report/internal/chart"
	"github.com/gradle-enterprise-insights/build-report/internal/metrics"
	"github.com/gradle-enterprise-insights/build-report/internal/pipeline"
	"github.com/gradle-enterprise-insights/build-report/internal/report"
	"github.com/gradle-enterprise-insights/build-report/pkg"
	"github.com/gradle-enterprise-insights/build-report/pkg/version"
)

type Input struct {
	window        pkg.Window
	pageSize      int
	maxPages      int
	concurrency   int
	queueSize     int
	onPageError   string
	onDetailError string
	buildTool     string
	output        string
	saveTo        string
	loadFrom      string
	topN          int
	serve         bool
	serverAddress string
}

func NewCmdReport(config *pkg.Config) *cobra.Command {
	data := Input{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Create a report from the builds of a time window.",
		Long: `Fetch the builds of a time window from the server, with their gradle
attributes and build cache performance, and report the slowest projects
and users, the build cache issues and the tasks with negative avoidance
savings.`,
		Example: `  gebr report --server-url https://ge.example.com --auth-key $KEY --hours 2
  gebr report --minutes 30 --output table --save-to ./results
  gebr report --load-from ./results/builds.json.xz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFlags(config, &data); err != nil {
				return err
			}
			// the usage is printed on flag errors only
			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			re, err := processReport(ctx, config, &data)
			if err != nil {
				return errors.Wrap(err, "could not create the report")
			}
			if err := printReport(cmd.OutOrStdout(), re, data.output); err != nil {
				return err
			}
			if data.saveTo != "" && data.serve {
				return serveResults(ctx, data.saveTo, data.serverAddress)
			}
			return nil
		},
	}

	pkg.AddWindowFlags(cmd, &data.window)
	cmd.Flags().IntVar(
		&data.pageSize, "page-size", pipeline.DefaultPageSize,
		"Number of builds requested by page.",
	)
	cmd.Flags().IntVar(
		&data.maxPages, "max-pages", 0,
		"Stop after N pages, 0 walks every page of the window.",
	)
	cmd.Flags().IntVar(
		&data.concurrency, "concurrency", pipeline.DefaultConcurrency,
		"Number of pages whose builds are fetched at once.",
	)
	cmd.Flags().IntVar(
		&data.queueSize, "queue-size", pipeline.DefaultPageQueueSize,
		"Number of pages buffered between the pagination and the fetchers.",
	)
	cmd.Flags().StringVar(
		&data.onPageError, "on-page-error", string(pipeline.PageErrorFail),
		"Action when a page of builds can't be fetched: fail or stop (report the builds fetched so far).",
	)
	cmd.Flags().StringVar(
		&data.onDetailError, "on-detail-error", string(pipeline.DetailErrorFail),
		"Action when the details of a build can't be fetched: fail or skip (the build).",
	)
	cmd.Flags().StringVar(
		&data.buildTool, "build-tool", api.BuildToolGradle,
		"Build tool type of the builds reported.",
	)
	cmd.Flags().StringVarP(
		&data.output, "output", "o", OutputText,
		"Output format: text, table, json or yaml.",
	)
	cmd.Flags().StringVarP(
		&data.saveTo, "save-to", "s", "",
		"Save the report (json, sheet, charts) and the builds fetched to the directory. Example: -s ./results",
	)
	cmd.Flags().StringVar(
		&data.loadFrom, "load-from", "",
		"Create the report from the builds saved by a previous run instead of querying the server.",
	)
	cmd.Flags().IntVar(
		&data.topN, "chart-top", chart.DefaultTopN,
		"Number of groups plotted by chart when --save-to is used.",
	)
	cmd.Flags().BoolVar(
		&data.serve, "serve", false,
		"Serve the saved results over HTTP after the report. Requires --save-to.",
	)
	cmd.Flags().StringVar(
		&data.serverAddress, "server-address", "127.0.0.1:9090",
		"HTTP server address to serve files when --serve is used.",
	)

	return cmd
}

// checkFlags validates the input, the server settings aren't required when
// the builds are loaded from the disk.
func checkFlags(config *pkg.Config, input *Input) error {
	if err := input.window.Validate(); err != nil {
		return err
	}
	if input.loadFrom == "" {
		if err := config.Validate(); err != nil {
			return err
		}
	}
	if input.pageSize <= 0 {
		return fmt.Errorf("--page-size must be positive, got %d", input.pageSize)
	}
	if input.concurrency <= 0 {
		return fmt.Errorf("--concurrency must be positive, got %d", input.concurrency)
	}
	switch pipeline.PageErrorPolicy(input.onPageError) {
	case pipeline.PageErrorFail, pipeline.PageErrorStop:
	default:
		return fmt.Errorf("invalid --on-page-error %q: expected fail or stop", input.onPageError)
	}
	switch pipeline.DetailErrorPolicy(input.onDetailError) {
	case pipeline.DetailErrorFail, pipeline.DetailErrorSkip:
	default:
		return fmt.Errorf("invalid --on-detail-error %q: expected fail or skip", input.onDetailError)
	}
	if !validOutput(input.output) {
		return fmt.Errorf("invalid --output %q: expected one of %v", input.output, outputFormats)
	}
	if input.serve && input.saveTo == "" {
		log.Warn("--serve is ignored without --save-to")
	}
	return nil
}

// processReport fetches, or loads, the builds and aggregates them.
func processReport(ctx context.Context, config *pkg.Config, input *Input) (*report.Report, error) {
	timers := metrics.NewTimers()
	timers.Add("total")

	now := time.Now()
	setup := &report.ReportSetup{
		RunID:       uuid.NewString(),
		ServerURL:   config.ServerURL,
		Since:       input.window.Since(now).UTC(),
		GeneratedAt: now.UTC(),
		BuildTool:   input.buildTool,
		Source:      "api",
	}
	logger := log.WithField("run", setup.RunID)
	runtime := &report.ReportRuntime{}

	var builds []pipeline.EnrichedBuild
	var err error
	if input.loadFrom != "" {
		setup.Source = input.loadFrom
		setup.ServerURL = ""
		timers.Add("load")
		builds, err = archive.Load(input.loadFrom)
		if err != nil {
			return nil, err
		}
		builds = filterBuilds(builds, pipeline.BuildToolFilter(input.buildTool))
		timers.Add("load")
		logger.Infof("Loaded %d builds from %s", len(builds), input.loadFrom)
	} else {
		logger.Infof("Fetching builds of the last %s, since %s", input.window, setup.Since.Format(time.RFC3339))
		timers.Add("fetch")
		builds, err = fetchBuilds(ctx, config, input, setup.Since, runtime)
		if err != nil {
			return nil, err
		}
		timers.Add("fetch")
		logger.Infof("Fetched %d builds (%d pages, %d skipped)",
			len(builds), runtime.Stats.Pages, runtime.Stats.Skipped)
	}

	timers.Add("aggregate")
	re := report.Aggregate(builds)
	timers.Add("aggregate")
	timers.Add("total")

	runtime.Timers = timers.Seconds()
	re.Setup = setup
	re.Runtime = runtime

	if input.saveTo != "" {
		if err := saveResults(input.saveTo, re, builds, input.topN); err != nil {
			return nil, err
		}
	}
	return re, nil
}

func fetchBuilds(ctx context.Context, config *pkg.Config, input *Input, since time.Time, runtime *report.ReportRuntime) ([]pipeline.EnrichedBuild, error) {
	client := api.NewHTTPClient(config.ServerURL, config.AuthKey, config.Timeout)
	client.UserAgent = version.Version.UserAgent()

	p := pipeline.New(client, pipeline.NewLimitedScheduler(input.concurrency), pipeline.Options{
		Since:          since,
		PageSize:       input.pageSize,
		MaxPages:       input.maxPages,
		Concurrency:    input.concurrency,
		PageQueueSize:  input.queueSize,
		BuildQueueSize: input.queueSize * input.pageSize,
		PageErrors:     pipeline.PageErrorPolicy(input.onPageError),
		DetailErrors:   pipeline.DetailErrorPolicy(input.onDetailError),
		Filter:         pipeline.BuildToolFilter(input.buildTool),
	})

	stream, wait := p.Start(ctx)
	builds, collectErr := report.Collect(ctx, stream)
	if err := wait(); err != nil {
		return nil, err
	}
	if collectErr != nil {
		return nil, collectErr
	}

	runtime.Stats = p.Stats()
	var skipped *multierror.Error
	if errors.As(p.Skipped(), &skipped) {
		for _, err := range skipped.Errors {
			runtime.Errors = append(runtime.Errors, err.Error())
		}
	}
	return builds, nil
}

func filterBuilds(builds []pipeline.EnrichedBuild, filter pipeline.Filter) []pipeline.EnrichedBuild {
	out := make([]pipeline.EnrichedBuild, 0, len(builds))
	for _, eb := range builds {
		if filter(eb.Build) {
			out = append(out, eb)
		}
	}
	return out
}

// serveResults runs the http server of the saved results until ctx is done.
func serveResults(ctx context.Context, dir, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           http.FileServer(http.Dir(dir)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("The report server is available in http://%s, open your browser and navigate to results.", address)
	log.Infof("To get started open the report http://%s/%s.", address, report.ReportFileNameHTML)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "unable to start the report server at address %s", address)
	}
	return nil
}
