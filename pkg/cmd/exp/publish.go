package exp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gradle-enterprise-insights/build-report/internal/publish"
	"github.com/gradle-enterprise-insights/build-report/internal/report"
	"github.com/gradle-enterprise-insights/build-report/pkg/version"
)

type publishInput struct {
	bucketName   string
	bucketRegion string
	prefix       string
	runID        string
	dryRun       bool
}

// newUploader is replaced on tests.
var newUploader = publish.NewS3Uploader

func newCmdPublish() *cobra.Command {
	input := &publishInput{}
	cmd := &cobra.Command{
		Use:     "publish <directory>",
		Example: "gebr exp publish ./results --bucket my-reports",
		Short:   "(Experimental) Publish the saved report to a S3 bucket.",
		Long: `Upload the files saved by 'gebr report --save-to' to a S3 bucket, under
<prefix>/<run id>/. The credentials are read from the default AWS chain.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if input.bucketName == "" {
				return errors.New("--bucket is required")
			}
			cmd.SilenceUsage = true
			return publishResults(cmd, args[0], input)
		},
	}

	cmd.Flags().StringVar(&input.bucketName, "bucket", os.Getenv("GEBR_PUBLISH_BUCKET"), "Bucket name to upload the report.")
	cmd.Flags().StringVar(&input.bucketRegion, "region", "us-east-1", "Region of the bucket.")
	cmd.Flags().StringVar(&input.prefix, "prefix", publish.DefaultPrefix, "Object key prefix.")
	cmd.Flags().StringVar(&input.runID, "run-id", "", "Run id used in the object keys, read from the saved report when not set.")
	cmd.Flags().BoolVar(&input.dryRun, "dry-run", false, "Process the files and skip the upload.")
	return cmd
}

// readRunID reads the run id of the report saved in dir.
func readRunID(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, report.ReportFileNameJSON))
	if err != nil {
		return "", err
	}
	re := &report.Report{}
	if err := json.Unmarshal(data, re); err != nil {
		return "", errors.Wrapf(err, "invalid report %s", report.ReportFileNameJSON)
	}
	if re.Setup == nil || re.Setup.RunID == "" {
		return "", fmt.Errorf("the report %s has no run id", report.ReportFileNameJSON)
	}
	return re.Setup.RunID, nil
}

func publishResults(cmd *cobra.Command, dir string, input *publishInput) error {
	runID := input.runID
	if runID == "" {
		var err error
		runID, err = readRunID(dir)
		if err != nil {
			runID = uuid.NewString()
			log.WithError(err).Warnf("Unable to read the run id, using %s", runID)
		}
	}

	uploader, err := newUploader(input.bucketRegion)
	if err != nil {
		return err
	}
	p := publish.NewPublisher(uploader, input.bucketName)
	p.Prefix = input.prefix
	p.DryRun = input.dryRun
	p.Metadata["runId"] = runID
	p.Metadata["publisher"] = version.Version.String()

	log.Info("Publishing the report to storage...")
	uris, err := p.Publish(cmd.Context(), dir, runID)
	if err != nil {
		return errors.Wrapf(err, "could not publish results: %s", dir)
	}
	for _, uri := range uris {
		fmt.Fprintln(cmd.OutOrStdout(), uri)
	}
	return nil
}
