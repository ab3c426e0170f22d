package report

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gradle-enterprise-insights/build-report/internal/archive"
	"github.com/gradle-enterprise-insights/build-report/internal/chart"
	"github.com/gradle-enterprise-insights/build-report/internal/pipeline"
	"github.com/gradle-enterprise-insights/build-report/internal/report"
)

// saveResults dumps the report, its sheet and charts, and the builds to the
// directory, to be reviewed or published.
func saveResults(dir string, re *report.Report, builds []pipeline.EnrichedBuild, topN int) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrapf(err, "unable to create directory %s", dir)
	}

	if _, err := re.SaveJSON(dir); err != nil {
		return err
	}
	if _, err := re.SaveSheet(dir); err != nil {
		return err
	}
	page := chart.NewReportPage(re, topN)
	if err := chart.SaveReportPage(page, filepath.Join(dir, report.ReportFileNameHTML)); err != nil {
		return err
	}
	if err := archive.Save(filepath.Join(dir, report.ReportFileNameDump), builds); err != nil {
		return errors.Wrap(err, "unable to save the builds")
	}

	log.Infof("Report saved to %s", dir)
	log.Infof("To read the report open your browser and navigate to the path file://%s", filepath.Join(dir, report.ReportFileNameHTML))
	return nil
}
