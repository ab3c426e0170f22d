// Package chart renders the ranked tables of a report as bar charts in a
// single html page.
package chart

import (
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"

	"github.com/gradle-enterprise-insights/build-report/internal/report"
)

// DefaultTopN is the number of groups plotted by chart.
const DefaultTopN = 20

type barInput struct {
	title    string
	subtitle string
	series   string
	labels   []string
	values   []float64
}

func newBar(in *barInput) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    in.title,
			Subtitle: in.subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: true, Rotate: 30}}),
	)
	data := make([]opts.BarData, 0, len(in.values))
	for i, v := range in.values {
		data = append(data, opts.BarData{Name: in.labels[i], Value: v})
	}
	bar.SetXAxis(in.labels).AddSeries(in.series, data)
	return bar
}

func averages(title, subtitle, series string, list []report.Average, topN int) *barInput {
	in := &barInput{title: title, subtitle: subtitle, series: series}
	for i, a := range list {
		if i == topN {
			break
		}
		in.labels = append(in.labels, a.Name)
		in.values = append(in.values, a.Value)
	}
	return in
}

// NewReportPage creates the page with one chart per ranked table, plotting
// the first topN groups of each one.
func NewReportPage(re *report.Report, topN int) *components.Page {
	if topN <= 0 {
		topN = DefaultTopN
	}
	page := components.NewPage()
	page.PageTitle = "Gradle Build Report"

	cacheErrors := &barInput{
		title:    "Remote build cache errors",
		subtitle: "builds by user",
		series:   "builds",
	}
	for i, c := range re.UsersByCacheErrors {
		if i == topN {
			break
		}
		cacheErrors.labels = append(cacheErrors.labels, c.Name)
		cacheErrors.values = append(cacheErrors.values, float64(c.Count))
	}

	page.AddCharts(
		newBar(averages("Average build time by project", "milliseconds", "build time", re.ProjectsByBuildTime, topN)),
		newBar(averages("Average build time by user", "milliseconds", "build time", re.UsersByBuildTime, topN)),
		newBar(averages("Average avoidance savings ratio by project", "lowest first", "ratio", re.ProjectsByAvoidanceRatio, topN)),
		newBar(cacheErrors),
		newBar(averages("Negative avoidance savings by task type", "milliseconds", "savings", re.TasksByNegativeSavings, topN)),
	)
	return page
}

// Render writes the page to w.
func Render(page *components.Page, w io.Writer) error {
	return page.Render(w)
}

// SaveReportPage creates the html file of the page in the path.
func SaveReportPage(page *components.Page, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := page.Render(io.MultiWriter(f)); err != nil {
		return errors.Wrapf(err, "unable to render %s", path)
	}
	return nil
}
