package report

import (
	"fmt"
	"io"
	"strconv"
	"text/template"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v2"

	"github.com/gradle-enterprise-insights/build-report/internal/assets"
	"github.com/gradle-enterprise-insights/build-report/internal/report"
)

const (
	OutputText  = "text"
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

var outputFormats = []string{OutputText, OutputTable, OutputJSON, OutputYAML}

func validOutput(format string) bool {
	for _, f := range outputFormats {
		if f == format {
			return true
		}
	}
	return false
}

// toSeconds converts milliseconds to whole seconds, truncated.
func toSeconds(ms float64) int64 {
	return int64(ms) / 1000
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var templateFuncs = template.FuncMap{
	"seconds": toSeconds,
	"number":  formatNumber,
}

func printReport(w io.Writer, re *report.Report, format string) error {
	switch format {
	case OutputTable:
		return printTable(w, re)
	case OutputJSON:
		out, err := re.ShowJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	case OutputYAML:
		out, err := yaml.Marshal(re)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}
	return printText(w, re)
}

func printText(w io.Writer, re *report.Report) error {
	tmpl, err := assets.ParseTemplate(assets.ReportTextTemplate, templateFuncs)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, re)
}

func printTable(w io.Writer, re *report.Report) error {
	newTable := func(title string, header table.Row) table.Writer {
		tb := table.NewWriter()
		tb.SetOutputMirror(w)
		tb.SetStyle(table.StyleLight)
		tb.SetTitle(title)
		tb.AppendHeader(header)
		return tb
	}
	averages := func(title, value string, list []report.Average, format func(float64) string) {
		tb := newTable(title, table.Row{"#", "Name", value, "Builds"})
		for i, a := range list {
			tb.AppendRow(table.Row{i + 1, a.Name, format(a.Value), a.Samples})
		}
		tb.Render()
	}
	seconds := func(v float64) string {
		return fmt.Sprintf("%ds", toSeconds(v))
	}

	if s := re.Summary; s != nil {
		tb := newTable("Summary", table.Row{"Builds", "Failed", "Projects", "Users", "Mean", "P50", "P95"})
		tb.AppendRow(table.Row{s.Builds, s.FailedBuilds, s.Projects, s.Users,
			seconds(s.DurationMean), seconds(s.DurationP50), seconds(s.DurationP95)})
		tb.Render()
	}
	averages("Projects with longest average build time", "Build time", re.ProjectsByBuildTime, seconds)
	averages("Usernames with longest average build time", "Build time", re.UsersByBuildTime, seconds)
	averages("Projects with lowest avoidance savings ratio", "Ratio", re.ProjectsByAvoidanceRatio, formatNumber)

	tb := newTable("Users with most build cache errors", table.Row{"#", "Username", "Errors", "Builds"})
	for i, c := range re.UsersByCacheErrors {
		tb.AppendRow(table.Row{i + 1, c.Name, c.Count, c.Builds})
	}
	tb.Render()

	averages("Tasks with largest negative avoidance savings", "Savings (ms)", re.TasksByNegativeSavings, formatNumber)

	tb = newTable("Builds with negative avoidance savings", table.Row{"Build", "Task types"})
	for _, b := range re.BuildsWithNegativeSavings {
		for i, task := range b.TaskTypes {
			id := b.BuildID
			if i > 0 {
				id = ""
			}
			tb.AppendRow(table.Row{id, task})
		}
	}
	tb.Render()

	tb = newTable("Builds tagged "+report.TagNegativeAvoidanceSavings, table.Row{"Build"})
	for _, id := range re.TaggedBuilds {
		tb.AppendRow(table.Row{id})
	}
	tb.Render()
	return nil
}
