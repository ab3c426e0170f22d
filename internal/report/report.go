// Package report implements the data layer of the build report: the
// enriched builds are aggregated into ranked tables, which are rendered by
// the CLI and saved to the disk (json, sheet and charts).
package report

import (
	"time"

	"github.com/gradle-enterprise-insights/build-report/internal/pipeline"
)

const (
	// TagNegativeAvoidanceSavings is the tag set by the build doctor on
	// builds with negative avoidance savings.
	TagNegativeAvoidanceSavings = "doctor-negative-avoidance-savings"

	ReportFileNameJSON  = "gebr-report.json"
	ReportFileNameSheet = "gebr-report.xlsx"
	ReportFileNameHTML  = "gebr-report.html"
	ReportFileNameDump  = "builds.json.xz"
)

type Report struct {
	Setup   *ReportSetup   `json:"setup,omitempty" yaml:"setup,omitempty"`
	Summary *ReportSummary `json:"summary" yaml:"summary"`
	Runtime *ReportRuntime `json:"runtime,omitempty" yaml:"runtime,omitempty"`

	// Longest average build time by project and user, in milliseconds.
	ProjectsByBuildTime []Average `json:"projectsByAverageBuildTime" yaml:"projectsByAverageBuildTime"`
	UsersByBuildTime    []Average `json:"usersByAverageBuildTime" yaml:"usersByAverageBuildTime"`

	// Lowest average avoidance savings ratio by project.
	ProjectsByAvoidanceRatio []Average `json:"projectsByAvoidanceSavingsRatio" yaml:"projectsByAvoidanceSavingsRatio"`

	// Builds with the remote build cache disabled due to errors, by user.
	UsersByCacheErrors []Counter `json:"usersByCacheErrors" yaml:"usersByCacheErrors"`

	// Largest negative avoidance savings by task type, in milliseconds, and
	// the builds where those tasks were executed.
	TasksByNegativeSavings    []Average    `json:"tasksByNegativeAvoidanceSavings" yaml:"tasksByNegativeAvoidanceSavings"`
	BuildsWithNegativeSavings []BuildTasks `json:"buildsWithNegativeAvoidanceSavings" yaml:"buildsWithNegativeAvoidanceSavings"`

	// Builds tagged with TagNegativeAvoidanceSavings.
	TaggedBuilds []string `json:"taggedBuilds" yaml:"taggedBuilds"`
}

// ReportSetup describes the run which produced the report.
type ReportSetup struct {
	RunID       string    `json:"runId" yaml:"runId"`
	ServerURL   string    `json:"serverURL,omitempty" yaml:"serverURL,omitempty"`
	Since       time.Time `json:"since" yaml:"since"`
	GeneratedAt time.Time `json:"generatedAt" yaml:"generatedAt"`
	BuildTool   string    `json:"buildTool,omitempty" yaml:"buildTool,omitempty"`
	Source      string    `json:"source" yaml:"source"`
}

// ReportSummary holds the overall numbers of the builds aggregated.
type ReportSummary struct {
	Builds        int     `json:"builds" yaml:"builds"`
	Projects      int     `json:"projects" yaml:"projects"`
	Users         int     `json:"users" yaml:"users"`
	DurationMean  float64 `json:"durationMean" yaml:"durationMean"`
	DurationP50   float64 `json:"durationP50" yaml:"durationP50"`
	DurationP95   float64 `json:"durationP95" yaml:"durationP95"`
	FailedBuilds  int     `json:"failedBuilds" yaml:"failedBuilds"`
	TaggedBuilds  int     `json:"taggedBuilds" yaml:"taggedBuilds"`
	NegativeTasks int     `json:"negativeTasks" yaml:"negativeTasks"`
}

// ReportRuntime holds the pipeline counters and timers of a live run.
type ReportRuntime struct {
	Stats pipeline.Stats `json:"stats" yaml:"stats"`
	// Timers in seconds.
	Timers map[string]float64 `json:"timers" yaml:"timers"`
	Errors []string           `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Average is a group ranked by the mean of its samples.
type Average struct {
	Name    string  `json:"name" yaml:"name"`
	Value   float64 `json:"value" yaml:"value"`
	Samples int     `json:"samples" yaml:"samples"`
}

// Counter is a group ranked by the number of matching builds.
type Counter struct {
	Name   string `json:"name" yaml:"name"`
	Count  int    `json:"count" yaml:"count"`
	Builds int    `json:"builds" yaml:"builds"`
}

// BuildTasks lists the task types of a build matching a criteria.
type BuildTasks struct {
	BuildID   string   `json:"buildId" yaml:"buildId"`
	TaskTypes []string `json:"taskTypes" yaml:"taskTypes"`
}
