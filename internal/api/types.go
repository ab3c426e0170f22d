package api

// Build is the payload item returned by the endpoint /api/builds. The
// attributes are build tool agnostic.
type Build struct {
	ID                string `json:"id"`
	AvailableAt       int64  `json:"availableAt"`
	BuildToolType     string `json:"buildToolType"`
	BuildToolVersion  string `json:"buildToolVersion,omitempty"`
	BuildAgentVersion string `json:"buildAgentVersion,omitempty"`
}

// Build tool types known by the API.
const (
	BuildToolGradle = "gradle"
	BuildToolMaven  = "maven"
)

// BuildsQuery holds the query parameters of the endpoint /api/builds.
// The API accepts either Since or SinceBuild, SinceBuild takes precedence
// when both are set.
type BuildsQuery struct {
	// Since is the lower bound of the build availability time, in
	// milliseconds since the epoch.
	Since      *int64
	SinceBuild *string
	MaxBuilds  int
}

// GradleAttributes is the payload returned by /api/builds/{id}/gradle-attributes.
type GradleAttributes struct {
	ID              string           `json:"id" yaml:"id"`
	BuildStartTime  int64            `json:"buildStartTime" yaml:"buildStartTime"`
	BuildDuration   int64            `json:"buildDuration" yaml:"buildDuration"`
	GradleVersion   string           `json:"gradleVersion,omitempty" yaml:"gradleVersion,omitempty"`
	PluginVersion   string           `json:"pluginVersion,omitempty" yaml:"pluginVersion,omitempty"`
	RootProjectName string           `json:"rootProjectName" yaml:"rootProjectName"`
	RequestedTasks  []string         `json:"requestedTasks,omitempty" yaml:"requestedTasks,omitempty"`
	HasFailed       bool             `json:"hasFailed" yaml:"hasFailed"`
	Tags            []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	Environment     BuildEnvironment `json:"environment" yaml:"environment"`
}

// HasTag reports whether the build was tagged with tag.
func (a *GradleAttributes) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// BuildEnvironment describes where the build was executed.
type BuildEnvironment struct {
	Username         string `json:"username" yaml:"username"`
	OperatingSystem  string `json:"operatingSystem,omitempty" yaml:"operatingSystem,omitempty"`
	NumberOfCPUCores int    `json:"numberOfCpuCores,omitempty" yaml:"numberOfCpuCores,omitempty"`
}

// GradleBuildCachePerformance is the payload returned by
// /api/builds/{id}/gradle-build-cache-performance.
type GradleBuildCachePerformance struct {
	ID                      string                  `json:"id" yaml:"id"`
	BuildTime               int64                   `json:"buildTime" yaml:"buildTime"`
	AvoidanceSavingsSummary AvoidanceSavingsSummary `json:"avoidanceSavingsSummary" yaml:"avoidanceSavingsSummary"`
	BuildCaches             *BuildCaches            `json:"buildCaches,omitempty" yaml:"buildCaches,omitempty"`
	TaskExecution           []TaskExecutionEntry    `json:"taskExecution" yaml:"taskExecution"`
}

// AvoidanceSavingsSummary is the time saved by avoiding work, as a total
// (milliseconds) and as a ratio of the potential build time.
type AvoidanceSavingsSummary struct {
	Total int64   `json:"total" yaml:"total"`
	Ratio float64 `json:"ratio" yaml:"ratio"`
}

type BuildCaches struct {
	Local  *BuildCache `json:"local,omitempty" yaml:"local,omitempty"`
	Remote *BuildCache `json:"remote,omitempty" yaml:"remote,omitempty"`
}

type BuildCache struct {
	IsEnabled            *bool `json:"isEnabled,omitempty" yaml:"isEnabled,omitempty"`
	IsPushEnabled        *bool `json:"isPushEnabled,omitempty" yaml:"isPushEnabled,omitempty"`
	IsDisabledDueToError *bool `json:"isDisabledDueToError,omitempty" yaml:"isDisabledDueToError,omitempty"`
}

// TaskExecutionEntry is the cache performance of a single task. A nil
// AvoidanceSavings means the savings were not computed for the task.
type TaskExecutionEntry struct {
	TaskPath         string `json:"taskPath" yaml:"taskPath"`
	TaskType         string `json:"taskType" yaml:"taskType"`
	AvoidanceOutcome string `json:"avoidanceOutcome,omitempty" yaml:"avoidanceOutcome,omitempty"`
	Duration         int64  `json:"duration" yaml:"duration"`
	AvoidanceSavings *int64 `json:"avoidanceSavings,omitempty" yaml:"avoidanceSavings,omitempty"`
}
