package report

import (
	"context"
	"sort"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/ptr"

	"github.com/gradle-enterprise-insights/build-report/internal/api"
	"github.com/gradle-enterprise-insights/build-report/internal/pipeline"
)

// Collect drains the stream of enriched builds. It returns early with the
// builds received so far when ctx is done.
func Collect(ctx context.Context, in <-chan pipeline.EnrichedBuild) ([]pipeline.EnrichedBuild, error) {
	builds := []pipeline.EnrichedBuild{}
	for {
		select {
		case <-ctx.Done():
			return builds, ctx.Err()
		case eb, ok := <-in:
			if !ok {
				return builds, nil
			}
			builds = append(builds, eb)
		}
	}
}

// Aggregate builds the six reports from the enriched builds. The result does
// not depend on the order of the builds, and every table is non-nil.
// Builds lacking any of the details are ignored, and so are the builds
// repeating the id of a previous one.
func Aggregate(builds []pipeline.EnrichedBuild) *Report {
	complete := make([]pipeline.EnrichedBuild, 0, len(builds))
	for _, eb := range builds {
		if eb.Attributes == nil || eb.CachePerformance == nil {
			log.Debugf("Ignoring build %s without details", eb.ID())
			continue
		}
		complete = append(complete, eb)
	}
	sort.SliceStable(complete, func(i, j int) bool {
		return complete[i].ID() < complete[j].ID()
	})

	a := newAggregator()
	for i, eb := range complete {
		// the first of the builds sharing an id is kept
		if i > 0 && eb.ID() == complete[i-1].ID() {
			log.Debugf("Ignoring duplicated build %s", eb.ID())
			continue
		}
		a.add(eb)
	}
	return a.report()
}

type aggregator struct {
	builds    int
	failed    int
	durations []float64

	projectDurations map[string][]float64
	userDurations    map[string][]float64
	projectRatios    map[string][]float64
	userCacheErrors  map[string]*Counter
	taskSavings      map[string][]float64

	negativeBuilds []BuildTasks
	taggedBuilds   []string
	negativeTasks  int
}

func newAggregator() *aggregator {
	return &aggregator{
		durations:        []float64{},
		projectDurations: make(map[string][]float64),
		userDurations:    make(map[string][]float64),
		projectRatios:    make(map[string][]float64),
		userCacheErrors:  make(map[string]*Counter),
		taskSavings:      make(map[string][]float64),
		negativeBuilds:   []BuildTasks{},
		taggedBuilds:     []string{},
	}
}

func (a *aggregator) add(eb pipeline.EnrichedBuild) {
	attrs, perf := eb.Attributes, eb.CachePerformance
	project := attrs.RootProjectName
	user := attrs.Environment.Username

	a.builds++
	if attrs.HasFailed {
		a.failed++
	}
	duration := float64(attrs.BuildDuration)
	a.durations = append(a.durations, duration)
	a.projectDurations[project] = append(a.projectDurations[project], duration)
	a.userDurations[user] = append(a.userDurations[user], duration)
	a.projectRatios[project] = append(a.projectRatios[project], perf.AvoidanceSavingsSummary.Ratio)

	counter, ok := a.userCacheErrors[user]
	if !ok {
		counter = &Counter{Name: user}
		a.userCacheErrors[user] = counter
	}
	counter.Builds++
	if remoteCacheFailed(perf) {
		counter.Count++
	}

	var tasks []string
	for _, entry := range perf.TaskExecution {
		if entry.AvoidanceSavings == nil || *entry.AvoidanceSavings >= 0 {
			continue
		}
		a.negativeTasks++
		a.taskSavings[entry.TaskType] = append(a.taskSavings[entry.TaskType], float64(*entry.AvoidanceSavings))
		tasks = append(tasks, entry.TaskType)
	}
	if len(tasks) > 0 {
		a.negativeBuilds = append(a.negativeBuilds, BuildTasks{BuildID: eb.ID(), TaskTypes: tasks})
	}

	if attrs.HasTag(TagNegativeAvoidanceSavings) {
		a.taggedBuilds = append(a.taggedBuilds, eb.ID())
	}
}

// remoteCacheFailed is true when the remote build cache was disabled due to
// an error, an absent flag counts as false.
func remoteCacheFailed(perf *api.GradleBuildCachePerformance) bool {
	if perf.BuildCaches == nil || perf.BuildCaches.Remote == nil {
		return false
	}
	return ptr.Deref(perf.BuildCaches.Remote.IsDisabledDueToError, false)
}

func (a *aggregator) report() *Report {
	counters := make([]Counter, 0, len(a.userCacheErrors))
	for _, c := range a.userCacheErrors {
		counters = append(counters, *c)
	}
	sort.Slice(counters, func(i, j int) bool {
		if counters[i].Count != counters[j].Count {
			return counters[i].Count > counters[j].Count
		}
		return counters[i].Name < counters[j].Name
	})

	// builds are visited by id, the lists are already sorted
	return &Report{
		Summary:                   a.summary(),
		ProjectsByBuildTime:       rankAverages(a.projectDurations, true),
		UsersByBuildTime:          rankAverages(a.userDurations, true),
		ProjectsByAvoidanceRatio:  rankAverages(a.projectRatios, false),
		UsersByCacheErrors:        counters,
		TasksByNegativeSavings:    rankAverages(a.taskSavings, false),
		BuildsWithNegativeSavings: a.negativeBuilds,
		TaggedBuilds:              a.taggedBuilds,
	}
}

func (a *aggregator) summary() *ReportSummary {
	s := &ReportSummary{
		Builds:        a.builds,
		Projects:      len(a.projectDurations),
		Users:         len(a.userDurations),
		FailedBuilds:  a.failed,
		TaggedBuilds:  len(a.taggedBuilds),
		NegativeTasks: a.negativeTasks,
	}
	if len(a.durations) == 0 {
		return s
	}
	data := stats.Float64Data(a.durations)
	s.DurationMean, _ = stats.Mean(data)
	s.DurationP50, _ = stats.Percentile(data, 50)
	s.DurationP95, _ = stats.Percentile(data, 95)
	return s
}

// rankAverages sorts the groups by the mean of their values, descending when
// desc is set. Groups with the same mean are sorted by name.
func rankAverages(groups map[string][]float64, desc bool) []Average {
	out := make([]Average, 0, len(groups))
	for name, values := range groups {
		sort.Float64s(values)
		mean, err := stats.Mean(values)
		if err != nil {
			continue
		}
		out = append(out, Average{Name: name, Value: mean, Samples: len(values)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			if desc {
				return out[i].Value > out[j].Value
			}
			return out[i].Value < out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}
