package report

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/gradle-enterprise-insights/build-report/internal/api"
	"github.com/gradle-enterprise-insights/build-report/internal/pipeline"
)

type buildOpt func(*pipeline.EnrichedBuild)

func withRemoteCacheError(v *bool) buildOpt {
	return func(eb *pipeline.EnrichedBuild) {
		eb.CachePerformance.BuildCaches = &api.BuildCaches{
			Remote: &api.BuildCache{IsDisabledDueToError: v},
		}
	}
}

func withRatio(r float64) buildOpt {
	return func(eb *pipeline.EnrichedBuild) {
		eb.CachePerformance.AvoidanceSavingsSummary.Ratio = r
	}
}

func withTasks(entries ...api.TaskExecutionEntry) buildOpt {
	return func(eb *pipeline.EnrichedBuild) {
		eb.CachePerformance.TaskExecution = entries
	}
}

func withTags(tags ...string) buildOpt {
	return func(eb *pipeline.EnrichedBuild) {
		eb.Attributes.Tags = tags
	}
}

func task(taskType string, savings *int64) api.TaskExecutionEntry {
	return api.TaskExecutionEntry{TaskPath: ":" + taskType, TaskType: taskType, AvoidanceSavings: savings}
}

func newBuild(id, project, user string, duration int64, opts ...buildOpt) pipeline.EnrichedBuild {
	eb := pipeline.EnrichedBuild{
		Build: api.Build{ID: id, BuildToolType: api.BuildToolGradle},
		Attributes: &api.GradleAttributes{
			ID:              id,
			RootProjectName: project,
			BuildDuration:   duration,
			Environment:     api.BuildEnvironment{Username: user},
		},
		CachePerformance: &api.GradleBuildCachePerformance{ID: id},
	}
	for _, opt := range opts {
		opt(&eb)
	}
	return eb
}

func TestAggregate_Empty(t *testing.T) {
	for _, builds := range [][]pipeline.EnrichedBuild{nil, {}} {
		re := Aggregate(builds)
		require.NotNil(t, re.Summary)
		assert.Equal(t, 0, re.Summary.Builds)
		assert.NotNil(t, re.ProjectsByBuildTime)
		assert.Empty(t, re.ProjectsByBuildTime)
		assert.NotNil(t, re.UsersByBuildTime)
		assert.Empty(t, re.UsersByBuildTime)
		assert.NotNil(t, re.ProjectsByAvoidanceRatio)
		assert.Empty(t, re.ProjectsByAvoidanceRatio)
		assert.NotNil(t, re.UsersByCacheErrors)
		assert.Empty(t, re.UsersByCacheErrors)
		assert.NotNil(t, re.TasksByNegativeSavings)
		assert.Empty(t, re.TasksByNegativeSavings)
		assert.NotNil(t, re.BuildsWithNegativeSavings)
		assert.Empty(t, re.BuildsWithNegativeSavings)
		assert.NotNil(t, re.TaggedBuilds)
		assert.Empty(t, re.TaggedBuilds)
	}
}

func TestAggregate_BuildTime(t *testing.T) {
	re := Aggregate([]pipeline.EnrichedBuild{
		newBuild("b1", "P", "alice", 100),
		newBuild("b2", "P", "bob", 300),
	})
	assert.Equal(t, []Average{{Name: "P", Value: 200, Samples: 2}}, re.ProjectsByBuildTime)
	assert.Equal(t, []Average{
		{Name: "bob", Value: 300, Samples: 1},
		{Name: "alice", Value: 100, Samples: 1},
	}, re.UsersByBuildTime)
	assert.Equal(t, 2, re.Summary.Builds)
	assert.Equal(t, 1, re.Summary.Projects)
	assert.Equal(t, 2, re.Summary.Users)
	assert.Equal(t, float64(200), re.Summary.DurationMean)
}

func TestAggregate_Ranking(t *testing.T) {
	re := Aggregate([]pipeline.EnrichedBuild{
		newBuild("b1", "zeta", "u", 50, withRatio(0.5)),
		newBuild("b2", "alpha", "u", 50, withRatio(0.5)),
		newBuild("b3", "beta", "u", 500, withRatio(0.1)),
	})
	// ties are sorted by name
	assert.Equal(t, []Average{
		{Name: "beta", Value: 500, Samples: 1},
		{Name: "alpha", Value: 50, Samples: 1},
		{Name: "zeta", Value: 50, Samples: 1},
	}, re.ProjectsByBuildTime)
	assert.Equal(t, []Average{
		{Name: "beta", Value: 0.1, Samples: 1},
		{Name: "alpha", Value: 0.5, Samples: 1},
		{Name: "zeta", Value: 0.5, Samples: 1},
	}, re.ProjectsByAvoidanceRatio)
}

func TestAggregate_CacheErrors(t *testing.T) {
	re := Aggregate([]pipeline.EnrichedBuild{
		newBuild("b1", "P", "alice", 1, withRemoteCacheError(ptr.To(true))),
		newBuild("b2", "P", "alice", 1, withRemoteCacheError(ptr.To(false))),
		newBuild("b3", "P", "alice", 1, withRemoteCacheError(nil)),
		newBuild("b4", "P", "bob", 1),
		newBuild("b5", "P", "carol", 1, withRemoteCacheError(ptr.To(true))),
		newBuild("b6", "P", "carol", 1, withRemoteCacheError(ptr.To(true))),
	})
	assert.Equal(t, []Counter{
		{Name: "carol", Count: 2, Builds: 2},
		{Name: "alice", Count: 1, Builds: 3},
		{Name: "bob", Count: 0, Builds: 1},
	}, re.UsersByCacheErrors)

	// users without a failing build are listed with no errors
	re = Aggregate([]pipeline.EnrichedBuild{
		newBuild("b1", "P", "alice", 1, withRemoteCacheError(ptr.To(true))),
		newBuild("b2", "P", "carol", 1, withRemoteCacheError(nil)),
		newBuild("b3", "P", "bob", 1, withRemoteCacheError(ptr.To(false))),
	})
	assert.Equal(t, []Counter{
		{Name: "alice", Count: 1, Builds: 1},
		{Name: "bob", Count: 0, Builds: 1},
		{Name: "carol", Count: 0, Builds: 1},
	}, re.UsersByCacheErrors)
}

func TestAggregate_NegativeSavings(t *testing.T) {
	re := Aggregate([]pipeline.EnrichedBuild{
		newBuild("b2", "P", "u", 1, withTasks(
			task("JavaCompile", ptr.To(int64(-30))),
			task("Test", nil),
			task("Jar", ptr.To(int64(-10))),
		)),
		newBuild("b1", "P", "u", 1, withTasks(
			task("JavaCompile", ptr.To(int64(-10))),
			task("Jar", ptr.To(int64(0))),
			task("Test", ptr.To(int64(25))),
		)),
		newBuild("b3", "P", "u", 1, withTasks(task("Test", ptr.To(int64(100))))),
	})
	assert.Equal(t, []Average{
		{Name: "JavaCompile", Value: -20, Samples: 2},
		{Name: "Jar", Value: -10, Samples: 1},
	}, re.TasksByNegativeSavings)
	assert.Equal(t, []BuildTasks{
		{BuildID: "b1", TaskTypes: []string{"JavaCompile"}},
		{BuildID: "b2", TaskTypes: []string{"JavaCompile", "Jar"}},
	}, re.BuildsWithNegativeSavings)
	assert.Equal(t, 3, re.Summary.NegativeTasks)
	for _, avg := range re.TasksByNegativeSavings {
		assert.Less(t, avg.Value, float64(0))
	}
}

func TestAggregate_TaggedBuilds(t *testing.T) {
	re := Aggregate([]pipeline.EnrichedBuild{
		newBuild("c", "P", "u", 1, withTags("ci", TagNegativeAvoidanceSavings)),
		newBuild("a", "P", "u", 1, withTags(TagNegativeAvoidanceSavings)),
		newBuild("b", "P", "u", 1, withTags("ci")),
	})
	assert.Equal(t, []string{"a", "c"}, re.TaggedBuilds)
	assert.Equal(t, 2, re.Summary.TaggedBuilds)
}

func TestAggregate_IgnoresIncomplete(t *testing.T) {
	incomplete := newBuild("b2", "Q", "u", 1)
	incomplete.CachePerformance = nil
	re := Aggregate([]pipeline.EnrichedBuild{newBuild("b1", "P", "u", 1), incomplete})
	assert.Equal(t, 1, re.Summary.Builds)
	assert.Len(t, re.ProjectsByBuildTime, 1)
}

func TestAggregate_DuplicatedIDs(t *testing.T) {
	first := newBuild("b1", "P", "alice", 100, withTags(TagNegativeAvoidanceSavings),
		withTasks(task("Jar", ptr.To(int64(-5)))))
	second := newBuild("b1", "Q", "bob", 900, withTasks(task("Test", ptr.To(int64(-7)))))

	for i := 0; i < 5; i++ {
		re := Aggregate([]pipeline.EnrichedBuild{first, second, newBuild("b2", "P", "alice", 300)})
		assert.Equal(t, 2, re.Summary.Builds)
		assert.Equal(t, []Average{{Name: "P", Value: 200, Samples: 2}}, re.ProjectsByBuildTime)
		assert.Equal(t, []BuildTasks{{BuildID: "b1", TaskTypes: []string{"Jar"}}}, re.BuildsWithNegativeSavings)
		assert.Equal(t, []string{"b1"}, re.TaggedBuilds)
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	builds := []pipeline.EnrichedBuild{}
	projects := []string{"api", "web", "core"}
	users := []string{"alice", "bob", "carol", "dave"}
	for i := 0; i < 40; i++ {
		id := string(rune('a'+i%26)) + string(rune('a'+i/26))
		builds = append(builds, newBuild(id, projects[i%3], users[i%4], int64(10*(i%7)+1),
			withRatio(float64(i%5)/10),
			withRemoteCacheError(ptr.To(i%3 == 0)),
			withTasks(task("Compile", ptr.To(int64(-(i%4)))), task("Test", ptr.To(int64(i%2-1)))),
			withTags(TagNegativeAvoidanceSavings),
		))
	}
	want := Aggregate(builds)

	rnd := rand.New(rand.NewSource(42))
	for n := 0; n < 10; n++ {
		shuffled := append([]pipeline.EnrichedBuild(nil), builds...)
		rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		if diff := cmp.Diff(want, Aggregate(shuffled)); diff != "" {
			t.Fatalf("Aggregate() mismatch on permutation %d (-want +got):\n%s", n, diff)
		}
	}
}

func TestCollect(t *testing.T) {
	in := make(chan pipeline.EnrichedBuild, 2)
	in <- newBuild("b1", "P", "u", 1)
	in <- newBuild("b2", "P", "u", 1)
	close(in)
	builds, err := Collect(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, builds, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	builds, err = Collect(ctx, make(chan pipeline.EnrichedBuild))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, builds)
}
