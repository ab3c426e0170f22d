package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/gradle-enterprise-insights/build-report/internal/api"
)

// fakeAPI serves the pages in order, keyed by the sinceBuild of the query
// (the first page under the empty key).
type fakeAPI struct {
	mu      sync.Mutex
	pages   map[string][]api.Build
	listErr map[string]error
	failing map[string]error
	queries []*api.BuildsQuery
	details int
}

func newFakeAPI(pages ...[]api.Build) *fakeAPI {
	f := &fakeAPI{
		pages:   make(map[string][]api.Build),
		listErr: make(map[string]error),
		failing: make(map[string]error),
	}
	key := ""
	for _, p := range pages {
		f.pages[key] = p
		key = p[len(p)-1].ID
	}
	return f
}

func (f *fakeAPI) GetBuilds(ctx context.Context, query *api.BuildsQuery) ([]api.Build, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	key := ""
	if query.SinceBuild != nil {
		key = *query.SinceBuild
	}
	if err, ok := f.listErr[key]; ok {
		return nil, err
	}
	return f.pages[key], nil
}

func (f *fakeAPI) GetGradleAttributes(ctx context.Context, id string) (*api.GradleAttributes, error) {
	if err := f.detail(id); err != nil {
		return nil, err
	}
	return &api.GradleAttributes{ID: id, RootProjectName: "project", BuildDuration: 100}, nil
}

func (f *fakeAPI) GetGradleBuildCachePerformance(ctx context.Context, id string) (*api.GradleBuildCachePerformance, error) {
	if err := f.detail(id); err != nil {
		return nil, err
	}
	return &api.GradleBuildCachePerformance{ID: id}, nil
}

func (f *fakeAPI) detail(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details++
	return f.failing[id]
}

func gradleBuilds(prefix string, n int) []api.Build {
	builds := make([]api.Build, 0, n)
	for i := 1; i <= n; i++ {
		builds = append(builds, api.Build{ID: fmt.Sprintf("%s%d", prefix, i), BuildToolType: api.BuildToolGradle})
	}
	return builds
}
