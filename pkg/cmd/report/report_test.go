package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradle-enterprise-insights/build-report/data"
	"github.com/gradle-enterprise-insights/build-report/internal/api"
	"github.com/gradle-enterprise-insights/build-report/internal/assets"
	"github.com/gradle-enterprise-insights/build-report/internal/pipeline"
	"github.com/gradle-enterprise-insights/build-report/internal/report"
	"github.com/gradle-enterprise-insights/build-report/pkg"
)

type testBuild struct {
	project  string
	user     string
	duration int64
	ratio    float64
	cacheErr bool
	tags     []string
}

var testBuilds = map[string]testBuild{
	"b1": {project: "api", user: "alice", duration: 1000, ratio: 0.5, cacheErr: true},
	"b3": {project: "api", user: "bob", duration: 3000, ratio: 0.1},
	"b4": {project: "web", user: "alice", duration: 500, ratio: 0.9, tags: []string{report.TagNegativeAvoidanceSavings}},
}

// newTestServer serves two pages of builds, the pages listed in failing
// (keyed by sinceBuild) respond with an internal error.
func newTestServer(t *testing.T, failing ...string) *httptest.Server {
	pages := map[string][]api.Build{
		"": {
			{ID: "b1", BuildToolType: api.BuildToolGradle},
			{ID: "b2", BuildToolType: api.BuildToolMaven},
			{ID: "b3", BuildToolType: api.BuildToolGradle},
		},
		"b3": {{ID: "b4", BuildToolType: api.BuildToolGradle}},
	}
	r := chi.NewRouter()
	r.Get("/api/builds", func(w http.ResponseWriter, req *http.Request) {
		key := req.URL.Query().Get("sinceBuild")
		for _, f := range failing {
			if f == key {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		builds, ok := pages[key]
		if !ok {
			builds = []api.Build{}
		}
		_ = json.NewEncoder(w).Encode(builds)
	})
	r.Get("/api/builds/{id}/gradle-attributes", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		b := testBuilds[id]
		_ = json.NewEncoder(w).Encode(api.GradleAttributes{
			ID:              id,
			RootProjectName: b.project,
			BuildDuration:   b.duration,
			Tags:            b.tags,
			Environment:     api.BuildEnvironment{Username: b.user},
		})
	})
	r.Get("/api/builds/{id}/gradle-build-cache-performance", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		b := testBuilds[id]
		_, _ = fmt.Fprintf(w, `{
			"id": %q,
			"avoidanceSavingsSummary": {"total": 10, "ratio": %v},
			"buildCaches": {"remote": {"isDisabledDueToError": %v}},
			"taskExecution": [{"taskPath": ":jar", "taskType": "Jar", "avoidanceSavings": -4}]
		}`, id, b.ratio, b.cacheErr)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func runCmd(t *testing.T, config *pkg.Config, args ...string) (string, error) {
	t.Helper()
	assets.UpdateData(&data.FS)
	var out bytes.Buffer
	cmd := NewCmdReport(config)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeReport(t *testing.T, out string) *report.Report {
	t.Helper()
	re := &report.Report{}
	require.NoError(t, json.Unmarshal([]byte(out), re))
	return re
}

func TestCmdReport_JSON(t *testing.T) {
	srv := newTestServer(t)
	config := &pkg.Config{ServerURL: srv.URL, AuthKey: "key", Timeout: time.Second}

	out, err := runCmd(t, config, "--minutes", "30", "--output", "json")
	require.NoError(t, err)
	re := decodeReport(t, out)

	assert.Equal(t, []report.Average{
		{Name: "api", Value: 2000, Samples: 2},
		{Name: "web", Value: 500, Samples: 1},
	}, re.ProjectsByBuildTime)
	assert.Equal(t, []report.Average{
		{Name: "bob", Value: 3000, Samples: 1},
		{Name: "alice", Value: 750, Samples: 2},
	}, re.UsersByBuildTime)
	assert.Equal(t, []report.Counter{
		{Name: "alice", Count: 1, Builds: 2},
		{Name: "bob", Count: 0, Builds: 1},
	}, re.UsersByCacheErrors)
	assert.Equal(t, []report.Average{{Name: "Jar", Value: -4, Samples: 3}}, re.TasksByNegativeSavings)
	assert.Equal(t, []string{"b4"}, re.TaggedBuilds)

	require.NotNil(t, re.Setup)
	assert.NotEmpty(t, re.Setup.RunID)
	assert.Equal(t, "api", re.Setup.Source)
	require.NotNil(t, re.Runtime)
	assert.Equal(t, pipeline.Stats{Pages: 2, Listed: 4, Matched: 3, Enriched: 3}, re.Runtime.Stats)
	assert.Contains(t, re.Runtime.Timers, "fetch")
}

func TestCmdReport_SaveAndLoad(t *testing.T) {
	srv := newTestServer(t)
	dir := filepath.Join(t.TempDir(), "results")
	config := &pkg.Config{ServerURL: srv.URL, AuthKey: "key", Timeout: time.Second}

	out, err := runCmd(t, config, "--output", "json", "--save-to", dir)
	require.NoError(t, err)
	live := decodeReport(t, out)

	for _, file := range []string{
		report.ReportFileNameJSON,
		report.ReportFileNameSheet,
		report.ReportFileNameHTML,
		report.ReportFileNameDump,
	} {
		_, err := os.Stat(filepath.Join(dir, file))
		assert.NoError(t, err, "missing %s", file)
	}

	// the server settings aren't required to load the builds
	out, err = runCmd(t, &pkg.Config{}, "--output", "json", "--load-from", filepath.Join(dir, report.ReportFileNameDump))
	require.NoError(t, err)
	loaded := decodeReport(t, out)

	assert.Equal(t, live.Summary, loaded.Summary)
	assert.Equal(t, live.ProjectsByBuildTime, loaded.ProjectsByBuildTime)
	assert.Equal(t, live.UsersByCacheErrors, loaded.UsersByCacheErrors)
	assert.Equal(t, live.BuildsWithNegativeSavings, loaded.BuildsWithNegativeSavings)
	assert.Equal(t, filepath.Join(dir, report.ReportFileNameDump), loaded.Setup.Source)
}

func TestCmdReport_PageErrors(t *testing.T) {
	tests := []struct {
		name       string
		policy     string
		wantErr    bool
		wantBuilds int
	}{
		{name: "fail", policy: "fail", wantErr: true},
		{name: "stop", policy: "stop", wantBuilds: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, "b3")
			config := &pkg.Config{ServerURL: srv.URL, AuthKey: "key", Timeout: time.Second}
			out, err := runCmd(t, config, "--output", "json", "--on-page-error", tt.policy)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, pipeline.ErrPageFetch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBuilds, decodeReport(t, out).Summary.Builds)
		})
	}
}

func TestCheckFlags(t *testing.T) {
	valid := func() *Input {
		return &Input{
			pageSize:      pipeline.DefaultPageSize,
			concurrency:   pipeline.DefaultConcurrency,
			onPageError:   "fail",
			onDetailError: "skip",
			output:        OutputText,
		}
	}
	config := &pkg.Config{ServerURL: "https://ge.example.com", AuthKey: "key"}
	tests := []struct {
		name    string
		config  *pkg.Config
		update  func(in *Input)
		wantErr string
	}{
		{name: "valid", config: config, update: func(in *Input) {}},
		{name: "missing server", config: &pkg.Config{}, update: func(in *Input) {}, wantErr: "--server-url is required"},
		{name: "load without server", config: &pkg.Config{}, update: func(in *Input) { in.loadFrom = "builds.json.xz" }},
		{name: "page size", config: config, update: func(in *Input) { in.pageSize = 0 }, wantErr: "--page-size"},
		{name: "concurrency", config: config, update: func(in *Input) { in.concurrency = -1 }, wantErr: "--concurrency"},
		{name: "page policy", config: config, update: func(in *Input) { in.onPageError = "retry" }, wantErr: "--on-page-error"},
		{name: "detail policy", config: config, update: func(in *Input) { in.onDetailError = "ignore" }, wantErr: "--on-detail-error"},
		{name: "output", config: config, update: func(in *Input) { in.output = "xml" }, wantErr: "--output"},
		{name: "window", config: config, update: func(in *Input) { in.window = pkg.Window{Minutes: 1, Hours: 1} }, wantErr: "only one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.update(in)
			err := checkFlags(tt.config, in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
