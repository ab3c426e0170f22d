package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gradle-enterprise-insights/build-report/internal/api"
)

// DetailErrorPolicy decides what happens when a build detail can't be fetched.
type DetailErrorPolicy string

const (
	// DetailErrorFail cancels the run on the first failure.
	DetailErrorFail DetailErrorPolicy = "fail"
	// DetailErrorSkip drops the build, logging and collecting the error.
	DetailErrorSkip DetailErrorPolicy = "skip"
)

// EnrichedBuild is a build with both gradle details fetched.
type EnrichedBuild struct {
	Build            api.Build                        `json:"build"`
	Attributes       *api.GradleAttributes            `json:"attributes"`
	CachePerformance *api.GradleBuildCachePerformance `json:"cachePerformance"`
}

// ID returns the Build Scan ID.
func (eb *EnrichedBuild) ID() string {
	return eb.Build.ID
}

// Filter selects the builds to be enriched.
type Filter func(api.Build) bool

// BuildToolFilter selects builds by build tool type, the empty tool accepts
// every build.
func BuildToolFilter(tool string) Filter {
	return func(b api.Build) bool {
		return tool == "" || b.BuildToolType == tool
	}
}

// Fetcher expands pages of builds into enriched builds. Each page is a unit
// on the scheduler, inside a unit the details of every build are fetched
// concurrently, two requests per build.
type Fetcher struct {
	client    api.BuildsAPI
	scheduler Scheduler
	filter    Filter
	policy    DetailErrorPolicy

	mu      sync.Mutex
	seen    map[string]struct{}
	skipped *multierror.Error

	matched  atomic.Int64
	enriched atomic.Int64
	dropped  atomic.Int64
}

// NewFetcher creates a fetcher running the page units on scheduler.
func NewFetcher(client api.BuildsAPI, scheduler Scheduler, filter Filter, policy DetailErrorPolicy) *Fetcher {
	if filter == nil {
		filter = BuildToolFilter(api.BuildToolGradle)
	}
	if policy == "" {
		policy = DetailErrorFail
	}
	return &Fetcher{
		client:    client,
		scheduler: scheduler,
		filter:    filter,
		policy:    policy,
		seen:      make(map[string]struct{}),
	}
}

// Run consumes pages until the channel is closed or the context is done,
// sending the enriched builds to out. out is closed when every unit has
// returned.
func (f *Fetcher) Run(ctx context.Context, pages <-chan []api.Build, out chan<- EnrichedBuild) error {
	defer close(out)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the first failing unit cancels the others, its error is the one returned.
	var once sync.Once
	var firstErr error
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

consume:
	for {
		select {
		case <-ctx.Done():
			break consume
		case page, ok := <-pages:
			if !ok {
				break consume
			}
			f.scheduler.Go(func() error {
				if err := f.expand(ctx, page, out); err != nil {
					fail(err)
					return err
				}
				return nil
			})
		}
	}
	werr := f.scheduler.Wait()
	if firstErr != nil {
		return firstErr
	}
	if werr != nil {
		return werr
	}
	return ctx.Err()
}

// expand fetches the details of every matching build of the page.
func (f *Fetcher) expand(ctx context.Context, page []api.Build, out chan<- EnrichedBuild) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range page {
		if !f.filter(b) {
			continue
		}
		if !f.markSeen(b.ID) {
			log.Warnf("Build %s was already listed, ignoring", b.ID)
			continue
		}
		b := b
		f.matched.Add(1)
		g.Go(func() error {
			log.Debugf("Fetching details of build %s", b.ID)
			eb, err := f.enrich(gctx, b)
			if err != nil {
				return f.detailError(gctx, b, err)
			}
			select {
			case out <- *eb:
				f.enriched.Add(1)
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}

// enrich fetches the attributes and the cache performance of a build at
// the same time, returning only when both succeed.
func (f *Fetcher) enrich(ctx context.Context, b api.Build) (*EnrichedBuild, error) {
	eb := &EnrichedBuild{Build: b}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		attrs, err := f.client.GetGradleAttributes(gctx, b.ID)
		if err != nil {
			return errors.Wrap(err, "gradle attributes")
		}
		eb.Attributes = attrs
		return nil
	})
	g.Go(func() error {
		perf, err := f.client.GetGradleBuildCachePerformance(gctx, b.ID)
		if err != nil {
			return errors.Wrap(err, "gradle build cache performance")
		}
		eb.CachePerformance = perf
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return eb, nil
}

func (f *Fetcher) detailError(ctx context.Context, b api.Build, err error) error {
	err = errors.Wrapf(err, "build %s", b.ID)
	if f.policy != DetailErrorSkip || ctx.Err() != nil {
		return err
	}
	entry := log.WithError(err).WithField("build", b.ID)
	if api.IsNotFound(err) {
		entry.Warn("Build details not found, skipping")
	} else {
		entry.Warn("Unable to fetch build details, skipping")
	}
	f.mu.Lock()
	f.skipped = multierror.Append(f.skipped, err)
	f.mu.Unlock()
	f.dropped.Add(1)
	return nil
}

func (f *Fetcher) markSeen(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[id]; ok {
		return false
	}
	f.seen[id] = struct{}{}
	return true
}

// Matched returns the number of builds accepted by the filter.
func (f *Fetcher) Matched() int {
	return int(f.matched.Load())
}

// Enriched returns the number of builds sent with both details.
func (f *Fetcher) Enriched() int {
	return int(f.enriched.Load())
}

// Dropped returns the number of builds skipped under DetailErrorSkip.
func (f *Fetcher) Dropped() int {
	return int(f.dropped.Load())
}

// Skipped returns the errors of the builds dropped under DetailErrorSkip.
func (f *Fetcher) Skipped() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skipped.ErrorOrNil()
}
