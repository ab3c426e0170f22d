// Package pipeline fetches the builds of a time window from the Builds API:
// the pages of the builds list are walked serially, and the gradle details of
// each matching build are fetched concurrently under a bounded scheduler.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gradle-enterprise-insights/build-report/internal/api"
)

const (
	DefaultPageSize       = 200
	DefaultPageQueueSize  = 4
	DefaultBuildQueueSize = 64
)

// Options holds the pipeline settings, zero values use the defaults.
type Options struct {
	Since          time.Time
	PageSize       int
	MaxPages       int
	Concurrency    int
	PageQueueSize  int
	BuildQueueSize int
	PageErrors     PageErrorPolicy
	DetailErrors   DetailErrorPolicy
	Filter         Filter
}

func (o *Options) setDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.PageQueueSize <= 0 {
		o.PageQueueSize = DefaultPageQueueSize
	}
	if o.BuildQueueSize <= 0 {
		o.BuildQueueSize = DefaultBuildQueueSize
	}
}

// Stats are the counters of a pipeline run.
type Stats struct {
	Pages    int `json:"pages" yaml:"pages"`
	Listed   int `json:"listed" yaml:"listed"`
	Matched  int `json:"matched" yaml:"matched"`
	Enriched int `json:"enriched" yaml:"enriched"`
	Skipped  int `json:"skipped" yaml:"skipped"`
}

// Pipeline connects the Paginator to the Fetcher through a bounded queue of
// pages, the enriched builds are sent to a second bounded queue.
type Pipeline struct {
	paginator *Paginator
	fetcher   *Fetcher
	opts      Options
}

// New creates a single use pipeline. scheduler may be nil, a
// LimitedScheduler with opts.Concurrency is used then.
func New(client api.BuildsAPI, scheduler Scheduler, opts Options) *Pipeline {
	opts.setDefaults()
	if scheduler == nil {
		scheduler = NewLimitedScheduler(opts.Concurrency)
	}
	return &Pipeline{
		paginator: NewPaginator(client, opts.Since, opts.PageSize, opts.PageErrors).WithMaxPages(opts.MaxPages),
		fetcher:   NewFetcher(client, scheduler, opts.Filter, opts.DetailErrors),
		opts:      opts,
	}
}

// Start launches the pagination and the fetcher, returning the stream of
// enriched builds and the function waiting for both stages. The stream is
// closed when the stages are done, wait must be called after draining it.
func (p *Pipeline) Start(ctx context.Context) (<-chan EnrichedBuild, func() error) {
	g, gctx := errgroup.WithContext(ctx)
	pages := make(chan []api.Build, p.opts.PageQueueSize)
	out := make(chan EnrichedBuild, p.opts.BuildQueueSize)

	g.Go(func() error {
		return p.paginator.Run(gctx, pages)
	})
	g.Go(func() error {
		return p.fetcher.Run(gctx, pages, out)
	})
	return out, g.Wait
}

// Stats returns the counters, it must be read after the run is done.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Pages:    p.paginator.Pages(),
		Listed:   p.paginator.Listed(),
		Matched:  p.fetcher.Matched(),
		Enriched: p.fetcher.Enriched(),
		Skipped:  p.fetcher.Dropped(),
	}
}

// Skipped returns the errors of the builds dropped by the fetcher.
func (p *Pipeline) Skipped() error {
	return p.fetcher.Skipped()
}
