package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/gradle-enterprise-insights/build-report/internal/api"
)

// PageErrorPolicy decides what happens when a page of builds can't be fetched.
type PageErrorPolicy string

const (
	// PageErrorFail stops the run returning a PageError.
	PageErrorFail PageErrorPolicy = "fail"
	// PageErrorStop ends the pagination as if no more builds were available.
	PageErrorStop PageErrorPolicy = "stop"
)

var (
	ErrPageFetch  = errors.New("unable to fetch builds page")
	ErrNoProgress = errors.New("builds page did not advance the cursor")
)

// PageError is returned when the list endpoint fails under PageErrorFail.
type PageError struct {
	Page   int
	Cursor Cursor
	Err    error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s (page %d): %v", ErrPageFetch, e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

func (e *PageError) Is(target error) bool { return target == ErrPageFetch }

// Paginator walks the builds list endpoint page by page, advancing the
// cursor to the last build of each page. A Paginator is not restartable,
// once exhausted Next keeps returning an empty page.
type Paginator struct {
	client   api.BuildsAPI
	cursor   Cursor
	policy   PageErrorPolicy
	maxPages int

	pages  int
	listed int
	done   bool
}

// NewPaginator creates a paginator of builds available after since.
func NewPaginator(client api.BuildsAPI, since time.Time, pageSize int, policy PageErrorPolicy) *Paginator {
	if policy == "" {
		policy = PageErrorFail
	}
	return &Paginator{
		client: client,
		cursor: NewCursor(since, pageSize),
		policy: policy,
	}
}

// WithMaxPages limits the number of pages fetched, zero means unlimited.
func (p *Paginator) WithMaxPages(n int) *Paginator {
	p.maxPages = n
	return p
}

// Cursor returns the cursor of the next page to be fetched.
func (p *Paginator) Cursor() Cursor {
	return p.cursor
}

// Pages returns the number of non-empty pages fetched.
func (p *Paginator) Pages() int {
	return p.pages
}

// Listed returns the number of builds received from the list endpoint.
func (p *Paginator) Listed() int {
	return p.listed
}

// Next fetches the next page of builds. An empty page with a nil error means
// there are no more builds.
func (p *Paginator) Next(ctx context.Context) ([]api.Build, error) {
	if p.done {
		return nil, nil
	}
	if p.maxPages > 0 && p.pages >= p.maxPages {
		log.Debugf("Reached the limit of %d pages", p.maxPages)
		p.done = true
		return nil, nil
	}

	builds, err := p.client.GetBuilds(ctx, p.cursor.Query())
	if err != nil {
		p.done = true
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if p.policy == PageErrorStop {
			log.WithError(err).Warnf("Unable to fetch page %d, considering there are no more builds", p.pages+1)
			return nil, nil
		}
		return nil, &PageError{Page: p.pages + 1, Cursor: p.cursor, Err: err}
	}
	if len(builds) == 0 {
		p.done = true
		return nil, nil
	}

	lastID := builds[len(builds)-1].ID
	if p.cursor.SinceBuild != nil && *p.cursor.SinceBuild == lastID {
		p.done = true
		if p.policy == PageErrorStop {
			log.Warnf("Page %d ends with the build %s already seen, stopping", p.pages+1, lastID)
			return nil, nil
		}
		return nil, &PageError{Page: p.pages + 1, Cursor: p.cursor, Err: ErrNoProgress}
	}

	p.pages++
	p.listed += len(builds)
	p.cursor = p.cursor.Next(lastID)
	log.Infof("Got %d builds (page %d)", len(builds), p.pages)
	return builds, nil
}

// Run sends every page to out until the builds are exhausted or an error
// happens, closing out on return.
func (p *Paginator) Run(ctx context.Context, out chan<- []api.Build) error {
	defer close(out)
	for {
		builds, err := p.Next(ctx)
		if err != nil {
			return err
		}
		if len(builds) == 0 {
			log.Debugf("Pagination finished after %d pages and %d builds", p.pages, p.listed)
			return nil
		}
		select {
		case out <- builds:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
