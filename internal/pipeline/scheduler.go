package pipeline

import "golang.org/x/sync/errgroup"

const DefaultConcurrency = 2

// Scheduler runs units of work, Go blocks while the scheduler is saturated.
type Scheduler interface {
	Go(f func() error)
	Wait() error
}

// LimitedScheduler runs at most limit units at once.
type LimitedScheduler struct {
	group *errgroup.Group
	limit int
}

var _ Scheduler = (*LimitedScheduler)(nil)

// NewLimitedScheduler creates a scheduler with the concurrency cap set,
// values lower than one fall back to DefaultConcurrency.
func NewLimitedScheduler(limit int) *LimitedScheduler {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	g := &errgroup.Group{}
	g.SetLimit(limit)
	return &LimitedScheduler{group: g, limit: limit}
}

func (s *LimitedScheduler) Go(f func() error) { s.group.Go(f) }

// Wait blocks until all the units return, returning the first error.
func (s *LimitedScheduler) Wait() error { return s.group.Wait() }

func (s *LimitedScheduler) Limit() int { return s.limit }
