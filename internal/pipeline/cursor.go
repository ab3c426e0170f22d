package pipeline

import (
	"time"

	"k8s.io/utils/ptr"

	"github.com/gradle-enterprise-insights/build-report/internal/api"
)

// Cursor is the pagination progress over the builds list. The API accepts
// either a time lower bound or the id of the last seen build, once a build
// id is known the time bound is dropped.
type Cursor struct {
	Since      *time.Time
	SinceBuild *string
	MaxBuilds  int
}

// NewCursor creates the first cursor of a pagination, bound by time.
func NewCursor(since time.Time, maxBuilds int) Cursor {
	return Cursor{Since: ptr.To(since), MaxBuilds: maxBuilds}
}

// Next returns the cursor to fetch the page following the build lastID.
func (c Cursor) Next(lastID string) Cursor {
	return Cursor{SinceBuild: ptr.To(lastID), MaxBuilds: c.MaxBuilds}
}

// Query converts the cursor to the list endpoint parameters.
func (c Cursor) Query() *api.BuildsQuery {
	q := &api.BuildsQuery{MaxBuilds: c.MaxBuilds}
	if c.SinceBuild != nil {
		q.SinceBuild = ptr.To(*c.SinceBuild)
		return q
	}
	if c.Since != nil {
		q.Since = ptr.To(c.Since.UnixMilli())
	}
	return q
}
