// Package metrics holds the wall clock timers of a report run.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Timers are named stopwatches, a timer is started on its first Set and
// stopped on the next one.
type Timers struct {
	mu     sync.Mutex
	Timers map[string]*Timer `json:"timers,omitempty" yaml:"timers,omitempty"`
	last   string
	now    func() time.Time
}

func NewTimers() *Timers {
	return &Timers{Timers: make(map[string]*Timer), now: time.Now}
}

// set a timer, updating if existing.
func (ts *Timers) set(k string) {
	now := ts.now()
	if t, ok := ts.Timers[k]; !ok {
		ts.Timers[k] = &Timer{start: now}
	} else {
		t.Total = now.Sub(t.start).Seconds()
	}
}

// Set stops the last timer and starts k (lap).
func (ts *Timers) Set(k string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.last != "" && ts.last != k {
		ts.set(ts.last)
	}
	ts.set(k)
	ts.last = k
}

// Add starts the timer k, or stops it when already started. Timers added
// run independently of the laps.
func (ts *Timers) Add(k string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.set(k)
}

// Seconds returns the total of each stopped timer.
func (ts *Timers) Seconds() map[string]float64 {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make(map[string]float64, len(ts.Timers))
	for k, t := range ts.Timers {
		out[k] = t.Total
	}
	return out
}

// Names returns the timer names, sorted.
func (ts *Timers) Names() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	names := make([]string, 0, len(ts.Timers))
	for k := range ts.Timers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type Timer struct {
	start time.Time

	// Total time in seconds
	Total float64 `json:"seconds" yaml:"seconds"`
}
