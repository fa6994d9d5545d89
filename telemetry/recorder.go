package telemetry

import (
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/output"
)

// DefaultSlowThreshold is the duration from which reports highlight an
// operation.
const DefaultSlowThreshold = 100 * time.Millisecond

// Span is one timed operation.
type Span struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	Children []*Span

	ended bool
}

// Ended reports whether the operation has finished.
func (s *Span) Ended() bool {
	return s.ended
}

// Recorder is a Collector that keeps every span in memory. Nesting by
// Start follows the order of calls, so a Recorder should time one
// sequence of operations; give concurrent work a Recorder each.
type Recorder struct {
	mu    sync.Mutex
	now   func() time.Time
	slow  time.Duration
	roots []*Span
	open  []*Span
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock sets the clock spans are timed with.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithSlowThreshold sets the duration from which Report highlights an
// operation.
func WithSlowThreshold(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.slow = d
	}
}

// NewRecorder creates an empty Recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{now: time.Now, slow: DefaultSlowThreshold}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins a span under the innermost open span, or a new root.
func (r *Recorder) Start(name string) Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Span{Name: name, Start: r.now()}
	if n := len(r.open); n > 0 {
		parent := r.open[n-1]
		parent.Children = append(parent.Children, s)
	} else {
		r.roots = append(r.roots, s)
	}
	r.open = append(r.open, s)
	return &recorderTimer{recorder: r, span: s}
}

// Spans returns the root spans in the order they started.
func (r *Recorder) Spans() []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.roots)
}

// Total is the time spent in one kind of operation.
type Total struct {
	Name     string
	Count    int
	Duration time.Duration
}

// Totals sums the ended spans by operation, slowest first. The operation
// of a span is its name up to the first space, so "parser.parse a.bean"
// and "parser.parse b.bean" add up.
func (r *Recorder) Totals() []Total {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := map[string]int{}
	var totals []Total
	var walk func(spans []*Span)
	walk = func(spans []*Span) {
		for _, s := range spans {
			if s.ended {
				op, _, _ := strings.Cut(s.Name, " ")
				i, ok := index[op]
				if !ok {
					i = len(totals)
					index[op] = i
					totals = append(totals, Total{Name: op})
				}
				totals[i].Count++
				totals[i].Duration += s.Duration
			}
			walk(s.Children)
		}
	}
	walk(r.roots)

	slices.SortStableFunc(totals, func(a, b Total) int {
		switch {
		case a.Duration > b.Duration:
			return -1
		case a.Duration < b.Duration:
			return 1
		}
		return 0
	})
	return totals
}

// Report writes the spans as a tree. Operations that are still running
// are timed up to now.
func (r *Recorder) Report(w io.Writer, styles *output.Styles) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := &treeFormatter{w: w, styles: styles, slow: r.slow, now: r.now()}
	for _, s := range r.roots {
		f.root(s)
	}
}

type recorderTimer struct {
	recorder *Recorder
	span     *Span
}

func (t *recorderTimer) End() {
	r := t.recorder
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.span.ended {
		return
	}
	t.span.ended = true
	t.span.Duration = r.now().Sub(t.span.Start)
	for i := len(r.open) - 1; i >= 0; i-- {
		if r.open[i] == t.span {
			r.open = slices.Delete(r.open, i, i+1)
			break
		}
	}
}

// Child begins a span under this one. Until it ends, Start nests under it.
func (t *recorderTimer) Child(name string) Timer {
	r := t.recorder
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Span{Name: name, Start: r.now()}
	t.span.Children = append(t.span.Children, s)
	r.open = append(r.open, s)
	return &recorderTimer{recorder: r, span: s}
}
