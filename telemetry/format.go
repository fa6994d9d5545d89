package telemetry

import (
	"fmt"
	"io"
	"time"

	"github.com/robinvdvleuten/beanledger/output"
)

// treeFormatter writes spans as a tree:
//
//	ledger.load main.beancount: 125ms
//	├─ loader.load: 85ms
//	│  ├─ parser.parse main.beancount: 45ms
//	│  └─ booking.book: 5ms
//	└─ ledger.derive: 40ms
type treeFormatter struct {
	w      io.Writer
	styles *output.Styles
	slow   time.Duration
	now    time.Time
}

func (f *treeFormatter) duration(s *Span) time.Duration {
	if s.ended {
		return s.Duration
	}
	return f.now.Sub(s.Start)
}

func (f *treeFormatter) root(s *Span) {
	d := f.duration(s)
	if f.styles == nil {
		_, _ = fmt.Fprintf(f.w, "%s: %s\n", s.Name, formatDuration(d))
	} else {
		_, _ = fmt.Fprintf(f.w, "%s: %s\n", f.styles.Keyword(s.Name), f.styles.Timing(formatDuration(d), d >= f.slow))
	}
	for i, c := range s.Children {
		f.node(c, "", i == len(s.Children)-1)
	}
}

func (f *treeFormatter) node(s *Span, prefix string, last bool) {
	branch, extension := "├─ ", "│  "
	if last {
		branch, extension = "└─ ", "   "
	}

	d := f.duration(s)
	if f.styles == nil {
		_, _ = fmt.Fprintf(f.w, "%s%s%s: %s\n", prefix, branch, s.Name, formatDuration(d))
	} else {
		_, _ = fmt.Fprintf(f.w, "%s%s: %s\n", f.styles.Dim(prefix+branch), s.Name, f.styles.Timing(formatDuration(d), d >= f.slow))
	}

	for i, c := range s.Children {
		f.node(c, prefix+extension, i == len(s.Children)-1)
	}
}

// formatDuration shows milliseconds below a second and seconds above.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.2fs", float64(d)/float64(time.Second))
}
