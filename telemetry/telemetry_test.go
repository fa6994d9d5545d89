package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

// clock advances by step on every reading.
func clock(step time.Duration) func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestFromContext(t *testing.T) {
	c := FromContext(context.Background())
	timer := c.Start("load")
	timer.Child("parse").End()
	timer.End()

	var buf bytes.Buffer
	c.Report(&buf, nil)
	assert.Equal(t, "", buf.String())

	rec := NewRecorder()
	ctx := WithCollector(context.Background(), rec)
	assert.True(t, FromContext(ctx) == Collector(rec))
}

func TestRecorderReport(t *testing.T) {
	rec := NewRecorder(WithClock(clock(10 * time.Millisecond)))

	load := rec.Start("ledger.load main.beancount")
	parse := rec.Start("parser.parse main.beancount")
	parse.End()
	book := load.Child("booking.book")
	rec.Start("booking.lots").End()
	book.End()
	load.End()

	var buf bytes.Buffer
	rec.Report(&buf, nil)
	assert.Equal(t, `ledger.load main.beancount: 70ms
├─ parser.parse main.beancount: 10ms
└─ booking.book: 30ms
   └─ booking.lots: 10ms
`, buf.String())
}

func TestRecorderRoots(t *testing.T) {
	rec := NewRecorder(WithClock(clock(time.Millisecond)))

	rec.Start("first").End()
	second := rec.Start("second")
	second.End()
	second.End()

	spans := rec.Spans()
	assert.Equal(t, 2, len(spans))
	assert.Equal(t, "first", spans[0].Name)
	assert.Equal(t, time.Millisecond, spans[1].Duration)
	assert.True(t, spans[1].Ended())
}

func TestRecorderRunningSpan(t *testing.T) {
	rec := NewRecorder(WithClock(clock(2 * time.Second)))
	rec.Start("query.run")

	var buf bytes.Buffer
	rec.Report(&buf, nil)
	assert.Equal(t, "query.run: 2.00s\n", buf.String())
}

func TestRecorderTotals(t *testing.T) {
	rec := NewRecorder(WithClock(clock(time.Millisecond)))

	load := rec.Start("loader.load")
	rec.Start("parser.parse a.beancount").End()
	rec.Start("parser.parse b.beancount").End()
	load.End()
	rec.Start("unfinished")

	assert.Equal(t, []Total{
		{Name: "loader.load", Count: 1, Duration: 5 * time.Millisecond},
		{Name: "parser.parse", Count: 2, Duration: 2 * time.Millisecond},
	}, rec.Totals())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     string
	}{
		{time.Millisecond, "1ms"},
		{999 * time.Millisecond, "999ms"},
		{time.Second, "1.00s"},
		{1500 * time.Millisecond, "1.50s"},
	}
	for _, test := range tests {
		t.Run(test.want, func(t *testing.T) {
			assert.Equal(t, test.want, formatDuration(test.duration))
		})
	}
}
