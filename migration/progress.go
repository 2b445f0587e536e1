package migration

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressTracker accumulates copy-transform throughput counters and
// reports them on a fixed cadence, either after a fixed number of events
// or at a wall-clock interval, whichever comes first.
type ProgressTracker struct {
	reportEvery    int
	reportInterval time.Duration
	onReport       func(Snapshot)

	startedAt    time.Time
	lastReportAt time.Time
	eventsSince  int

	processed int
	bytes     int64
}

// Snapshot is one progress report handed to the configured callback.
type Snapshot struct {
	EventsProcessed int
	BytesProcessed  int64
	Elapsed         time.Duration
	EventsPerSecond float64
}

// Human renders the snapshot the way a CLI progress line would, using the
// same humanize formatting the teacher's tooling uses for sizes and
// counts.
func (s Snapshot) Human() string {
	return fmt.Sprintf("%s events (%s) in %s — %.1f events/sec",
		humanize.Comma(int64(s.EventsProcessed)),
		humanize.Bytes(uint64(s.BytesProcessed)),
		s.Elapsed.Round(time.Second),
		s.EventsPerSecond,
	)
}

// NewProgressTracker creates a tracker. reportEvery <= 0 disables the
// event-count trigger; reportInterval <= 0 defaults to 5 seconds per the
// orchestrator's default report cadence.
func NewProgressTracker(reportEvery int, reportInterval time.Duration, onReport func(Snapshot)) *ProgressTracker {
	if reportInterval <= 0 {
		reportInterval = 5 * time.Second
	}
	now := time.Now()
	return &ProgressTracker{
		reportEvery:    reportEvery,
		reportInterval: reportInterval,
		onReport:       onReport,
		startedAt:      now,
		lastReportAt:   now,
	}
}

// Record folds one processed event's byte size into the running totals and
// reports if either trigger condition is now met.
func (t *ProgressTracker) Record(eventBytes int) {
	t.processed++
	t.bytes += int64(eventBytes)
	t.eventsSince++

	now := time.Now()
	due := (t.reportEvery > 0 && t.eventsSince >= t.reportEvery) || now.Sub(t.lastReportAt) >= t.reportInterval
	if !due {
		return
	}
	t.report(now)
}

// Flush forces a final report regardless of trigger state, used once the
// copy-transform phase completes.
func (t *ProgressTracker) Flush() {
	t.report(time.Now())
}

func (t *ProgressTracker) report(now time.Time) {
	t.eventsSince = 0
	t.lastReportAt = now
	if t.onReport == nil {
		return
	}
	elapsed := now.Sub(t.startedAt)
	var eventsPerSecond float64
	if elapsed > 0 {
		eventsPerSecond = float64(t.processed) / elapsed.Seconds()
	}
	t.onReport(Snapshot{
		EventsProcessed: t.processed,
		BytesProcessed:  t.bytes,
		Elapsed:         elapsed,
		EventsPerSecond: eventsPerSecond,
	})
}
