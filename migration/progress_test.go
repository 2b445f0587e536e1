package migration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker_ReportsAfterEventCountTrigger(t *testing.T) {
	var snapshots []Snapshot
	tracker := NewProgressTracker(2, time.Hour, func(s Snapshot) {
		snapshots = append(snapshots, s)
	})

	tracker.Record(10)
	assert.Empty(t, snapshots, "should not report before reaching reportEvery")

	tracker.Record(20)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 2, snapshots[0].EventsProcessed)
	assert.Equal(t, int64(30), snapshots[0].BytesProcessed)
}

func TestProgressTracker_FlushForcesReport(t *testing.T) {
	var snapshots []Snapshot
	tracker := NewProgressTracker(100, time.Hour, func(s Snapshot) {
		snapshots = append(snapshots, s)
	})

	tracker.Record(5)
	assert.Empty(t, snapshots)

	tracker.Flush()
	require.Len(t, snapshots, 1)
	assert.Equal(t, 1, snapshots[0].EventsProcessed)
}

func TestProgressTracker_NilCallbackIsSafe(t *testing.T) {
	tracker := NewProgressTracker(1, time.Hour, nil)
	tracker.Record(1)
	tracker.Flush()
}

func TestSnapshot_HumanFormatsReadably(t *testing.T) {
	s := Snapshot{EventsProcessed: 1234, BytesProcessed: 2048, Elapsed: 3 * time.Second, EventsPerSecond: 411.3}
	out := s.Human()
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "events/sec")
}
