package director

import (
	"strconv"
	"testing"

	"github.com/shiftdirector/shiftdirector/types"
	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Counters(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.Init(approvedPlan(20, []string{"a", "b", "c"}))

	tracker.Record(types.EnrollmentResult{DeviceID: "a", Success: true})
	tracker.Record(types.EnrollmentResult{DeviceID: "b", Success: false, Error: "agent offline"})

	progress := tracker.Snapshot()
	assert.Equal(t, 1, progress.EnrolledCount)
	assert.Equal(t, 1, progress.FailedCount)
	assert.Equal(t, 1, progress.PendingCount)
	assert.Equal(t, 3, progress.TotalDevices)
}

func TestProgressTracker_InitRebuildsFromBatches(t *testing.T) {
	tracker := NewProgressTracker()

	plan := approvedPlan(20, []string{"a", "b"}, []string{"c", "d"})
	plan.Batches[0].SuccessCount = 1
	plan.Batches[0].FailureCount = 1

	tracker.Init(plan)

	progress := tracker.Snapshot()
	assert.Equal(t, 1, progress.EnrolledCount)
	assert.Equal(t, 1, progress.FailedCount)
	assert.Equal(t, 2, progress.PendingCount)
}

func TestProgressTracker_RecentResultsRingBuffer(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.Init(approvedPlan(20, []string{"a"}))

	for i := 0; i < 15; i++ {
		tracker.Record(types.EnrollmentResult{DeviceID: strconv.Itoa(i), Success: true})
	}

	progress := tracker.Snapshot()
	assert.Len(t, progress.RecentResults, 10)

	// Most recent first.
	assert.Equal(t, "14", progress.RecentResults[0].DeviceID)
	assert.Equal(t, "5", progress.RecentResults[9].DeviceID)
}

func TestProgressTracker_SnapshotIsACopy(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.Init(approvedPlan(20, []string{"a", "b"}))
	tracker.Record(types.EnrollmentResult{DeviceID: "a", Success: true})

	snapshot := tracker.Snapshot()
	snapshot.RecentResults[0].DeviceID = "mutated"

	assert.Equal(t, "a", tracker.Snapshot().RecentResults[0].DeviceID)
}

func TestNotifier_SubscribeAndUnsubscribe(t *testing.T) {
	notifier := NewNotifier()

	var first, second []Notification
	unsubscribe := notifier.Subscribe(SubscriberFunc(func(n Notification) { first = append(first, n) }))
	notifier.Subscribe(SubscriberFunc(func(n Notification) { second = append(second, n) }))

	notifier.Publish(Notification{Kind: NotifyProgressUpdated})
	unsubscribe()
	notifier.Publish(Notification{Kind: NotifyStatusChanged})

	assert.Len(t, first, 1)
	assert.Len(t, second, 2)
	assert.False(t, second[0].Timestamp.IsZero())
}
