package director

import (
	"sync"
	"time"

	"github.com/shiftdirector/shiftdirector/types"
)

// recentResultsCap bounds the ring buffer of most recent outcomes.
const recentResultsCap = 10

// ProgressTracker holds the live counters for an executing plan. Written
// only by the batch executor; read concurrently by anyone via Snapshot.
type ProgressTracker struct {
	mu       sync.Mutex
	progress types.EnrollmentProgress
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{}
}

// Init resets the tracker for a plan about to execute. Progress is
// transient and rebuilt here; it does not survive a restart.
func (t *ProgressTracker) Init(plan *types.EnrollmentPlan) {
	t.mu.Lock()
	defer t.mu.Unlock()

	enrolled, failed := 0, 0
	for i := range plan.Batches {
		enrolled += plan.Batches[i].SuccessCount
		failed += plan.Batches[i].FailureCount
	}

	t.progress = types.EnrollmentProgress{
		PlanID:        plan.ID,
		TotalDevices:  plan.TotalDevices,
		TotalBatches:  len(plan.Batches),
		EnrolledCount: enrolled,
		FailedCount:   failed,
		PendingCount:  plan.TotalDevices - enrolled - failed,
		StatusMessage: "Execution starting",
		LastUpdated:   time.Now(),
	}
}

// SetCurrentBatch records which batch is in flight.
func (t *ProgressTracker) SetCurrentBatch(batchNumber int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.CurrentBatch = batchNumber
	t.progress.LastUpdated = time.Now()
}

// Record folds one enrollment result into the counters and pushes it onto
// the most-recent-first ring buffer.
func (t *ProgressTracker) Record(result types.EnrollmentResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if result.Success {
		t.progress.EnrolledCount++
	} else {
		t.progress.FailedCount++
	}
	if t.progress.PendingCount > 0 {
		t.progress.PendingCount--
	}

	recent := append([]types.EnrollmentResult{result}, t.progress.RecentResults...)
	if len(recent) > recentResultsCap {
		recent = recent[:recentResultsCap]
	}
	t.progress.RecentResults = recent
	t.progress.LastUpdated = time.Now()
}

// SetPaused flips the paused flag with a reason.
func (t *ProgressTracker) SetPaused(paused bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.Paused = paused
	t.progress.PauseReason = reason
	t.progress.LastUpdated = time.Now()
}

// SetMessage updates the human-readable status line.
func (t *ProgressTracker) SetMessage(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.StatusMessage = message
	t.progress.LastUpdated = time.Now()
}

// Snapshot returns a copy safe for the caller to keep.
func (t *ProgressTracker) Snapshot() types.EnrollmentProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.progress
	snapshot.RecentResults = make([]types.EnrollmentResult, len(t.progress.RecentResults))
	copy(snapshot.RecentResults, t.progress.RecentResults)
	return snapshot
}
