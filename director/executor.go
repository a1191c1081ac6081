package director

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shiftdirector/shiftdirector/cloudmgmt"
	"github.com/shiftdirector/shiftdirector/db"
	"github.com/shiftdirector/shiftdirector/types"
	"github.com/shiftdirector/shiftdirector/workload"
)

// defaultEnrollDelay is the rate-limiting pause between enrollment calls.
const defaultEnrollDelay = 5 * time.Second

// BatchExecutor consumes an approved plan and walks its batches in order,
// enrolling devices one at a time with rate limiting, live progress,
// failure-threshold auto-pause and cooperative cancellation. Only one
// execution may be in flight per instance; a concurrent call blocks until
// the first finishes.
type BatchExecutor struct {
	client   cloudmgmt.Client
	gate     *ApprovalGate
	audit    *AuditLog
	notifier *Notifier
	progress *ProgressTracker
	monitor  *Monitor

	enrollDelay time.Duration

	execMu sync.Mutex

	cancelMu     sync.Mutex
	cancelCh     chan struct{}
	cancelActor  string
	cancelReason string
}

func NewBatchExecutor(client cloudmgmt.Client, gate *ApprovalGate, audit *AuditLog, notifier *Notifier) *BatchExecutor {
	return &BatchExecutor{
		client:      client,
		gate:        gate,
		audit:       audit,
		notifier:    notifier,
		progress:    NewProgressTracker(),
		enrollDelay: defaultEnrollDelay,
	}
}

// SetMonitor wires the watch-list so successfully enrolled devices drop off
// it.
func (e *BatchExecutor) SetMonitor(m *Monitor) {
	e.monitor = m
}

// SetEnrollDelay overrides the rate-limit delay. Tests use this.
func (e *BatchExecutor) SetEnrollDelay(d time.Duration) {
	e.enrollDelay = d
}

// Progress returns the live progress tracker.
func (e *BatchExecutor) Progress() *ProgressTracker {
	return e.progress
}

// RequestStop asks the running execution to stop at the next checkpoint. An
// in-flight enrollment call completes; no further devices are attempted.
// Safe to call when nothing is running.
func (e *BatchExecutor) RequestStop(actor, reason string) {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	if e.cancelCh == nil {
		return
	}
	select {
	case <-e.cancelCh:
		// already requested
	default:
		e.cancelActor = actor
		e.cancelReason = reason
		close(e.cancelCh)
	}
}

func (e *BatchExecutor) resetCancel() {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	e.cancelCh = make(chan struct{})
	e.cancelActor = ""
	e.cancelReason = ""
}

func (e *BatchExecutor) clearCancel() {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	e.cancelCh = nil
}

func (e *BatchExecutor) cancelled() bool {
	e.cancelMu.Lock()
	ch := e.cancelCh
	e.cancelMu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (e *BatchExecutor) cancelContext() (actor, reason string) {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	return e.cancelActor, e.cancelReason
}

// Execute runs an approved plan to completion, pause or cancellation.
// Blocks for the duration.
func (e *BatchExecutor) Execute(plan *types.EnrollmentPlan) error {
	if plan.Status != types.PlanStatusApproved {
		return &StateError{Op: "Execute", From: plan.Status, To: types.PlanStatusExecuting}
	}
	return e.run(plan, "system", "execution started")
}

// Resume reissues execution of a paused plan from the first batch that has
// not finished. Batches already Completed (with or without errors) are
// never re-run, so no device is enrolled twice.
func (e *BatchExecutor) Resume(plan *types.EnrollmentPlan, resumer string) error {
	if plan.Status != types.PlanStatusPaused {
		return &StateError{Op: "Resume", From: plan.Status, To: types.PlanStatusExecuting}
	}

	e.audit.Append(types.AuditExecutionResumed, map[string]interface{}{
		"plan_id": plan.ID,
		"resumer": resumer,
	})
	return e.run(plan, resumer, "execution resumed by "+resumer)
}

func (e *BatchExecutor) run(plan *types.EnrollmentPlan, actor, reason string) (err error) {
	e.execMu.Lock()
	defer e.execMu.Unlock()

	e.resetCancel()
	defer e.clearCancel()

	if err := e.gate.Transition(plan, types.PlanStatusExecuting, actor, reason); err != nil {
		return err
	}

	e.progress.Init(plan)
	e.progress.SetPaused(false, "")

	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("execution panic: %v", r)
			ErrorLogger(LogHolder{PlanID: plan.ID, Message: message})
			if gateErr := e.gate.Transition(plan, types.PlanStatusFailed, "system", message); gateErr != nil {
				ErrorLogger(LogHolder{PlanID: plan.ID, Message: gateErr.Error()})
			}
			e.progress.SetMessage(message)
			err = errors.New(message)
		}
	}()

	goals := &plan.Goals

	for i := range plan.Batches {
		batch := &plan.Batches[i]
		if batch.Status.Done() {
			continue
		}
		if e.cancelled() {
			break
		}

		e.runBatch(plan, batch)

		rate := plan.SuccessRate()
		if 100-rate > goals.FailureThresholdPercent {
			threshold := &ThresholdExceeded{FailureRate: 100 - rate, Threshold: goals.FailureThresholdPercent}
			e.audit.Append(types.AuditAutoPause, map[string]interface{}{
				"plan_id":      plan.ID,
				"batch_number": batch.BatchNumber,
				"failure_rate": 100 - rate,
				"threshold":    goals.FailureThresholdPercent,
			})
			AutoPausesTotal.Inc()
			e.RequestStop("system", threshold.Error())
			break
		}
	}

	if e.cancelled() {
		cancelActor, cancelReason := e.cancelContext()
		if cancelActor == "" {
			cancelActor = "system"
		}
		if gateErr := e.gate.Transition(plan, types.PlanStatusPaused, cancelActor, cancelReason); gateErr != nil {
			return gateErr
		}
		e.progress.SetPaused(true, cancelReason)
		e.progress.SetMessage("Execution paused: " + cancelReason)
		return nil
	}

	if gateErr := e.gate.Transition(plan, types.PlanStatusCompleted, "system", "all batches processed"); gateErr != nil {
		return gateErr
	}
	e.progress.SetMessage("Execution completed")
	return nil
}

func (e *BatchExecutor) runBatch(plan *types.EnrollmentPlan, batch *types.EnrollmentBatch) {
	now := time.Now()
	batch.Status = types.BatchStatusInProgress
	batch.ActualStart = &now
	batch.SuccessCount = 0
	batch.FailureCount = 0
	e.saveBatch(batch)
	e.progress.SetCurrentBatch(batch.BatchNumber)
	e.progress.SetMessage(fmt.Sprintf("Enrolling batch %d of %d", batch.BatchNumber, len(plan.Batches)))

	e.audit.Append(types.AuditBatchStarted, map[string]interface{}{
		"plan_id":      plan.ID,
		"batch_number": batch.BatchNumber,
		"device_count": len(batch.DeviceIDs),
	})

	attempted := 0
	for _, deviceID := range batch.DeviceIDs {
		if e.cancelled() {
			break
		}
		attempted++

		result := e.enrollDevice(deviceID, batch.BatchNumber)
		if result.Success {
			batch.SuccessCount++
		} else {
			batch.FailureCount++
		}

		e.progress.Record(result)
		e.notifier.Publish(Notification{
			Kind:     NotifyDeviceEnrolled,
			PlanID:   plan.ID,
			DeviceID: deviceID,
			Result:   &result,
		})
		progress := e.progress.Snapshot()
		e.notifier.Publish(Notification{
			Kind:     NotifyProgressUpdated,
			PlanID:   plan.ID,
			Progress: &progress,
		})

		// rate limit between enrollment calls, abandoned early on stop
		e.cancelMu.Lock()
		ch := e.cancelCh
		e.cancelMu.Unlock()
		select {
		case <-time.After(e.enrollDelay):
		case <-ch:
		}
	}

	// A stop mid-batch leaves the batch Pending so a resume re-runs it from
	// the top; counts are reset on re-entry.
	if attempted < len(batch.DeviceIDs) {
		batch.Status = types.BatchStatusPending
		e.saveBatch(batch)
		InfoLogger(LogHolder{
			PlanID:      plan.ID,
			BatchNumber: batch.BatchNumber,
			Message:     "Batch interrupted",
			Metric:      fmt.Sprintf("%d/%d", attempted, len(batch.DeviceIDs)),
		})
		return
	}

	end := time.Now()
	batch.ActualEnd = &end
	if batch.FailureCount > 0 {
		batch.Status = types.BatchStatusCompletedWithErrors
	} else {
		batch.Status = types.BatchStatusCompleted
	}
	e.saveBatch(batch)

	e.audit.Append(types.AuditBatchCompleted, map[string]interface{}{
		"plan_id":      plan.ID,
		"batch_number": batch.BatchNumber,
		"status":       batch.Status,
		"succeeded":    batch.SuccessCount,
		"failed":       batch.FailureCount,
	})
	InfoLogger(LogHolder{
		PlanID:      plan.ID,
		BatchNumber: batch.BatchNumber,
		Message:     "Batch finished",
		Metric:      fmt.Sprintf("%d/%d", batch.SuccessCount, batch.SuccessCount+batch.FailureCount),
	})
}

// enrollDevice performs the single side-effecting call. A failure here is
// recorded and never aborts the batch; only the aggregate threshold halts
// execution.
func (e *BatchExecutor) enrollDevice(deviceID string, batchNumber int) types.EnrollmentResult {
	start := time.Now()
	result := types.EnrollmentResult{
		DeviceID:    deviceID,
		DeviceName:  deviceID,
		AttemptedAt: start,
		BatchNumber: batchNumber,
	}

	resp, err := e.client.Enroll(deviceID)
	result.Duration = time.Since(start)

	switch {
	case err != nil:
		result.Error = err.Error()
	case resp != nil && !resp.Enrolled:
		result.Error = resp.Error
		if result.Error == "" {
			result.Error = "enrollment rejected"
		}
	default:
		result.Success = true
	}

	if result.Success {
		EnrollmentsTotal.Inc()
		e.audit.Append(types.AuditDeviceEnrolled, map[string]interface{}{
			"device_id":    deviceID,
			"batch_number": batchNumber,
			"duration_ms":  result.Duration.Milliseconds(),
		})
		if db.DB != nil {
			if err := workload.SeedBaseline(deviceID); err != nil {
				ErrorLogger(LogHolder{DeviceID: deviceID, Message: err.Error()})
			}
		}
		if e.monitor != nil {
			e.monitor.RemoveDevice(deviceID)
		}
	} else {
		EnrollmentFailuresTotal.Inc()
		e.audit.Append(types.AuditDeviceEnrollFailed, map[string]interface{}{
			"device_id":    deviceID,
			"batch_number": batchNumber,
			"error":        result.Error,
		})
		WarnLogger(LogHolder{DeviceID: deviceID, BatchNumber: batchNumber, Message: "Enrollment failed: " + result.Error})
	}

	return result
}

func (e *BatchExecutor) saveBatch(batch *types.EnrollmentBatch) {
	if db.DB == nil {
		return
	}
	if err := db.DB.Save(batch).Error; err != nil {
		ErrorLogger(LogHolder{PlanID: batch.PlanID, BatchNumber: batch.BatchNumber, Message: err.Error()})
	}
}
