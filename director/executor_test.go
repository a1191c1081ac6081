package director

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shiftdirector/shiftdirector/cloudmgmt"
	"github.com/shiftdirector/shiftdirector/cloudmgmt/mocks"
	"github.com/shiftdirector/shiftdirector/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedPlan(threshold float64, batches ...[]string) *types.EnrollmentPlan {
	goals := testGoals()
	goals.FailureThresholdPercent = threshold

	plan := &types.EnrollmentPlan{
		ID:     "plan-1",
		Status: types.PlanStatusApproved,
		Goals:  *goals,
	}
	for i, deviceIDs := range batches {
		plan.TotalDevices += len(deviceIDs)
		plan.Batches = append(plan.Batches, types.EnrollmentBatch{
			ID:          "batch-" + string(rune('a'+i)),
			PlanID:      plan.ID,
			BatchNumber: i + 1,
			DeviceIDs:   deviceIDs,
			Status:      types.BatchStatusPending,
		})
	}
	return plan
}

func testExecutor(t *testing.T, client *mocks.MockClient) *BatchExecutor {
	t.Helper()
	audit, _ := testAudit(t)
	notifier := NewNotifier()
	executor := NewBatchExecutor(client, NewApprovalGate(audit, notifier), audit, notifier)
	executor.SetEnrollDelay(0)
	return executor
}

func TestExecute_AllBatchesComplete(t *testing.T) {
	client := &mocks.MockClient{}
	executor := testExecutor(t, client)

	plan := approvedPlan(20, []string{"a", "b", "c"}, []string{"d", "e", "f"})
	require.NoError(t, executor.Execute(plan))

	assert.Equal(t, types.PlanStatusCompleted, plan.Status)
	assert.Equal(t, 6, client.EnrollCallCount())
	for _, batch := range plan.Batches {
		assert.Equal(t, types.BatchStatusCompleted, batch.Status)
		assert.Equal(t, len(batch.DeviceIDs), batch.SuccessCount)
		assert.Equal(t, 0, batch.FailureCount)
		assert.NotNil(t, batch.ActualStart)
		assert.NotNil(t, batch.ActualEnd)
	}

	progress := executor.Progress().Snapshot()
	assert.Equal(t, 6, progress.EnrolledCount)
	assert.Equal(t, 0, progress.PendingCount)
	assert.NotNil(t, plan.ExecutionEnd)
}

func TestExecute_RequiresApprovedPlan(t *testing.T) {
	client := &mocks.MockClient{}
	executor := testExecutor(t, client)

	plan := approvedPlan(20, []string{"a"})
	plan.Status = types.PlanStatusGenerated

	var stateErr *StateError
	require.ErrorAs(t, executor.Execute(plan), &stateErr)
	assert.Equal(t, 0, client.EnrollCallCount())
}

func TestExecute_FailuresBelowThresholdContinue(t *testing.T) {
	client := &mocks.MockClient{
		EnrollFunc: func(deviceID string) (*cloudmgmt.EnrollResponse, error) {
			if deviceID == "b" {
				return &cloudmgmt.EnrollResponse{DeviceID: deviceID, Enrolled: false, Error: "agent offline"}, nil
			}
			return &cloudmgmt.EnrollResponse{DeviceID: deviceID, Enrolled: true}, nil
		},
	}
	executor := testExecutor(t, client)

	plan := approvedPlan(50, []string{"a", "b", "c", "d"})
	require.NoError(t, executor.Execute(plan))

	assert.Equal(t, types.PlanStatusCompleted, plan.Status)
	assert.Equal(t, types.BatchStatusCompletedWithErrors, plan.Batches[0].Status)
	assert.Equal(t, 3, plan.Batches[0].SuccessCount)
	assert.Equal(t, 1, plan.Batches[0].FailureCount)
}

func TestExecute_AutoPausesOnThresholdBreach(t *testing.T) {
	client := &mocks.MockClient{
		EnrollFunc: func(deviceID string) (*cloudmgmt.EnrollResponse, error) {
			return nil, errors.New("enrollment endpoint unreachable")
		},
	}
	executor := testExecutor(t, client)

	plan := approvedPlan(20, []string{"a", "b", "c"}, []string{"d", "e", "f"})
	require.NoError(t, executor.Execute(plan))

	assert.Equal(t, types.PlanStatusPaused, plan.Status)
	assert.Equal(t, 3, client.EnrollCallCount(), "second batch must not start")
	assert.Equal(t, types.BatchStatusPending, plan.Batches[1].Status)

	progress := executor.Progress().Snapshot()
	assert.True(t, progress.Paused)
	assert.Contains(t, progress.PauseReason, "exceeds threshold")
}

func TestExecute_EmergencyStopMidBatch(t *testing.T) {
	var executor *BatchExecutor
	client := &mocks.MockClient{}
	client.EnrollFunc = func(deviceID string) (*cloudmgmt.EnrollResponse, error) {
		if deviceID == "b" {
			executor.RequestStop("operator", "stop the rollout")
		}
		return &cloudmgmt.EnrollResponse{DeviceID: deviceID, Enrolled: true}, nil
	}
	executor = testExecutor(t, client)

	plan := approvedPlan(20, []string{"a", "b", "c", "d"})
	require.NoError(t, executor.Execute(plan))

	assert.Equal(t, types.PlanStatusPaused, plan.Status)
	assert.Equal(t, 2, client.EnrollCallCount(), "no device after the stop request")

	// Interrupted batch stays re-runnable.
	assert.Equal(t, types.BatchStatusPending, plan.Batches[0].Status)

	progress := executor.Progress().Snapshot()
	assert.True(t, progress.Paused)
	assert.Equal(t, "stop the rollout", progress.PauseReason)
}

func TestResume_SkipsCompletedBatches(t *testing.T) {
	client := &mocks.MockClient{}
	executor := testExecutor(t, client)

	plan := approvedPlan(20, []string{"a", "b"}, []string{"c", "d"})
	plan.Status = types.PlanStatusPaused
	plan.Batches[0].Status = types.BatchStatusCompleted
	plan.Batches[0].SuccessCount = 2

	require.NoError(t, executor.Resume(plan, "alex"))

	assert.Equal(t, types.PlanStatusCompleted, plan.Status)
	assert.Equal(t, 2, client.EnrollCallCount())
	assert.Equal(t, []string{"c", "d"}, client.EnrollCalls)
	assert.Equal(t, 2, plan.Batches[0].SuccessCount, "completed batch left untouched")
}

func TestResume_RequiresPausedPlan(t *testing.T) {
	client := &mocks.MockClient{}
	executor := testExecutor(t, client)

	plan := approvedPlan(20, []string{"a"})
	plan.Status = types.PlanStatusCompleted

	var stateErr *StateError
	require.ErrorAs(t, executor.Resume(plan, "alex"), &stateErr)
}
