package director

import (
	"testing"
	"time"

	"github.com/shiftdirector/shiftdirector/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGoals() *types.EnrollmentGoals {
	return &types.EnrollmentGoals{
		ID:                      "goals-1",
		TargetCompletionDate:    time.Now().Add(30 * 24 * time.Hour),
		RiskTolerance:           types.RiskToleranceModerate,
		MaxBatchSize:            15,
		OperatingHours:          types.OperatingHours{StartHour: 9, EndHour: 17},
		FailureThresholdPercent: 20,
		MinimumReadinessScore:   40,
	}
}

func pool(count int, base float64) []types.DeviceReadiness {
	var devices []types.DeviceReadiness
	for i := 0; i < count; i++ {
		score := base - float64(i)
		devices = append(devices, types.DeviceReadiness{
			DeviceID: deviceID(i),
			Score:    score,
			Level:    types.ReadinessLevelForScore(score),
		})
	}
	return devices
}

func deviceID(i int) string {
	return "device-" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestValidateGoals(t *testing.T) {
	builder := NewPlanBuilder(NewRiskAssessor())

	assert.NoError(t, builder.ValidateGoals(testGoals()))

	var validationErr *ValidationError

	err := builder.ValidateGoals(nil)
	require.ErrorAs(t, err, &validationErr)

	bad := testGoals()
	bad.RiskTolerance = "reckless"
	require.ErrorAs(t, builder.ValidateGoals(bad), &validationErr)

	bad = testGoals()
	bad.FailureThresholdPercent = 150
	require.ErrorAs(t, builder.ValidateGoals(bad), &validationErr)

	bad = testGoals()
	bad.PreferredBatchSize = 20
	require.ErrorAs(t, builder.ValidateGoals(bad), &validationErr)

	bad = testGoals()
	bad.OperatingHours = types.OperatingHours{StartHour: 10, EndHour: 9}
	require.ErrorAs(t, builder.ValidateGoals(bad), &validationErr)
}

func TestBuildPlan_Partitioning(t *testing.T) {
	builder := NewPlanBuilder(NewRiskAssessor())

	plan, err := builder.BuildPlan(testGoals(), pool(40, 95))
	require.NoError(t, err)

	assert.Equal(t, types.PlanStatusGenerated, plan.Status)
	assert.Equal(t, 40, plan.TotalDevices)
	require.Len(t, plan.Batches, 5)

	// Smaller canary batch first, then the preferred size.
	assert.Len(t, plan.Batches[0].DeviceIDs, 5)
	assert.Len(t, plan.Batches[1].DeviceIDs, 10)
	assert.Len(t, plan.Batches[4].DeviceIDs, 5)

	// Every device lands in exactly one batch.
	seen := map[string]int{}
	for _, batch := range plan.Batches {
		for _, id := range batch.DeviceIDs {
			seen[id]++
		}
	}
	assert.Len(t, seen, 40)
	for id, count := range seen {
		assert.Equalf(t, 1, count, "device %s appears %d times", id, count)
	}

	for i, batch := range plan.Batches {
		assert.Equal(t, i+1, batch.BatchNumber)
		assert.Equal(t, types.BatchStatusPending, batch.Status)
		assert.Equal(t, plan.ID, batch.PlanID)
	}

	assert.Greater(t, plan.EstimatedDuration, time.Duration(0))
}

func TestBuildPlan_OrdersByReadinessDescending(t *testing.T) {
	builder := NewPlanBuilder(NewRiskAssessor())

	devices := []types.DeviceReadiness{
		{DeviceID: "low", Score: 45, Level: types.ReadinessFair},
		{DeviceID: "high", Score: 95, Level: types.ReadinessExcellent},
		{DeviceID: "mid", Score: 70, Level: types.ReadinessGood},
	}

	plan, err := builder.BuildPlan(testGoals(), devices)
	require.NoError(t, err)
	require.Len(t, plan.Batches, 1)

	assert.Equal(t, []string{"high", "mid", "low"}, []string(plan.Batches[0].DeviceIDs))
}

func TestBuildPlan_PriorityBreaksTies(t *testing.T) {
	builder := NewPlanBuilder(NewRiskAssessor())

	goals := testGoals()
	goals.PriorityDeviceIDs = []string{"vip"}

	devices := []types.DeviceReadiness{
		{DeviceID: "aaa", Score: 80, Level: types.ReadinessExcellent},
		{DeviceID: "vip", Score: 80, Level: types.ReadinessExcellent},
	}

	plan, err := builder.BuildPlan(goals, devices)
	require.NoError(t, err)
	require.Len(t, plan.Batches, 1)

	assert.Equal(t, "vip", plan.Batches[0].DeviceIDs[0])
}

func TestBuildPlan_FiltersExcludedAndBelowMinimum(t *testing.T) {
	builder := NewPlanBuilder(NewRiskAssessor())

	goals := testGoals()
	goals.ExcludedDeviceIDs = []string{"excluded"}

	devices := []types.DeviceReadiness{
		{DeviceID: "excluded", Score: 95, Level: types.ReadinessExcellent},
		{DeviceID: "weak", Score: 20, Level: types.ReadinessPoor},
		{DeviceID: "kept", Score: 75, Level: types.ReadinessGood},
	}

	plan, err := builder.BuildPlan(goals, devices)
	require.NoError(t, err)

	assert.Equal(t, 1, plan.TotalDevices)
	require.Len(t, plan.Batches, 1)
	assert.Equal(t, []string{"kept"}, []string(plan.Batches[0].DeviceIDs))
}

func TestBuildPlan_EmptyPool(t *testing.T) {
	builder := NewPlanBuilder(NewRiskAssessor())

	plan, err := builder.BuildPlan(testGoals(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, plan.TotalDevices)
	assert.Empty(t, plan.Batches)
	assert.Equal(t, types.PlanStatusGenerated, plan.Status)
}

func TestBuildPlan_SchedulesInsideOperatingHours(t *testing.T) {
	builder := NewPlanBuilder(NewRiskAssessor())
	builder.now = func() time.Time {
		return time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)
	}

	goals := testGoals()
	goals.OperatingHours = types.OperatingHours{StartHour: 9, EndHour: 12}

	plan, err := builder.BuildPlan(goals, pool(40, 95))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC), plan.CreatedAt)

	var previous time.Time
	for _, batch := range plan.Batches {
		hour := batch.ScheduledTime.Hour()
		assert.GreaterOrEqual(t, hour, 9)
		assert.Less(t, hour, 12)
		assert.True(t, batch.ScheduledTime.After(previous), "batches must be scheduled in order")
		previous = batch.ScheduledTime
	}
}

func TestBuildPlan_MaxDevicesPerDayPushesOverflow(t *testing.T) {
	builder := NewPlanBuilder(NewRiskAssessor())
	builder.now = func() time.Time {
		return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	}

	goals := testGoals()
	goals.MaxDevicesPerDay = 15

	plan, err := builder.BuildPlan(goals, pool(20, 95))
	require.NoError(t, err)
	require.Len(t, plan.Batches, 3)

	// 5 + 10 fills the first day; the third batch breaches the daily cap and
	// moves to the next day.
	firstDay := plan.Batches[0].ScheduledTime.YearDay()
	assert.Equal(t, firstDay, plan.Batches[1].ScheduledTime.YearDay())
	assert.NotEqual(t, firstDay, plan.Batches[2].ScheduledTime.YearDay())
}
