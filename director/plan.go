package director

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shiftdirector/shiftdirector/types"
)

const (
	defaultPreferredBatchSize = 10
	minFirstBatchSize         = 3

	// interBatchGap leaves room to observe one batch before the next begins.
	interBatchGap = time.Hour

	// perDeviceEstimate is the planning estimate for one enrollment,
	// including the rate-limit delay.
	perDeviceEstimate = 30 * time.Second
)

// PlanBuilder turns goals plus an eligible-device pool into an ordered,
// scheduled sequence of batches. Stateless beyond the plan it returns.
type PlanBuilder struct {
	assessor *RiskAssessor
	validate *validator.Validate

	// now is the scheduling clock. Tests pin it.
	now func() time.Time
}

func NewPlanBuilder(assessor *RiskAssessor) *PlanBuilder {
	return &PlanBuilder{
		assessor: assessor,
		validate: validator.New(),
		now:      time.Now,
	}
}

// ValidateGoals rejects malformed or out-of-range goals before any plan is
// generated from them.
func (b *PlanBuilder) ValidateGoals(goals *types.EnrollmentGoals) error {
	if goals == nil {
		return &ValidationError{Field: "goals", Reason: "missing"}
	}

	if err := b.validate.Struct(goals); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &ValidationError{Field: fieldErrs[0].Field(), Reason: "out of range"}
		}
		return &ValidationError{Field: "goals", Reason: err.Error()}
	}

	if goals.PreferredBatchSize > 0 && goals.MaxBatchSize > 0 && goals.PreferredBatchSize > goals.MaxBatchSize {
		return &ValidationError{Field: "PreferredBatchSize", Reason: "exceeds MaxBatchSize"}
	}

	hours := goals.OperatingHours
	if hours.StartHour < 0 || hours.EndHour > 24 || (hours.EndHour != 0 && hours.StartHour >= hours.EndHour) {
		return &ValidationError{Field: "OperatingHours", Reason: "invalid window"}
	}

	return nil
}

// BuildPlan orders eligible devices by descending readiness (priority
// membership breaking ties), partitions them into batches with a deliberately
// smaller first batch, and schedules batch start times inside the operating
// hours window. The resulting plan starts in status Generated.
func (b *PlanBuilder) BuildPlan(goals *types.EnrollmentGoals, eligible []types.DeviceReadiness) (*types.EnrollmentPlan, error) {
	if err := b.ValidateGoals(goals); err != nil {
		return nil, err
	}

	selected := selectDevices(goals, eligible)

	plan := &types.EnrollmentPlan{
		ID:           uuid.New().String(),
		GoalsID:      goals.ID,
		Goals:        *goals,
		Status:       types.PlanStatusGenerated,
		TotalDevices: len(selected),
		CreatedAt:    b.now(),
	}

	if len(selected) == 0 {
		return plan, nil
	}

	preferred := goals.PreferredBatchSize
	if preferred <= 0 {
		preferred = defaultPreferredBatchSize
	}
	if goals.MaxBatchSize > 0 && preferred > goals.MaxBatchSize {
		preferred = goals.MaxBatchSize
	}

	// The first batch is intentionally smaller: it establishes a baseline
	// success rate before larger waves commit.
	first := preferred / 2
	if first < minFirstBatchSize {
		first = minFirstBatchSize
	}
	if first >= preferred && preferred > 1 {
		first = preferred - 1
	}

	batches := partition(selected, first, preferred)

	scheduler := newBatchScheduler(goals, b.now())
	for i := range batches {
		batchDevices := batches[i]

		ids := make([]string, 0, len(batchDevices))
		for _, d := range batchDevices {
			ids = append(ids, d.DeviceID)
		}

		assessment := b.assessor.AssessBatch(batchDevices)
		scheduled := scheduler.next(len(batchDevices))

		plan.Batches = append(plan.Batches, types.EnrollmentBatch{
			ID:            uuid.New().String(),
			PlanID:        plan.ID,
			BatchNumber:   i + 1,
			DeviceIDs:     ids,
			ScheduledTime: scheduled,
			AverageRisk:   assessment.AverageRiskScore,
			Status:        types.BatchStatusPending,
		})
	}

	last := plan.Batches[len(plan.Batches)-1]
	end := last.ScheduledTime.Add(time.Duration(len(last.DeviceIDs)) * perDeviceEstimate)
	plan.EstimatedDuration = end.Sub(plan.Batches[0].ScheduledTime)

	return plan, nil
}

// selectDevices filters out excluded and below-minimum devices and orders
// the rest by descending readiness, priority devices winning ties.
func selectDevices(goals *types.EnrollmentGoals, eligible []types.DeviceReadiness) []types.DeviceReadiness {
	excluded := map[string]bool{}
	for _, id := range goals.ExcludedDeviceIDs {
		excluded[id] = true
	}
	priority := map[string]bool{}
	for _, id := range goals.PriorityDeviceIDs {
		priority[id] = true
	}

	var selected []types.DeviceReadiness
	for i := range eligible {
		device := eligible[i]
		if excluded[device.DeviceID] {
			continue
		}
		if device.Score < goals.MinimumReadinessScore {
			continue
		}
		selected = append(selected, device)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Score != selected[j].Score {
			return selected[i].Score > selected[j].Score
		}
		if priority[selected[i].DeviceID] != priority[selected[j].DeviceID] {
			return priority[selected[i].DeviceID]
		}
		return selected[i].DeviceID < selected[j].DeviceID
	})

	return selected
}

// partition splits devices into a first batch of firstSize and subsequent
// batches of batchSize. Every device lands in exactly one batch.
func partition(devices []types.DeviceReadiness, firstSize, batchSize int) [][]types.DeviceReadiness {
	var batches [][]types.DeviceReadiness

	size := firstSize
	for start := 0; start < len(devices); {
		end := start + size
		if end > len(devices) {
			end = len(devices)
		}
		batches = append(batches, devices[start:end])
		start = end
		size = batchSize
	}

	return batches
}

// batchScheduler walks a time cursor forward through operating-hours
// windows, spacing batches by the inter-batch gap and pushing overflow past
// the max-devices-per-day cap into the next day.
type batchScheduler struct {
	goals      *types.EnrollmentGoals
	cursor     time.Time
	dayDevices int
	day        int
}

func newBatchScheduler(goals *types.EnrollmentGoals, now time.Time) *batchScheduler {
	s := &batchScheduler{goals: goals, cursor: now}
	s.cursor = s.alignToWindow(s.cursor)
	s.day = s.cursor.YearDay()
	return s
}

func (s *batchScheduler) next(deviceCount int) time.Time {
	s.cursor = s.alignToWindow(s.cursor)

	if s.cursor.YearDay() != s.day {
		s.day = s.cursor.YearDay()
		s.dayDevices = 0
	}

	if s.goals.MaxDevicesPerDay > 0 && s.dayDevices+deviceCount > s.goals.MaxDevicesPerDay && s.dayDevices > 0 {
		s.cursor = s.startOfNextWindow(s.cursor)
		s.day = s.cursor.YearDay()
		s.dayDevices = 0
	}

	scheduled := s.cursor
	s.dayDevices += deviceCount
	s.cursor = s.cursor.Add(time.Duration(deviceCount)*perDeviceEstimate + interBatchGap)
	return scheduled
}

func (s *batchScheduler) window() (start, end int) {
	start = s.goals.OperatingHours.StartHour
	end = s.goals.OperatingHours.EndHour
	if end == 0 {
		start, end = 8, 17
	}
	return start, end
}

// alignToWindow moves a time forward to the nearest point inside the
// operating-hours window.
func (s *batchScheduler) alignToWindow(t time.Time) time.Time {
	start, end := s.window()

	if t.Hour() < start {
		return time.Date(t.Year(), t.Month(), t.Day(), start, 0, 0, 0, t.Location())
	}
	if t.Hour() >= end {
		next := t.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), start, 0, 0, 0, t.Location())
	}
	return t
}

func (s *batchScheduler) startOfNextWindow(t time.Time) time.Time {
	start, _ := s.window()
	next := t.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), start, 0, 0, 0, t.Location())
}
