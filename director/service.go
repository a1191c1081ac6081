package director

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shiftdirector/shiftdirector/cloudmgmt"
	"github.com/shiftdirector/shiftdirector/db"
	"github.com/shiftdirector/shiftdirector/types"
)

// Service is the orchestration facade the HTTP layer talks to. It owns the
// current plan and wires the planner, approval gate, executor, monitor and
// reasoning loop together. One plan is active per instance at a time.
type Service struct {
	client    cloudmgmt.Client
	assessor  *RiskAssessor
	builder   *PlanBuilder
	gate      *ApprovalGate
	executor  *BatchExecutor
	monitor   *Monitor
	reasoning *ReasoningLoop
	audit     *AuditLog
	notifier  *Notifier

	mu   sync.Mutex
	plan *types.EnrollmentPlan
}

func NewService(client cloudmgmt.Client, assessor *RiskAssessor, builder *PlanBuilder, gate *ApprovalGate, executor *BatchExecutor, monitor *Monitor, reasoning *ReasoningLoop, audit *AuditLog, notifier *Notifier) *Service {
	return &Service{
		client:    client,
		assessor:  assessor,
		builder:   builder,
		gate:      gate,
		executor:  executor,
		monitor:   monitor,
		reasoning: reasoning,
		audit:     audit,
		notifier:  notifier,
	}
}

// GeneratePlan fetches the eligible-device pool, builds a plan from the
// goals and makes it the current plan. Devices below the readiness bar are
// placed on the monitor watch-list instead of being discarded.
func (s *Service) GeneratePlan(goals *types.EnrollmentGoals) (*types.EnrollmentPlan, error) {
	if goals != nil && goals.ID == "" {
		goals.ID = uuid.New().String()
		goals.CreatedAt = time.Now()
	}

	if err := s.builder.ValidateGoals(goals); err != nil {
		return nil, err
	}

	eligible, err := s.client.ListEligibleDevices(goals)
	if err != nil {
		return nil, errors.Wrap(err, "GeneratePlan")
	}

	plan, err := s.builder.BuildPlan(goals, eligible)
	if err != nil {
		return nil, err
	}

	// Devices that missed the cut are worth watching: readiness improves.
	for i := range eligible {
		if eligible[i].Score < goals.MinimumReadinessScore {
			s.monitor.AddDevice(eligible[i].DeviceID, eligible[i])
		}
	}

	if db.DB != nil {
		if dbErr := db.DB.Create(plan).Error; dbErr != nil {
			ErrorLogger(LogHolder{PlanID: plan.ID, Message: errors.Wrap(dbErr, "persist plan").Error()})
		}
	}

	PlansGeneratedTotal.Inc()
	s.audit.Append(types.AuditPlanGenerated, map[string]interface{}{
		"plan_id":       plan.ID,
		"total_devices": plan.TotalDevices,
		"batch_count":   len(plan.Batches),
	})
	InfoLogger(LogHolder{PlanID: plan.ID, Message: "Plan generated", Metric: strconv.Itoa(plan.TotalDevices)})

	s.mu.Lock()
	s.plan = plan
	s.mu.Unlock()

	return s.PlanSnapshot()
}

// PlanSnapshot returns a deep-enough copy of the current plan, or a
// NotFoundError when no plan exists.
func (s *Service) PlanSnapshot() (*types.EnrollmentPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return nil, &NotFoundError{PlanID: "current"}
	}
	snapshot := *s.plan
	snapshot.Batches = make([]types.EnrollmentBatch, len(s.plan.Batches))
	copy(snapshot.Batches, s.plan.Batches)
	return &snapshot, nil
}

// currentPlan resolves a plan id to the live (not copied) current plan.
func (s *Service) currentPlan(planID string) (*types.EnrollmentPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil || (planID != "" && s.plan.ID != planID) {
		return nil, &NotFoundError{PlanID: planID}
	}
	return s.plan, nil
}

// ApprovePlan approves the current plan for execution.
func (s *Service) ApprovePlan(planID, approver string) error {
	plan, err := s.currentPlan(planID)
	if err != nil {
		return err
	}
	if err := s.gate.Approve(plan, approver); err != nil {
		return err
	}
	s.audit.Append(types.AuditPlanApproved, map[string]interface{}{
		"plan_id":  plan.ID,
		"approver": approver,
	})
	return nil
}

// RejectPlan cancels the current plan before execution.
func (s *Service) RejectPlan(planID, rejecter, reason string) error {
	plan, err := s.currentPlan(planID)
	if err != nil {
		return err
	}
	if err := s.gate.Reject(plan, rejecter, reason); err != nil {
		return err
	}
	s.audit.Append(types.AuditPlanRejected, map[string]interface{}{
		"plan_id":  plan.ID,
		"rejecter": rejecter,
		"reason":   reason,
	})
	return nil
}

// ExecutePlan starts executing the approved current plan in the background.
// The status error (not yet approved, already executing) is returned
// synchronously; enrollment outcomes surface through progress and audit.
func (s *Service) ExecutePlan(planID string) error {
	plan, err := s.currentPlan(planID)
	if err != nil {
		return err
	}
	if plan.Status != types.PlanStatusApproved {
		return &StateError{Op: "ExecutePlan", From: plan.Status, To: types.PlanStatusExecuting}
	}

	go func() {
		if execErr := s.executor.Execute(plan); execErr != nil {
			ErrorLogger(LogHolder{PlanID: plan.ID, Message: execErr.Error()})
		}
	}()
	return nil
}

// ResumePlan restarts a paused execution from the first unfinished batch.
func (s *Service) ResumePlan(planID, resumer string) error {
	plan, err := s.currentPlan(planID)
	if err != nil {
		return err
	}
	if plan.Status != types.PlanStatusPaused {
		return &StateError{Op: "ResumePlan", From: plan.Status, To: types.PlanStatusExecuting}
	}

	go func() {
		if execErr := s.executor.Resume(plan, resumer); execErr != nil {
			ErrorLogger(LogHolder{PlanID: plan.ID, Message: execErr.Error()})
		}
	}()
	return nil
}

// EmergencyStop halts the running execution at the next device boundary.
// Always audited, even when nothing was running.
func (s *Service) EmergencyStop(actor, reason string) {
	s.executor.RequestStop(actor, reason)
	s.audit.Append(types.AuditEmergencyStop, map[string]interface{}{
		"actor":  actor,
		"reason": reason,
	})
	WarnLogger(LogHolder{Message: "Emergency stop requested by " + actor, EventType: types.AuditEmergencyStop})
}

// Progress returns the live execution progress snapshot.
func (s *Service) Progress() types.EnrollmentProgress {
	return s.executor.Progress().Snapshot()
}

// AssessDevice scores one device against the cloud service and runs the
// risk assessment over the result.
func (s *Service) AssessDevice(deviceID string) (*types.RiskAssessment, error) {
	readiness, err := s.client.ScoreDevice(deviceID)
	if err != nil {
		return nil, errors.Wrap(err, "AssessDevice")
	}
	assessment := s.assessor.AssessDevice(*readiness)
	return &assessment, nil
}

// AssessBatch scores a set of devices and aggregates the batch-level risk.
func (s *Service) AssessBatch(deviceIDs []string) (*types.BatchRiskAssessment, error) {
	devices := make([]types.DeviceReadiness, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		readiness, err := s.client.ScoreDevice(id)
		if err != nil {
			return nil, errors.Wrapf(err, "AssessBatch %s", id)
		}
		devices = append(devices, *readiness)
	}
	assessment := s.assessor.AssessBatch(devices)
	return &assessment, nil
}

// WatchDevice scores a device and places it on the monitor watch-list.
func (s *Service) WatchDevice(deviceID string) (*types.DeviceReadiness, error) {
	readiness, err := s.client.ScoreDevice(deviceID)
	if err != nil {
		return nil, errors.Wrap(err, "WatchDevice")
	}
	s.monitor.AddDevice(deviceID, *readiness)
	return readiness, nil
}

// Monitor exposes the readiness monitor for the HTTP layer.
func (s *Service) Monitor() *Monitor {
	return s.monitor
}

// RunReasoning executes the goal-seeking loop and returns its step trace.
func (s *Service) RunReasoning(ctx context.Context, goal string) ([]types.ReasoningStep, error) {
	if goal == "" {
		return nil, &ValidationError{Field: "goal", Reason: "missing"}
	}
	return s.reasoning.Run(ctx, goal)
}
