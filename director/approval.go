package director

import (
	"time"

	"github.com/shiftdirector/shiftdirector/db"
	"github.com/shiftdirector/shiftdirector/types"
)

// validTransitions is the plan lifecycle:
// Generated -> Approved -> Executing -> {Completed, Failed, Paused};
// Generated -> Cancelled; Paused -> Executing (resume).
var validTransitions = map[types.PlanStatus][]types.PlanStatus{
	types.PlanStatusGenerated: {types.PlanStatusApproved, types.PlanStatusCancelled},
	types.PlanStatusApproved:  {types.PlanStatusExecuting},
	types.PlanStatusExecuting: {types.PlanStatusCompleted, types.PlanStatusFailed, types.PlanStatusPaused},
	types.PlanStatusPaused:    {types.PlanStatusExecuting},
}

// ApprovalGate governs plan lifecycle transitions. Every successful
// transition appends exactly one audit event and one status-changed
// notification; invalid transitions fail with a StateError and leave the
// plan unchanged.
type ApprovalGate struct {
	audit    *AuditLog
	notifier *Notifier
}

func NewApprovalGate(audit *AuditLog, notifier *Notifier) *ApprovalGate {
	return &ApprovalGate{audit: audit, notifier: notifier}
}

func transitionValid(from, to types.PlanStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the plan to a new status, persists it, audits it and
// notifies subscribers. actor is the human (or "system") responsible;
// reason is free-form context carried into the audit payload.
func (g *ApprovalGate) Transition(plan *types.EnrollmentPlan, to types.PlanStatus, actor, reason string) error {
	from := plan.Status
	if !transitionValid(from, to) {
		return &StateError{Op: "Transition", From: from, To: to}
	}

	now := time.Now()
	plan.Status = to

	switch to {
	case types.PlanStatusApproved:
		plan.ApprovedBy = actor
		plan.ApprovedAt = &now
	case types.PlanStatusExecuting:
		if plan.ExecutionStart == nil {
			plan.ExecutionStart = &now
		}
	case types.PlanStatusCompleted, types.PlanStatusFailed:
		plan.ExecutionEnd = &now
	}

	if db.DB != nil {
		if err := db.DB.Model(&types.EnrollmentPlan{}).Where("id = ?", plan.ID).
			Updates(map[string]interface{}{
				"status":          plan.Status,
				"approved_by":     plan.ApprovedBy,
				"approved_at":     plan.ApprovedAt,
				"execution_start": plan.ExecutionStart,
				"execution_end":   plan.ExecutionEnd,
			}).Error; err != nil {
			ErrorLogger(LogHolder{PlanID: plan.ID, Message: err.Error()})
		}
	}

	g.audit.Append(types.AuditStatusChanged, map[string]interface{}{
		"plan_id": plan.ID,
		"from":    from,
		"to":      to,
		"actor":   actor,
		"reason":  reason,
	})

	g.notifier.Publish(Notification{
		Kind:    NotifyStatusChanged,
		PlanID:  plan.ID,
		Status:  to,
		Message: reason,
	})

	InfoLogger(LogHolder{PlanID: plan.ID, EventType: string(to), Message: "Plan status changed"})
	return nil
}

// Approve moves a Generated plan to Approved.
func (g *ApprovalGate) Approve(plan *types.EnrollmentPlan, approver string) error {
	if plan.Status != types.PlanStatusGenerated {
		return &StateError{Op: "Approve", From: plan.Status, To: types.PlanStatusApproved}
	}
	return g.Transition(plan, types.PlanStatusApproved, approver, "approved by "+approver)
}

// Reject cancels a Generated plan.
func (g *ApprovalGate) Reject(plan *types.EnrollmentPlan, rejecter, reason string) error {
	if plan.Status != types.PlanStatusGenerated {
		return &StateError{Op: "Reject", From: plan.Status, To: types.PlanStatusCancelled}
	}
	return g.Transition(plan, types.PlanStatusCancelled, rejecter, reason)
}
