package types

import "time"

// Audit event types emitted by the core. The audit log is the sole durable
// record of who approved/rejected/paused what and when.
const (
	AuditPlanGenerated      = "plan_generated"
	AuditPlanApproved       = "plan_approved"
	AuditPlanRejected       = "plan_rejected"
	AuditStatusChanged      = "status_changed"
	AuditBatchStarted       = "batch_started"
	AuditBatchCompleted     = "batch_completed"
	AuditDeviceEnrolled     = "device_enrolled"
	AuditDeviceEnrollFailed = "device_enroll_failed"
	AuditAutoPause          = "auto_pause"
	AuditEmergencyStop      = "emergency_stop"
	AuditExecutionResumed   = "execution_resumed"
	AuditAutoEnrolled       = "auto_enrolled"
	AuditReadinessChanged   = "readiness_changed"
	AuditReasoningStep      = "reasoning_step"
	AuditWorkloadMoved      = "workload_moved"
)

// AuditEvent is one append-only record. Never updated or deleted.
type AuditEvent struct {
	ID        string    `json:"id" gorm:"primary_key"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
	EventType string    `json:"event_type" gorm:"index"`
	Payload   string    `json:"payload" gorm:"type:text"`
}
