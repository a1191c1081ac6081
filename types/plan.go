package types

import (
	"time"

	"github.com/lib/pq"
)

// PlanStatus is the lifecycle state of an enrollment plan.
type PlanStatus string

const (
	PlanStatusGenerated PlanStatus = "Generated"
	PlanStatusApproved  PlanStatus = "Approved"
	PlanStatusExecuting PlanStatus = "Executing"
	PlanStatusCompleted PlanStatus = "Completed"
	PlanStatusFailed    PlanStatus = "Failed"
	PlanStatusPaused    PlanStatus = "Paused"
	PlanStatusCancelled PlanStatus = "Cancelled"
)

// BatchStatus is the lifecycle state of a single batch.
type BatchStatus string

const (
	BatchStatusPending             BatchStatus = "Pending"
	BatchStatusInProgress          BatchStatus = "InProgress"
	BatchStatusCompleted           BatchStatus = "Completed"
	BatchStatusCompletedWithErrors BatchStatus = "CompletedWithErrors"
)

// Done reports whether the batch has reached a terminal status.
func (s BatchStatus) Done() bool {
	return s == BatchStatusCompleted || s == BatchStatusCompletedWithErrors
}

// EnrollmentBatch is a scheduled, ordered subset of devices enrolled together.
// A device id appears in at most one batch of a given plan.
type EnrollmentBatch struct {
	ID             string         `json:"id" gorm:"primary_key"`
	PlanID         string         `json:"plan_id" gorm:"index"`
	BatchNumber    int            `json:"batch_number"`
	DeviceIDs      pq.StringArray `json:"device_ids" gorm:"type:text[]"`
	ScheduledTime  time.Time      `json:"scheduled_time"`
	AverageRisk    float64        `json:"average_risk"`
	Status         BatchStatus    `json:"status"`
	SuccessCount   int            `json:"success_count"`
	FailureCount   int            `json:"failure_count"`
	ActualStart    *time.Time     `json:"actual_start,omitempty"`
	ActualEnd      *time.Time     `json:"actual_end,omitempty"`
}

// EnrollmentPlan is a risk-gated, batched execution plan generated from a
// set of goals. Owned by a single executing instance at a time.
type EnrollmentPlan struct {
	ID                string            `json:"id" gorm:"primary_key"`
	GoalsID           string            `json:"goals_id"`
	Goals             EnrollmentGoals   `json:"goals" gorm:"foreignKey:GoalsID"`
	Batches           []EnrollmentBatch `json:"batches" gorm:"foreignKey:PlanID"`
	TotalDevices      int               `json:"total_devices"`
	EstimatedDuration time.Duration     `json:"estimated_duration"`
	Status            PlanStatus        `json:"status"`
	ApprovedBy        string            `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time        `json:"approved_at,omitempty"`
	ExecutionStart    *time.Time        `json:"execution_start,omitempty"`
	ExecutionEnd      *time.Time        `json:"execution_end,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// SuccessRate returns the percentage of attempted enrollments that
// succeeded, or 100 when nothing has been attempted yet.
func (p *EnrollmentPlan) SuccessRate() float64 {
	var success, attempted int
	for i := range p.Batches {
		success += p.Batches[i].SuccessCount
		attempted += p.Batches[i].SuccessCount + p.Batches[i].FailureCount
	}
	if attempted == 0 {
		return 100
	}
	return float64(success) / float64(attempted) * 100
}
