package types

import "time"

// EnrollmentResult is the outcome of a single enrollment attempt.
type EnrollmentResult struct {
	DeviceID    string        `json:"device_id"`
	DeviceName  string        `json:"device_name"`
	AttemptedAt time.Time     `json:"attempted_at"`
	BatchNumber int           `json:"batch_number"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// EnrollmentProgress is the live view of an executing plan. Transient:
// rebuilt at execution start, not persisted across restarts.
type EnrollmentProgress struct {
	PlanID          string             `json:"plan_id"`
	TotalDevices    int                `json:"total_devices"`
	TotalBatches    int                `json:"total_batches"`
	CurrentBatch    int                `json:"current_batch"`
	EnrolledCount   int                `json:"enrolled_count"`
	FailedCount     int                `json:"failed_count"`
	PendingCount    int                `json:"pending_count"`
	RecentResults   []EnrollmentResult `json:"recent_results"`
	Paused          bool               `json:"paused"`
	PauseReason     string             `json:"pause_reason,omitempty"`
	StatusMessage   string             `json:"status_message,omitempty"`
	LastUpdated     time.Time          `json:"last_updated"`
}
