package types

import (
	"time"

	"github.com/lib/pq"
)

// RiskTolerance is the operator-selected appetite for risk during migration.
type RiskTolerance string

const (
	RiskToleranceConservative RiskTolerance = "conservative"
	RiskToleranceModerate     RiskTolerance = "moderate"
	RiskToleranceAggressive   RiskTolerance = "aggressive"
)

// OperatingHours is the daily window inside which batches may be scheduled.
// Hours are in 24h local time; EndHour is exclusive.
type OperatingHours struct {
	StartHour int `json:"start_hour" gorm:"default:8"`
	EndHour   int `json:"end_hour" gorm:"default:17"`
}

// EnrollmentGoals captures what the operator wants out of a migration wave.
// Immutable once a plan has been generated from it.
type EnrollmentGoals struct {
	ID                      string         `json:"id" gorm:"primary_key"`
	TargetCompletionDate    time.Time      `json:"target_completion_date"`
	RiskTolerance           RiskTolerance  `json:"risk_tolerance" validate:"oneof=conservative moderate aggressive"`
	MaxDevicesPerDay        int            `json:"max_devices_per_day" validate:"gte=0"`
	PreferredBatchSize      int            `json:"preferred_batch_size" validate:"gte=0"`
	MaxBatchSize            int            `json:"max_batch_size" validate:"gte=0"`
	OperatingHours          OperatingHours `json:"operating_hours" gorm:"embedded;embeddedPrefix:operating_"`
	FailureThresholdPercent float64        `json:"failure_threshold_percent" validate:"gte=0,lte=100"`
	MinimumReadinessScore   float64        `json:"minimum_readiness_score" validate:"gte=0,lte=100"`
	ExcludedDeviceIDs       pq.StringArray `json:"excluded_device_ids" gorm:"type:text[]"`
	PriorityDeviceIDs       pq.StringArray `json:"priority_device_ids" gorm:"type:text[]"`
	CreatedAt               time.Time      `json:"created_at"`
}
