package types

import "time"

// MonitoredDevice is a watch-list entry: a device under periodic
// re-evaluation by the monitor. Removed the moment it is auto-enrolled.
type MonitoredDevice struct {
	DeviceID    string          `json:"device_id" gorm:"primary_key"`
	DeviceName  string          `json:"device_name"`
	Readiness   DeviceReadiness `json:"readiness" gorm:"-"`
	Score       float64         `json:"score"`
	Level       ReadinessLevel  `json:"level"`
	FirstSeen   time.Time       `json:"first_seen"`
	LastChecked time.Time       `json:"last_checked"`
}

// MonitoringStatistics is the snapshot returned to callers asking how the
// watch-list is doing.
type MonitoringStatistics struct {
	Running       bool                   `json:"running"`
	WatchedCount  int                    `json:"watched_count"`
	CountsByLevel map[ReadinessLevel]int `json:"counts_by_level"`
	AverageScore  float64                `json:"average_score"`
	OldestEntry   *time.Time             `json:"oldest_entry,omitempty"`
	LastTick      *time.Time             `json:"last_tick,omitempty"`
}
