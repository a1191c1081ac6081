package types

import "time"

// Workload is a policy domain transitioned independently from enrollment.
type Workload string

const (
	WorkloadCompliance         Workload = "compliance"
	WorkloadConfiguration      Workload = "configuration"
	WorkloadUpdates            Workload = "updates"
	WorkloadApps               Workload = "apps"
	WorkloadEndpointProtection Workload = "endpoint_protection"
)

// AllWorkloads lists every workload in a stable order.
var AllWorkloads = []Workload{
	WorkloadCompliance,
	WorkloadConfiguration,
	WorkloadUpdates,
	WorkloadApps,
	WorkloadEndpointProtection,
}

// WorkloadAuthority says which management fabric currently owns a workload
// for a device.
type WorkloadAuthority string

const (
	AuthorityLegacy WorkloadAuthority = "legacy"
	AuthorityPilot  WorkloadAuthority = "pilot"
	AuthorityCloud  WorkloadAuthority = "cloud"
)

// WorkloadTransition tracks one workload's authority for one co-managed
// device. Seeded with legacy authority when the device enrolls.
type WorkloadTransition struct {
	ID             string            `json:"id" gorm:"primary_key"`
	DeviceID       string            `json:"device_id" gorm:"index"`
	Workload       Workload          `json:"workload"`
	Authority      WorkloadAuthority `json:"authority"`
	TransitionedAt time.Time         `json:"transitioned_at"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
