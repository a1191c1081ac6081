package cloudmgmt

// DeviceRecord is the directory's raw view of a managed endpoint.
type DeviceRecord struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Score         float64 `json:"score"`
	Compliant     bool    `json:"compliant"`
	DiskEncrypted bool    `json:"disk_encrypted"`
	OSVersion     string  `json:"os_version,omitempty"`
	LastSeen      string  `json:"last_seen,omitempty"`
}

// DevicesResponse is the response of the eligible-devices query.
type DevicesResponse struct {
	Devices []DeviceRecord `json:"devices,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// DeviceResponse is the response of a single-device readiness query.
type DeviceResponse struct {
	Device *DeviceRecord `json:"device,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// EnrollResponse is the result of the enrollment side effect.
type EnrollResponse struct {
	DeviceID string `json:"device_id"`
	Enrolled bool   `json:"enrolled"`
	Error    string `json:"error,omitempty"`
}

// EligibleDevicesFilter narrows the candidate pool server-side.
type EligibleDevicesFilter struct {
	MinimumScore float64  `json:"minimum_score,omitempty"`
	ExcludedIDs  []string `json:"excluded_ids,omitempty"`
}
