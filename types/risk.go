package types

// RiskLevel classifies how risky enrolling a device (or batch) is and
// governs whether a human has to approve the action.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// RiskAssessment is the per-device output of the risk assessor.
type RiskAssessment struct {
	DeviceID         string    `json:"device_id"`
	ReadinessScore   float64   `json:"readiness_score"`
	RiskScore        float64   `json:"risk_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	RiskFactors      []string  `json:"risk_factors,omitempty"`
	RequiresApproval bool      `json:"requires_approval"`
	Recommendation   string    `json:"recommendation"`
}

// BatchRiskAssessment aggregates per-device assessments for a whole batch.
type BatchRiskAssessment struct {
	DeviceAssessments []RiskAssessment  `json:"device_assessments"`
	CountsByLevel     map[RiskLevel]int `json:"counts_by_level"`
	AverageRiskScore  float64           `json:"average_risk_score"`
	OverallRiskLevel  RiskLevel         `json:"overall_risk_level"`
	RequiresApproval  bool              `json:"requires_approval"`
}
