package types

// ReadinessLevel buckets a readiness score into a coarse band.
type ReadinessLevel string

const (
	ReadinessPoor      ReadinessLevel = "Poor"
	ReadinessFair      ReadinessLevel = "Fair"
	ReadinessGood      ReadinessLevel = "Good"
	ReadinessExcellent ReadinessLevel = "Excellent"
)

// Rank orders readiness levels for comparisons (Poor < Fair < Good < Excellent).
func (l ReadinessLevel) Rank() int {
	switch l {
	case ReadinessFair:
		return 1
	case ReadinessGood:
		return 2
	case ReadinessExcellent:
		return 3
	default:
		return 0
	}
}

// ReadinessLevelForScore derives the band for a 0-100 readiness score.
func ReadinessLevelForScore(score float64) ReadinessLevel {
	switch {
	case score >= 80:
		return ReadinessExcellent
	case score >= 60:
		return ReadinessGood
	case score >= 40:
		return ReadinessFair
	default:
		return ReadinessPoor
	}
}

// DeviceReadiness is the directory's composite health/eligibility view of a
// device. Produced by the cloud management collaborator, never mutated here.
type DeviceReadiness struct {
	DeviceID   string         `json:"device_id"`
	DeviceName string         `json:"device_name"`
	Score      float64        `json:"score"`
	Level      ReadinessLevel `json:"level"`
	Issues     []string       `json:"issues,omitempty"`
}
