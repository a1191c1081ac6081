package director

import (
	"strings"

	"github.com/shiftdirector/shiftdirector/types"
)

// Risk score penalties per matched issue category.
const (
	penaltyCompliance     = 15
	penaltyDiskEncryption = 10
	penaltyOutdatedOS     = 5
)

// Batch size controller bounds.
const (
	minBatchSize = 5
	maxBatchSize = 50
)

// RiskAssessor derives risk tiers and auto-approval eligibility from
// readiness. Deterministic and side-effect-free; both execution paths route
// enrollment decisions through it.
type RiskAssessor struct{}

func NewRiskAssessor() *RiskAssessor {
	return &RiskAssessor{}
}

// AssessDevice scores a single device. Low and Medium risk auto-approve;
// High and Critical always require a human. That boundary is policy, not a
// per-call knob.
func (a *RiskAssessor) AssessDevice(readiness types.DeviceReadiness) types.RiskAssessment {
	score := baseRiskScore(readiness.Level)

	// Each category penalizes at most once, however many issues mention it.
	var factors []string
	var compliance, encryption, outdated bool
	for _, issue := range readiness.Issues {
		lowered := strings.ToLower(issue)
		switch {
		case strings.Contains(lowered, "compliance"):
			if !compliance {
				compliance = true
				score += penaltyCompliance
			}
			factors = append(factors, issue)
		case strings.Contains(lowered, "encrypt"):
			if !encryption {
				encryption = true
				score += penaltyDiskEncryption
			}
			factors = append(factors, issue)
		case strings.Contains(lowered, "outdated") || strings.Contains(lowered, "os version"):
			if !outdated {
				outdated = true
				score += penaltyOutdatedOS
			}
			factors = append(factors, issue)
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	level := riskLevelForScore(score)

	return types.RiskAssessment{
		DeviceID:         readiness.DeviceID,
		ReadinessScore:   readiness.Score,
		RiskScore:        score,
		RiskLevel:        level,
		RiskFactors:      factors,
		RequiresApproval: level == types.RiskHigh || level == types.RiskCritical,
		Recommendation:   recommendationForLevel(level),
	}
}

// AssessBatch aggregates per-device assessments. The overall level escalates
// to the worst contributing level: any Critical device makes the batch
// Critical; High devices above 30% of the batch make it High; Medium above
// 50% makes it Medium. Small batches of good devices may skip human review,
// large or risky batches never do.
func (a *RiskAssessor) AssessBatch(readiness []types.DeviceReadiness) types.BatchRiskAssessment {
	batch := types.BatchRiskAssessment{
		CountsByLevel: map[types.RiskLevel]int{},
	}

	var total float64
	for i := range readiness {
		assessment := a.AssessDevice(readiness[i])
		batch.DeviceAssessments = append(batch.DeviceAssessments, assessment)
		batch.CountsByLevel[assessment.RiskLevel]++
		total += assessment.RiskScore
	}

	size := len(readiness)
	if size > 0 {
		batch.AverageRiskScore = total / float64(size)
	}

	critical := batch.CountsByLevel[types.RiskCritical]
	high := batch.CountsByLevel[types.RiskHigh]
	medium := batch.CountsByLevel[types.RiskMedium]

	switch {
	case critical > 0:
		batch.OverallRiskLevel = types.RiskCritical
	case size > 0 && float64(high)/float64(size) > 0.3:
		batch.OverallRiskLevel = types.RiskHigh
	case size > 0 && float64(medium)/float64(size) > 0.5:
		batch.OverallRiskLevel = types.RiskMedium
	default:
		batch.OverallRiskLevel = types.RiskLow
	}

	batch.RequiresApproval = critical > 0 ||
		(high > 0 && size > 5) ||
		size > 10

	return batch
}

// NextBatchSize adapts batch size to the recent success rate: grow only
// after sustained high success, shrink quickly on regression. successRate is
// a fraction in [0,1].
func (a *RiskAssessor) NextBatchSize(successRate float64, currentSize int) int {
	var next int
	switch {
	case successRate >= 0.95:
		next = currentSize + 5
	case successRate >= 0.85:
		next = currentSize
	case successRate >= 0.75:
		next = currentSize - 2
	default:
		next = currentSize - 5
	}

	if next < minBatchSize {
		next = minBatchSize
	}
	if next > maxBatchSize {
		next = maxBatchSize
	}
	return next
}

func baseRiskScore(level types.ReadinessLevel) float64 {
	switch level {
	case types.ReadinessExcellent:
		return 10
	case types.ReadinessGood:
		return 30
	case types.ReadinessFair:
		return 60
	default:
		return 90
	}
}

func riskLevelForScore(score float64) types.RiskLevel {
	switch {
	case score <= 25:
		return types.RiskLow
	case score <= 50:
		return types.RiskMedium
	case score <= 75:
		return types.RiskHigh
	default:
		return types.RiskCritical
	}
}

func recommendationForLevel(level types.RiskLevel) string {
	switch level {
	case types.RiskLow:
		return "Safe to enroll automatically."
	case types.RiskMedium:
		return "Safe to enroll automatically; review open issues afterwards."
	case types.RiskHigh:
		return "Resolve open issues and obtain approval before enrolling."
	default:
		return "Do not enroll until issues are remediated and an operator approves."
	}
}
