package director

import (
	"testing"

	"github.com/shiftdirector/shiftdirector/cloudmgmt"
	"github.com/shiftdirector/shiftdirector/types"
	"github.com/stretchr/testify/assert"
)

func readinessWithScore(score float64, issues ...string) types.DeviceReadiness {
	return types.DeviceReadiness{
		DeviceID: "1234-5678-123456",
		Score:    score,
		Level:    types.ReadinessLevelForScore(score),
		Issues:   issues,
	}
}

func TestAssessDevice_ExcellentNoIssues(t *testing.T) {
	assessor := NewRiskAssessor()

	assessment := assessor.AssessDevice(readinessWithScore(92))

	assert.Equal(t, float64(10), assessment.RiskScore)
	assert.Equal(t, types.RiskLow, assessment.RiskLevel)
	assert.False(t, assessment.RequiresApproval)
	assert.Empty(t, assessment.RiskFactors)
}

func TestAssessDevice_PenaltiesAccumulate(t *testing.T) {
	assessor := NewRiskAssessor()

	assessment := assessor.AssessDevice(readinessWithScore(
		65,
		cloudmgmt.IssueCompliance,
		cloudmgmt.IssueDiskEncryption,
		cloudmgmt.IssueOutdatedOS,
	))

	// Good base 30 + 15 + 10 + 5
	assert.Equal(t, float64(60), assessment.RiskScore)
	assert.Equal(t, types.RiskHigh, assessment.RiskLevel)
	assert.True(t, assessment.RequiresApproval)
	assert.Len(t, assessment.RiskFactors, 3)
}

func TestAssessDevice_ScoreClampedAt100(t *testing.T) {
	assessor := NewRiskAssessor()

	assessment := assessor.AssessDevice(readinessWithScore(
		10,
		cloudmgmt.IssueCompliance,
		cloudmgmt.IssueDiskEncryption,
		cloudmgmt.IssueOutdatedOS,
	))

	// Poor base 90 + 30 of penalties, clamped
	assert.Equal(t, float64(100), assessment.RiskScore)
	assert.Equal(t, types.RiskCritical, assessment.RiskLevel)
	assert.True(t, assessment.RequiresApproval)
}

func TestAssessDevice_UnknownIssuesIgnored(t *testing.T) {
	assessor := NewRiskAssessor()

	assessment := assessor.AssessDevice(readinessWithScore(85, "low battery"))

	assert.Equal(t, float64(10), assessment.RiskScore)
	assert.Empty(t, assessment.RiskFactors)
}

func TestAssessDevice_RepeatedCategoryPenalizedOnce(t *testing.T) {
	assessor := NewRiskAssessor()

	assessment := assessor.AssessDevice(readinessWithScore(
		85,
		"compliance policy drift",
		"compliance attestation expired",
		"compliance scan overdue",
	))

	// Excellent base 10 + one compliance penalty, not three.
	assert.Equal(t, float64(25), assessment.RiskScore)
	assert.False(t, assessment.RequiresApproval)
	assert.Len(t, assessment.RiskFactors, 3, "every matched issue is still reported")
}

func TestAssessDevice_HighReadinessNeverNeedsApproval(t *testing.T) {
	assessor := NewRiskAssessor()

	// Excellent base 10 plus every penalty still lands in Medium.
	for _, score := range []float64{80, 85, 90, 100} {
		assessment := assessor.AssessDevice(readinessWithScore(
			score,
			cloudmgmt.IssueCompliance,
			cloudmgmt.IssueDiskEncryption,
			cloudmgmt.IssueOutdatedOS,
		))
		assert.Falsef(t, assessment.RequiresApproval, "score %v", score)
	}
}

func TestAssessBatch_CriticalDeviceEscalates(t *testing.T) {
	assessor := NewRiskAssessor()

	batch := assessor.AssessBatch([]types.DeviceReadiness{
		readinessWithScore(90),
		readinessWithScore(85),
		readinessWithScore(10, cloudmgmt.IssueCompliance),
	})

	assert.Equal(t, types.RiskCritical, batch.OverallRiskLevel)
	assert.True(t, batch.RequiresApproval)
	assert.Equal(t, 1, batch.CountsByLevel[types.RiskCritical])
}

func TestAssessBatch_HighShareAboveThirtyPercent(t *testing.T) {
	assessor := NewRiskAssessor()

	// 2 of 5 High (40%), no Critical.
	batch := assessor.AssessBatch([]types.DeviceReadiness{
		readinessWithScore(90),
		readinessWithScore(85),
		readinessWithScore(90),
		readinessWithScore(50, cloudmgmt.IssueCompliance),
		readinessWithScore(50, cloudmgmt.IssueCompliance),
	})

	assert.Equal(t, types.RiskHigh, batch.OverallRiskLevel)
	assert.False(t, batch.RequiresApproval, "5 devices with High share needs size > 5 for approval")
}

func TestAssessBatch_HighDevicesInLargerBatchNeedApproval(t *testing.T) {
	assessor := NewRiskAssessor()

	devices := []types.DeviceReadiness{
		readinessWithScore(50, cloudmgmt.IssueCompliance),
	}
	for i := 0; i < 5; i++ {
		devices = append(devices, readinessWithScore(90))
	}

	batch := assessor.AssessBatch(devices)
	assert.True(t, batch.RequiresApproval)
}

func TestAssessBatch_LargeBatchAlwaysNeedsApproval(t *testing.T) {
	assessor := NewRiskAssessor()

	var devices []types.DeviceReadiness
	for i := 0; i < 11; i++ {
		devices = append(devices, readinessWithScore(95))
	}

	batch := assessor.AssessBatch(devices)
	assert.Equal(t, types.RiskLow, batch.OverallRiskLevel)
	assert.True(t, batch.RequiresApproval)
}

func TestAssessBatch_Empty(t *testing.T) {
	assessor := NewRiskAssessor()

	batch := assessor.AssessBatch(nil)

	assert.Equal(t, float64(0), batch.AverageRiskScore)
	assert.Equal(t, types.RiskLow, batch.OverallRiskLevel)
	assert.False(t, batch.RequiresApproval)
}

func TestNextBatchSize(t *testing.T) {
	assessor := NewRiskAssessor()

	assert.Equal(t, 25, assessor.NextBatchSize(0.97, 20))
	assert.Equal(t, 20, assessor.NextBatchSize(0.90, 20))
	assert.Equal(t, 18, assessor.NextBatchSize(0.80, 20))
	assert.Equal(t, 15, assessor.NextBatchSize(0.60, 20))

	// clamped to the floor and ceiling
	assert.Equal(t, 5, assessor.NextBatchSize(0.10, 6))
	assert.Equal(t, 50, assessor.NextBatchSize(1.0, 48))
}
