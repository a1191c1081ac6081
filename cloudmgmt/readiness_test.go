package cloudmgmt

import (
	"testing"

	"github.com/shiftdirector/shiftdirector/types"
	"github.com/stretchr/testify/assert"
)

func TestDeriveReadiness_CleanDevice(t *testing.T) {
	readiness := DeriveReadiness(DeviceRecord{
		ID:            "dev-1",
		Name:          "LAPTOP-01",
		Score:         88,
		Compliant:     true,
		DiskEncrypted: true,
		OSVersion:     "10.0.22631",
	})

	assert.Equal(t, "dev-1", readiness.DeviceID)
	assert.Equal(t, types.ReadinessExcellent, readiness.Level)
	assert.Empty(t, readiness.Issues)
}

func TestDeriveReadiness_CollectsIssues(t *testing.T) {
	readiness := DeriveReadiness(DeviceRecord{
		ID:        "dev-2",
		Score:     45,
		OSVersion: "10.0.17763",
	})

	assert.Equal(t, types.ReadinessFair, readiness.Level)
	assert.Equal(t, []string{IssueCompliance, IssueDiskEncryption, IssueOutdatedOS}, readiness.Issues)
}

func TestOSOutdated(t *testing.T) {
	assert.False(t, osOutdated("10.0.22631"))
	assert.False(t, osOutdated("10.0.19044"))
	assert.True(t, osOutdated("10.0.17763"))

	// Devices that can't report a parseable build are not good candidates.
	assert.True(t, osOutdated(""))
	assert.True(t, osOutdated("unknown"))
}

func TestReadinessLevelForScore(t *testing.T) {
	assert.Equal(t, types.ReadinessExcellent, types.ReadinessLevelForScore(80))
	assert.Equal(t, types.ReadinessGood, types.ReadinessLevelForScore(60))
	assert.Equal(t, types.ReadinessFair, types.ReadinessLevelForScore(40))
	assert.Equal(t, types.ReadinessPoor, types.ReadinessLevelForScore(39))
}
