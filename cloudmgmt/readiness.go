package cloudmgmt

import (
	version "github.com/hashicorp/go-version"
	"github.com/shiftdirector/shiftdirector/types"
)

// Issue strings attached to derived readiness. The risk assessor matches on
// these categories, so keep the wording stable.
const (
	IssueCompliance     = "compliance policy violation"
	IssueDiskEncryption = "disk encryption not enabled"
	IssueOutdatedOS     = "outdated OS version"
)

// minimumOSVersion is the oldest OS build eligible for co-management
// without being flagged.
const minimumOSVersion = "10.0.19044"

// DeriveReadiness turns a raw directory record into the readiness shape the
// core consumes.
func DeriveReadiness(record DeviceRecord) types.DeviceReadiness {
	readiness := types.DeviceReadiness{
		DeviceID:   record.ID,
		DeviceName: record.Name,
		Score:      record.Score,
		Level:      types.ReadinessLevelForScore(record.Score),
	}

	if !record.Compliant {
		readiness.Issues = append(readiness.Issues, IssueCompliance)
	}
	if !record.DiskEncrypted {
		readiness.Issues = append(readiness.Issues, IssueDiskEncryption)
	}
	if osOutdated(record.OSVersion) {
		readiness.Issues = append(readiness.Issues, IssueOutdatedOS)
	}

	return readiness
}

// osOutdated reports whether the device OS build is older than the minimum.
// Unparseable or missing versions are treated as outdated: a device that
// can't report its build is not a good first candidate.
func osOutdated(osVersion string) bool {
	if osVersion == "" {
		return true
	}

	current, err := version.NewVersion(osVersion)
	if err != nil {
		return true
	}

	minimum, err := version.NewVersion(minimumOSVersion)
	if err != nil {
		return false
	}

	return current.LessThan(minimum)
}
