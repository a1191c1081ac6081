package workload

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shiftdirector/shiftdirector/db"
	"github.com/shiftdirector/shiftdirector/types"
	"gorm.io/gorm/clause"
)

const transitionPrefix = "shift"

// TransitionID returns the stable identifier for a device/workload pair.
// Format: shift.<deviceID>.workload.<workload>
func TransitionID(deviceID string, workload types.Workload) string {
	return fmt.Sprintf("%s.%s.workload.%s", transitionPrefix, deviceID, workload)
}

// ValidWorkload reports whether the workload name is known.
func ValidWorkload(workload types.Workload) bool {
	for _, w := range types.AllWorkloads {
		if w == workload {
			return true
		}
	}
	return false
}

// ValidAuthority reports whether the authority value is known.
func ValidAuthority(authority types.WorkloadAuthority) bool {
	switch authority {
	case types.AuthorityLegacy, types.AuthorityPilot, types.AuthorityCloud:
		return true
	}
	return false
}

// SeedBaseline creates legacy-authority transition records for every
// workload of a freshly enrolled device. The device is co-managed from this
// point on; workloads move to the cloud authority one at a time.
func SeedBaseline(deviceID string) error {
	now := time.Now()
	transitions := make([]types.WorkloadTransition, 0, len(types.AllWorkloads))
	for _, w := range types.AllWorkloads {
		transitions = append(transitions, types.WorkloadTransition{
			ID:             TransitionID(deviceID, w),
			DeviceID:       deviceID,
			Workload:       w,
			Authority:      types.AuthorityLegacy,
			TransitionedAt: now,
		})
	}

	err := db.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&transitions).Error
	if err != nil {
		return errors.Wrapf(err, "SeedBaseline %s", deviceID)
	}
	return nil
}

// SetAuthority moves one workload of one device to a new authority.
func SetAuthority(deviceID string, workload types.Workload, authority types.WorkloadAuthority) (*types.WorkloadTransition, error) {
	if !ValidWorkload(workload) {
		return nil, errors.Errorf("unknown workload %q", workload)
	}
	if !ValidAuthority(authority) {
		return nil, errors.Errorf("unknown authority %q", authority)
	}

	transition := types.WorkloadTransition{
		ID:             TransitionID(deviceID, workload),
		DeviceID:       deviceID,
		Workload:       workload,
		Authority:      authority,
		TransitionedAt: time.Now(),
	}

	err := db.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"authority", "transitioned_at"}),
	}).Create(&transition).Error
	if err != nil {
		return nil, errors.Wrapf(err, "SetAuthority %s/%s", deviceID, workload)
	}

	return &transition, nil
}

// DeviceTransitions returns every workload transition record for a device.
func DeviceTransitions(deviceID string) ([]types.WorkloadTransition, error) {
	var transitions []types.WorkloadTransition
	err := db.DB.Where("device_id = ?", deviceID).Order("workload").Find(&transitions).Error
	if err != nil {
		return nil, errors.Wrapf(err, "DeviceTransitions %s", deviceID)
	}
	return transitions, nil
}

// Summary counts transition records per authority across the fleet.
func Summary() (map[types.WorkloadAuthority]int64, error) {
	summary := map[types.WorkloadAuthority]int64{}
	for _, authority := range []types.WorkloadAuthority{types.AuthorityLegacy, types.AuthorityPilot, types.AuthorityCloud} {
		var count int64
		err := db.DB.Model(&types.WorkloadTransition{}).Where("authority = ?", authority).Count(&count).Error
		if err != nil {
			return nil, errors.Wrap(err, "Summary")
		}
		summary[authority] = count
	}
	return summary, nil
}
