package mocks

import (
	"sync"

	"github.com/shiftdirector/shiftdirector/cloudmgmt"
	"github.com/shiftdirector/shiftdirector/types"
)

// MockClient - mock implementation of cloudmgmt.Client for testing
type MockClient struct {
	ListEligibleDevicesFunc func(goals *types.EnrollmentGoals) ([]types.DeviceReadiness, error)
	ScoreDeviceFunc         func(deviceID string) (*types.DeviceReadiness, error)
	EnrollFunc              func(deviceID string) (*cloudmgmt.EnrollResponse, error)

	// Call tracking. The monitor calls from its own goroutines, so tracking
	// is guarded.
	mu                       sync.Mutex
	ListEligibleDevicesCalls []*types.EnrollmentGoals
	ScoreDeviceCalls         []string
	EnrollCalls              []string
}

// Ensure MockClient implements cloudmgmt.Client
var _ cloudmgmt.Client = (*MockClient)(nil)

// ListEligibleDevices implements cloudmgmt.Client
func (m *MockClient) ListEligibleDevices(goals *types.EnrollmentGoals) ([]types.DeviceReadiness, error) {
	m.mu.Lock()
	m.ListEligibleDevicesCalls = append(m.ListEligibleDevicesCalls, goals)
	m.mu.Unlock()
	if m.ListEligibleDevicesFunc != nil {
		return m.ListEligibleDevicesFunc(goals)
	}
	return nil, nil
}

// ScoreDevice implements cloudmgmt.Client
func (m *MockClient) ScoreDevice(deviceID string) (*types.DeviceReadiness, error) {
	m.mu.Lock()
	m.ScoreDeviceCalls = append(m.ScoreDeviceCalls, deviceID)
	m.mu.Unlock()
	if m.ScoreDeviceFunc != nil {
		return m.ScoreDeviceFunc(deviceID)
	}
	return &types.DeviceReadiness{DeviceID: deviceID}, nil
}

// Enroll implements cloudmgmt.Client
func (m *MockClient) Enroll(deviceID string) (*cloudmgmt.EnrollResponse, error) {
	m.mu.Lock()
	m.EnrollCalls = append(m.EnrollCalls, deviceID)
	m.mu.Unlock()
	if m.EnrollFunc != nil {
		return m.EnrollFunc(deviceID)
	}
	return &cloudmgmt.EnrollResponse{DeviceID: deviceID, Enrolled: true}, nil
}

// EnrollCallCount returns how many times Enroll was invoked.
func (m *MockClient) EnrollCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.EnrollCalls)
}
