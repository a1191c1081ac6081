package director

import (
	"context"
	"testing"
	"time"

	"github.com/shiftdirector/shiftdirector/cloudmgmt"
	"github.com/shiftdirector/shiftdirector/cloudmgmt/mocks"
	"github.com/shiftdirector/shiftdirector/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/taskq/v3/memqueue"
)

func testMonitor(t *testing.T, client *mocks.MockClient) (*Monitor, *[]Notification) {
	t.Helper()
	audit, _ := testAudit(t)
	notifier := NewNotifier()

	var received []Notification
	notifier.Subscribe(SubscriberFunc(func(n Notification) { received = append(received, n) }))

	monitor := NewMonitor(client, NewRiskAssessor(), audit, notifier, time.Minute, nil)
	// Process re-checks inline so tests can assert right after tick().
	monitor.queue.(*memqueue.Queue).SetSync(true)
	return monitor, &received
}

func TestMonitor_AddAndRemoveDevice(t *testing.T) {
	monitor, _ := testMonitor(t, &mocks.MockClient{})

	monitor.AddDevice("dev-1", readinessWithScore(55))
	monitor.AddDevice("dev-2", readinessWithScore(30))

	devices := monitor.WatchedDevices(0, "")
	assert.Len(t, devices, 2)

	// Filters apply to the snapshot.
	assert.Len(t, monitor.WatchedDevices(50, ""), 1)
	assert.Len(t, monitor.WatchedDevices(0, types.ReadinessPoor), 1)

	monitor.RemoveDevice("dev-1")
	assert.Len(t, monitor.WatchedDevices(0, ""), 1)
}

func TestMonitor_AddDevicePreservesFirstSeen(t *testing.T) {
	monitor, _ := testMonitor(t, &mocks.MockClient{})

	monitor.AddDevice("dev-1", readinessWithScore(40))
	firstSeen := monitor.WatchedDevices(0, "")[0].FirstSeen

	time.Sleep(5 * time.Millisecond)
	monitor.AddDevice("dev-1", readinessWithScore(45))

	assert.Equal(t, firstSeen, monitor.WatchedDevices(0, "")[0].FirstSeen)
}

func TestMonitor_SignificantImprovementAutoEnrolls(t *testing.T) {
	client := &mocks.MockClient{
		ScoreDeviceFunc: func(deviceID string) (*types.DeviceReadiness, error) {
			readiness := readinessWithScore(72)
			readiness.DeviceID = deviceID
			return &readiness, nil
		},
	}
	monitor, received := testMonitor(t, client)

	monitor.AddDevice("dev-1", readinessWithScore(55))
	require.NoError(t, monitor.checkDevice("dev-1"))

	assert.Equal(t, 1, client.EnrollCallCount())
	assert.Empty(t, monitor.WatchedDevices(0, ""), "enrolled device leaves the watch-list")

	kinds := make([]NotificationKind, 0, len(*received))
	for _, n := range *received {
		kinds = append(kinds, n.Kind)
	}
	assert.Equal(t, []NotificationKind{NotifyReadinessChanged, NotifyDeviceEnrolled}, kinds)
}

func TestMonitor_SmallRiseBelowBarIsQuiet(t *testing.T) {
	client := &mocks.MockClient{
		ScoreDeviceFunc: func(deviceID string) (*types.DeviceReadiness, error) {
			readiness := readinessWithScore(58)
			readiness.DeviceID = deviceID
			return &readiness, nil
		},
	}
	monitor, received := testMonitor(t, client)

	monitor.AddDevice("dev-1", readinessWithScore(50))
	require.NoError(t, monitor.checkDevice("dev-1"))

	assert.Equal(t, 0, client.EnrollCallCount())
	assert.Empty(t, *received, "a rise of 8 within the same level is not significant")

	devices := monitor.WatchedDevices(0, "")
	require.Len(t, devices, 1)
	assert.Equal(t, float64(58), devices[0].Score, "snapshot still refreshed")
}

func TestMonitor_HighRiskBlocksAutoEnroll(t *testing.T) {
	client := &mocks.MockClient{
		ScoreDeviceFunc: func(deviceID string) (*types.DeviceReadiness, error) {
			readiness := readinessWithScore(65, cloudmgmt.IssueCompliance, cloudmgmt.IssueDiskEncryption)
			readiness.DeviceID = deviceID
			return &readiness, nil
		},
	}
	monitor, _ := testMonitor(t, client)

	monitor.AddDevice("dev-1", readinessWithScore(40))
	require.NoError(t, monitor.checkDevice("dev-1"))

	assert.Equal(t, 0, client.EnrollCallCount())
	assert.Len(t, monitor.WatchedDevices(0, ""), 1, "blocked device stays watched")
}

func TestMonitor_TickReChecksWatchedDevices(t *testing.T) {
	client := &mocks.MockClient{
		ScoreDeviceFunc: func(deviceID string) (*types.DeviceReadiness, error) {
			readiness := readinessWithScore(45)
			readiness.DeviceID = deviceID
			return &readiness, nil
		},
	}
	monitor, _ := testMonitor(t, client)

	monitor.AddDevice("dev-1", readinessWithScore(40))
	monitor.AddDevice("dev-2", readinessWithScore(42))

	monitor.tick()

	assert.Len(t, client.ScoreDeviceCalls, 2)

	stats := monitor.Statistics()
	assert.NotNil(t, stats.LastTick)
}

func TestMonitor_OverlappingTickDedupesRechecks(t *testing.T) {
	client := &mocks.MockClient{
		ScoreDeviceFunc: func(deviceID string) (*types.DeviceReadiness, error) {
			readiness := readinessWithScore(45)
			readiness.DeviceID = deviceID
			return &readiness, nil
		},
	}
	monitor, _ := testMonitor(t, client)

	monitor.AddDevice("dev-1", readinessWithScore(40))
	monitor.AddDevice("dev-2", readinessWithScore(42))

	monitor.tick()
	monitor.tick()

	assert.Len(t, client.ScoreDeviceCalls, 2, "second tick within the period is deduped")
}

func TestLocalStorage(t *testing.T) {
	storage := newLocalStorage()
	ctx := context.Background()

	assert.False(t, storage.Exists(ctx, "key-1"))
	assert.True(t, storage.Exists(ctx, "key-1"))
	assert.False(t, storage.Exists(ctx, "key-2"))
}

func TestMonitor_StartStopIdempotent(t *testing.T) {
	monitor, _ := testMonitor(t, &mocks.MockClient{})

	monitor.Start()
	monitor.Start()
	assert.True(t, monitor.Running())

	monitor.Stop()
	monitor.Stop()
	assert.False(t, monitor.Running())
}

func TestMonitor_Statistics(t *testing.T) {
	monitor, _ := testMonitor(t, &mocks.MockClient{})

	monitor.AddDevice("dev-1", readinessWithScore(40))
	monitor.AddDevice("dev-2", readinessWithScore(60))

	stats := monitor.Statistics()
	assert.Equal(t, 2, stats.WatchedCount)
	assert.Equal(t, float64(50), stats.AverageScore)
	assert.Equal(t, 1, stats.CountsByLevel[types.ReadinessFair])
	assert.Equal(t, 1, stats.CountsByLevel[types.ReadinessGood])
	assert.NotNil(t, stats.OldestEntry)
}
