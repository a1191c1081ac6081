package director

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/shiftdirector/shiftdirector/cloudmgmt"
	"github.com/shiftdirector/shiftdirector/db"
	"github.com/shiftdirector/shiftdirector/types"
	"github.com/shiftdirector/shiftdirector/workload"
	"github.com/vmihailenco/taskq/v3"
	"github.com/vmihailenco/taskq/v3/memqueue"
)

const (
	// defaultMonitorInterval is how often the watch-list is re-evaluated.
	defaultMonitorInterval = 15 * time.Minute

	// autoEnrollMinScore is the readiness bar a watched device must clear
	// before autonomous enrollment is even considered.
	autoEnrollMinScore = 60

	// significantScoreRise is the score delta that counts as a significant
	// readiness change on its own.
	significantScoreRise = 10
)

// monitorSeq keeps taskq queue/task names unique across monitor instances
// (taskq panics on duplicate registration).
var monitorSeq int64

const localStorageMaxKeys = 128000

// localStorage is a map-backed taskq.Storage for running without redis.
// OnceInPeriod keys rotate every period, so the map is cleared at a cap
// rather than evicted per-key.
type localStorage struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newLocalStorage() *localStorage {
	return &localStorage{seen: map[string]struct{}{}}
}

func (s *localStorage) Exists(ctx context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return true
	}
	if len(s.seen) >= localStorageMaxKeys {
		s.seen = map[string]struct{}{}
	}
	s.seen[key] = struct{}{}
	return false
}

var _ taskq.Storage = (*localStorage)(nil)

// Monitor periodically re-scores a watch-list of devices and enrolls them
// autonomously when readiness and risk allow, bypassing the plan mechanism.
// Safety gating stays with the risk assessor.
type Monitor struct {
	client   cloudmgmt.Client
	assessor *RiskAssessor
	audit    *AuditLog
	notifier *Notifier

	interval time.Duration

	mu       sync.Mutex
	watch    map[string]*types.MonitoredDevice
	running  bool
	lastTick *time.Time

	cron  *cron.Cron
	queue taskq.Queue
	task  *taskq.Task
}

func NewMonitor(client cloudmgmt.Client, assessor *RiskAssessor, audit *AuditLog, notifier *Notifier, interval time.Duration, redisClient taskq.Redis) *Monitor {
	if interval <= 0 {
		interval = defaultMonitorInterval
	}

	m := &Monitor{
		client:   client,
		assessor: assessor,
		audit:    audit,
		notifier: notifier,
		interval: interval,
		watch:    map[string]*types.MonitoredDevice{},
	}

	seq := atomic.AddInt64(&monitorSeq, 1)
	opts := &taskq.QueueOptions{
		Name:  fmt.Sprintf("readiness-recheck-%d", seq),
		Redis: redisClient,
	}
	// taskq defaults to redis-backed dedupe storage; only substitute the
	// in-process storage when no redis client is available.
	if redisClient == nil {
		opts.Storage = newLocalStorage()
	}
	factory := memqueue.NewFactory()
	m.queue = factory.RegisterQueue(opts)
	m.task = taskq.RegisterTask(&taskq.TaskOptions{
		Name: fmt.Sprintf("recheck-%d", seq),
		Handler: func(deviceID string) error {
			if err := m.checkDevice(deviceID); err != nil {
				ErrorLogger(LogHolder{DeviceID: deviceID, Message: err.Error()})
			}
			return nil
		},
	})

	return m
}

// Start begins the periodic tick. Starting an already-running monitor logs
// and no-ops.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		InfoLogger(LogHolder{Message: "Monitor already running"})
		return
	}

	m.cron = cron.New()
	_, err := m.cron.AddFunc("@every "+m.interval.String(), m.tick)
	if err != nil {
		ErrorLogger(LogHolder{Message: errors.Wrap(err, "Monitor.Start").Error()})
		return
	}
	m.cron.Start()
	m.running = true
	InfoLogger(LogHolder{Message: "Monitor started", Metric: m.interval.String()})
}

// Stop halts the periodic tick. Stopping a non-running monitor no-ops.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.cron.Stop()
	m.cron = nil
	m.running = false
	InfoLogger(LogHolder{Message: "Monitor stopped"})
}

// Running reports whether the periodic tick is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// AddDevice places a device under observation.
func (m *Monitor) AddDevice(deviceID string, readiness types.DeviceReadiness) {
	now := time.Now()
	entry := &types.MonitoredDevice{
		DeviceID:    deviceID,
		DeviceName:  readiness.DeviceName,
		Readiness:   readiness,
		Score:       readiness.Score,
		Level:       readiness.Level,
		FirstSeen:   now,
		LastChecked: now,
	}

	m.mu.Lock()
	if existing, ok := m.watch[deviceID]; ok {
		entry.FirstSeen = existing.FirstSeen
	}
	m.watch[deviceID] = entry
	m.mu.Unlock()

	if db.DB != nil {
		if err := db.DB.Save(entry).Error; err != nil {
			ErrorLogger(LogHolder{DeviceID: deviceID, Message: err.Error()})
		}
	}

	DebugLogger(LogHolder{DeviceID: deviceID, Message: "Device added to watch-list", Metric: strconv.FormatFloat(readiness.Score, 'f', 0, 64)})
}

// RemoveDevice drops a device from observation.
func (m *Monitor) RemoveDevice(deviceID string) {
	m.mu.Lock()
	_, watched := m.watch[deviceID]
	delete(m.watch, deviceID)
	m.mu.Unlock()

	if watched && db.DB != nil {
		if err := db.DB.Delete(&types.MonitoredDevice{}, "device_id = ?", deviceID).Error; err != nil {
			ErrorLogger(LogHolder{DeviceID: deviceID, Message: err.Error()})
		}
	}
}

// WatchedDevices returns a snapshot copy of the watch-list, optionally
// filtered by a minimum score and readiness level.
func (m *Monitor) WatchedDevices(minScore float64, level types.ReadinessLevel) []types.MonitoredDevice {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]types.MonitoredDevice, 0, len(m.watch))
	for _, entry := range m.watch {
		if entry.Score < minScore {
			continue
		}
		if level != "" && entry.Level != level {
			continue
		}
		devices = append(devices, *entry)
	}
	return devices
}

// UpdateReadiness replaces the stored snapshot for a watched device, e.g.
// from an out-of-band check-in webhook. Unknown devices are ignored.
func (m *Monitor) UpdateReadiness(deviceID string, readiness types.DeviceReadiness) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.watch[deviceID]
	if !ok {
		return false
	}
	entry.Readiness = readiness
	entry.Score = readiness.Score
	entry.Level = readiness.Level
	entry.LastChecked = time.Now()
	return true
}

// Statistics summarises the watch-list for callers.
func (m *Monitor) Statistics() types.MonitoringStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := types.MonitoringStatistics{
		Running:       m.running,
		WatchedCount:  len(m.watch),
		CountsByLevel: map[types.ReadinessLevel]int{},
		LastTick:      m.lastTick,
	}

	var total float64
	for _, entry := range m.watch {
		stats.CountsByLevel[entry.Level]++
		total += entry.Score
		if stats.OldestEntry == nil || entry.FirstSeen.Before(*stats.OldestEntry) {
			first := entry.FirstSeen
			stats.OldestEntry = &first
		}
	}
	if len(m.watch) > 0 {
		stats.AverageScore = total / float64(len(m.watch))
	}

	return stats
}

// tick enqueues one re-check per watched device. OnceInPeriod dedupes when
// a slow tick overlaps the next one.
func (m *Monitor) tick() {
	now := time.Now()
	m.mu.Lock()
	m.lastTick = &now
	ids := make([]string, 0, len(m.watch))
	for id := range m.watch {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	DebugLogger(LogHolder{Message: "Monitor tick", Metric: strconv.Itoa(len(ids))})

	ctx := context.Background()
	for _, id := range ids {
		msg := m.task.WithArgs(ctx, id)
		msg.OnceInPeriod(m.interval / 2)
		err := m.queue.Add(msg)
		switch {
		case errors.Is(msg.Err, taskq.ErrDuplicate):
			DebugLogger(LogHolder{DeviceID: id, Message: "Re-check already scheduled"})
		case err != nil:
			ErrorLogger(LogHolder{DeviceID: id, Message: err.Error()})
		}
	}
}

// checkDevice re-scores one watched device and auto-enrolls it when the
// readiness bar is met and the risk assessor does not demand approval.
func (m *Monitor) checkDevice(deviceID string) error {
	m.mu.Lock()
	entry, ok := m.watch[deviceID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	previous := *entry
	m.mu.Unlock()

	readiness, err := m.client.ScoreDevice(deviceID)
	if err != nil {
		m.touch(deviceID)
		return errors.Wrapf(err, "checkDevice %s", deviceID)
	}

	improved := readiness.Score-previous.Score >= significantScoreRise ||
		readiness.Level.Rank() > previous.Level.Rank()

	if improved {
		m.audit.Append(types.AuditReadinessChanged, map[string]interface{}{
			"device_id": deviceID,
			"old_score": previous.Score,
			"new_score": readiness.Score,
			"old_level": previous.Level,
			"new_level": readiness.Level,
		})
		m.notifier.Publish(Notification{
			Kind:     NotifyReadinessChanged,
			DeviceID: deviceID,
			Message:  fmt.Sprintf("readiness %s (%.0f) -> %s (%.0f)", previous.Level, previous.Score, readiness.Level, readiness.Score),
		})
	}

	if readiness.Score >= autoEnrollMinScore {
		assessment := m.assessor.AssessDevice(*readiness)
		if !assessment.RequiresApproval {
			if m.autoEnroll(deviceID, *readiness, assessment) {
				return nil
			}
		} else {
			DebugLogger(LogHolder{DeviceID: deviceID, RiskLevel: string(assessment.RiskLevel), Message: "Auto-enroll blocked pending approval"})
		}
	}

	m.UpdateReadiness(deviceID, *readiness)
	m.persist(deviceID)
	return nil
}

// autoEnroll invokes the enrollment side effect directly, bypassing the
// batch/plan mechanism. Returns true when the device enrolled and left the
// watch-list.
func (m *Monitor) autoEnroll(deviceID string, readiness types.DeviceReadiness, assessment types.RiskAssessment) bool {
	resp, err := m.client.Enroll(deviceID)
	if err != nil || resp == nil || !resp.Enrolled {
		message := "enrollment rejected"
		if err != nil {
			message = err.Error()
		} else if resp != nil && resp.Error != "" {
			message = resp.Error
		}
		m.audit.Append(types.AuditDeviceEnrollFailed, map[string]interface{}{
			"device_id": deviceID,
			"source":    "monitor",
			"error":     message,
		})
		WarnLogger(LogHolder{DeviceID: deviceID, Message: "Auto-enroll failed: " + message})
		return false
	}

	AutoEnrollmentsTotal.Inc()
	m.audit.Append(types.AuditAutoEnrolled, map[string]interface{}{
		"device_id":  deviceID,
		"score":      readiness.Score,
		"risk_level": assessment.RiskLevel,
	})
	m.notifier.Publish(Notification{
		Kind:     NotifyDeviceEnrolled,
		DeviceID: deviceID,
		Message:  "auto-enrolled by monitor",
	})
	if db.DB != nil {
		if err := workload.SeedBaseline(deviceID); err != nil {
			ErrorLogger(LogHolder{DeviceID: deviceID, Message: err.Error()})
		}
	}
	m.RemoveDevice(deviceID)
	InfoLogger(LogHolder{DeviceID: deviceID, Message: "Device auto-enrolled", RiskLevel: string(assessment.RiskLevel)})
	return true
}

func (m *Monitor) touch(deviceID string) {
	m.mu.Lock()
	if entry, ok := m.watch[deviceID]; ok {
		entry.LastChecked = time.Now()
	}
	m.mu.Unlock()
}

func (m *Monitor) persist(deviceID string) {
	if db.DB == nil {
		return
	}
	m.mu.Lock()
	entry, ok := m.watch[deviceID]
	var copyEntry types.MonitoredDevice
	if ok {
		copyEntry = *entry
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := db.DB.Save(&copyEntry).Error; err != nil {
		ErrorLogger(LogHolder{DeviceID: deviceID, Message: err.Error()})
	}
}
