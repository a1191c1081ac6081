package director

import (
	log "github.com/sirupsen/logrus"
)

type LogHolder struct {
	DeviceID    string
	DeviceName  string
	PlanID      string
	BatchNumber int
	RiskLevel   string
	EventType   string
	Message     string
	Metric      string
}

func processFields(logholder LogHolder) *log.Entry {
	logger := log.WithFields(log.Fields{})
	if logholder.DeviceID != "" {
		logger = logger.WithFields(
			log.Fields{
				"device_id": logholder.DeviceID,
			})
	}

	if logholder.DeviceName != "" {
		logger = logger.WithFields(
			log.Fields{
				"device_name": logholder.DeviceName,
			})
	}

	if logholder.PlanID != "" {
		logger = logger.WithFields(
			log.Fields{
				"plan_id": logholder.PlanID,
			})
	}

	if logholder.BatchNumber != 0 {
		logger = logger.WithFields(
			log.Fields{
				"batch_number": logholder.BatchNumber,
			})
	}

	if logholder.RiskLevel != "" {
		logger = logger.WithFields(
			log.Fields{
				"risk_level": logholder.RiskLevel,
			})
	}

	if logholder.EventType != "" {
		logger = logger.WithFields(
			log.Fields{
				"event_type": logholder.EventType,
			})
	}

	if logholder.Metric != "" {
		logger = logger.WithFields(
			log.Fields{
				"metric": logholder.Metric,
			})
	}

	return logger
}

func DebugLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Debug(logholder.Message)
}

func InfoLogger(logholder LogHolder) {
	logger := processFields(logholder)
	logger.Info(logholder.Message)
}

func WarnLogger(logholder LogHolder) {
	logger := processFields(logholder)

	logger.Warn(logholder.Message)
}

func ErrorLogger(logholder LogHolder) {
	logger := processFields(logholder)

	logger.Error(logholder.Message)
}
