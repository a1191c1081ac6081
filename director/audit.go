package director

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shiftdirector/shiftdirector/db"
	"github.com/shiftdirector/shiftdirector/types"
)

// AuditLog is the append-only record of every lifecycle and outcome event.
// Events are written to a line-delimited JSON file that is never rewritten,
// and mirrored into the audit_events table for queries.
type AuditLog struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLog opens (or creates) the audit file in append-only mode.
func NewAuditLog(path string) (*AuditLog, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "NewAuditLog")
	}
	return &AuditLog{file: file}, nil
}

// Append records one event. Failures to persist are logged, never
// swallowed silently, but do not propagate: audit must not take down
// execution mid-batch.
func (a *AuditLog) Append(eventType string, payload map[string]interface{}) {
	event := types.AuditEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		ErrorLogger(LogHolder{EventType: eventType, Message: errors.Wrap(err, "audit payload marshal").Error()})
		encoded = []byte("{}")
	}
	event.Payload = string(encoded)

	line, err := json.Marshal(event)
	if err != nil {
		ErrorLogger(LogHolder{EventType: eventType, Message: errors.Wrap(err, "audit event marshal").Error()})
		return
	}

	a.mu.Lock()
	if a.file != nil {
		if _, err := a.file.Write(append(line, '\n')); err != nil {
			ErrorLogger(LogHolder{EventType: eventType, Message: errors.Wrap(err, "audit file write").Error()})
		}
	}
	a.mu.Unlock()

	if db.DB != nil {
		if err := db.DB.Create(&event).Error; err != nil {
			ErrorLogger(LogHolder{EventType: eventType, Message: errors.Wrap(err, "audit db insert").Error()})
		}
	}

	DebugLogger(LogHolder{EventType: eventType, Message: "Audit event recorded"})
}

// Close closes the audit file.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}
