package director

import (
	"encoding/json"
	"net/http"

	"github.com/shiftdirector/shiftdirector/cloudmgmt"
)

// webhookPayload is what the cloud management service posts on device
// check-in events.
type webhookPayload struct {
	Topic  string                 `json:"topic"`
	Device *cloudmgmt.DeviceRecord `json:"device,omitempty"`
}

// WebhookHandler ingests check-in events from the cloud management service.
// A check-in for a watched device refreshes its readiness snapshot without
// waiting for the next monitor tick; anything else is acknowledged and
// dropped.
func (s *Service) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, &ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	if payload.Topic != "device.CheckIn" || payload.Device == nil || payload.Device.ID == "" {
		DebugLogger(LogHolder{Message: "Webhook event ignored", EventType: payload.Topic})
		w.WriteHeader(http.StatusNoContent)
		return
	}

	readiness := cloudmgmt.DeriveReadiness(*payload.Device)
	if s.Monitor().UpdateReadiness(readiness.DeviceID, readiness) {
		s.notifier.Publish(Notification{
			Kind:     NotifyReadinessChanged,
			DeviceID: readiness.DeviceID,
			Message:  "check-in readiness update",
		})
		DebugLogger(LogHolder{
			DeviceID:   readiness.DeviceID,
			DeviceName: readiness.DeviceName,
			Message:    "Watched device checked in",
		})
	}

	w.WriteHeader(http.StatusNoContent)
}
