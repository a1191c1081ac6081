package director

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shiftdirector/shiftdirector/types"
	"github.com/shiftdirector/shiftdirector/workload"
)

type workloadMoveRequest struct {
	DeviceID  string `json:"device_id"`
	Workload  string `json:"workload"`
	Authority string `json:"authority"`
}

// MoveWorkloadHandler shifts one workload of one co-managed device to a new
// authority. The move is audited like every other side effect.
func (s *Service) MoveWorkloadHandler(w http.ResponseWriter, r *http.Request) {
	var req workloadMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		writeError(w, &ValidationError{Field: "device_id", Reason: "missing"})
		return
	}

	transition, err := workload.SetAuthority(req.DeviceID, types.Workload(req.Workload), types.WorkloadAuthority(req.Authority))
	if err != nil {
		writeError(w, &ValidationError{Field: "workload", Reason: err.Error()})
		return
	}

	s.audit.Append(types.AuditWorkloadMoved, map[string]interface{}{
		"device_id": req.DeviceID,
		"workload":  req.Workload,
		"authority": req.Authority,
	})
	InfoLogger(LogHolder{DeviceID: req.DeviceID, Message: "Workload authority moved to " + req.Authority})

	writeJSON(w, transition)
}

// DeviceWorkloadsHandler lists the workload transition records for a device.
func (s *Service) DeviceWorkloadsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	transitions, err := workload.DeviceTransitions(vars["deviceid"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, transitions)
}

// WorkloadSummaryHandler counts fleet-wide transitions per authority.
func (s *Service) WorkloadSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := workload.Summary()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, summary)
}
