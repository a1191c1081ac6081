package director

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shiftdirector/shiftdirector/types"
	form "gopkg.in/ajg/form.v1"
)

// writeJSON marshals out and writes it, logging failures.
func writeJSON(w http.ResponseWriter, out interface{}) {
	output, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(output)
	if err != nil {
		ErrorLogger(LogHolder{Message: err.Error()})
	}
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var validation *ValidationError
	var notFound *NotFoundError
	var state *StateError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &state):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	ErrorLogger(LogHolder{Message: err.Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForError(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// PostPlanHandler generates a plan from the posted goals.
func (s *Service) PostPlanHandler(w http.ResponseWriter, r *http.Request) {
	var goals types.EnrollmentGoals
	if err := json.NewDecoder(r.Body).Decode(&goals); err != nil {
		writeError(w, &ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	plan, err := s.GeneratePlan(&goals)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, plan)
}

// GetPlanHandler returns the current plan.
func (s *Service) GetPlanHandler(w http.ResponseWriter, r *http.Request) {
	plan, err := s.PlanSnapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, plan)
}

type approvalRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

func decodeActor(r *http.Request) approvalRequest {
	var req approvalRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Actor == "" {
		req.Actor = "unknown"
	}
	return req
}

// ApprovePlanHandler approves the identified plan.
func (s *Service) ApprovePlanHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	req := decodeActor(r)
	if err := s.ApprovePlan(vars["id"], req.Actor); err != nil {
		writeError(w, err)
		return
	}
	plan, err := s.PlanSnapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, plan)
}

// RejectPlanHandler cancels the identified plan.
func (s *Service) RejectPlanHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	req := decodeActor(r)
	if err := s.RejectPlan(vars["id"], req.Actor, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	plan, err := s.PlanSnapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, plan)
}

// ExecutePlanHandler starts background execution of the identified plan.
func (s *Service) ExecutePlanHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.ExecutePlan(vars["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "executing", "plan_id": vars["id"]})
}

// ResumePlanHandler resumes a paused execution.
func (s *Service) ResumePlanHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	req := decodeActor(r)
	if err := s.ResumePlan(vars["id"], req.Actor); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "resuming", "plan_id": vars["id"]})
}

// StopHandler requests an emergency stop of the running execution.
func (s *Service) StopHandler(w http.ResponseWriter, r *http.Request) {
	req := decodeActor(r)
	if req.Reason == "" {
		req.Reason = "emergency stop"
	}
	s.EmergencyStop(req.Actor, req.Reason)
	writeJSON(w, map[string]string{"status": "stop requested"})
}

// ProgressHandler returns the live execution progress.
func (s *Service) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Progress())
}

type deviceRiskRequest struct {
	DeviceID string `json:"device_id"`
}

// DeviceRiskHandler assesses a single device.
func (s *Service) DeviceRiskHandler(w http.ResponseWriter, r *http.Request) {
	var req deviceRiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		writeError(w, &ValidationError{Field: "device_id", Reason: "missing"})
		return
	}
	assessment, err := s.AssessDevice(req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, assessment)
}

type batchRiskRequest struct {
	DeviceIDs []string `json:"device_ids"`
}

// BatchRiskHandler assesses a set of devices as one batch.
func (s *Service) BatchRiskHandler(w http.ResponseWriter, r *http.Request) {
	var req batchRiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.DeviceIDs) == 0 {
		writeError(w, &ValidationError{Field: "device_ids", Reason: "missing"})
		return
	}
	assessment, err := s.AssessBatch(req.DeviceIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, assessment)
}

// StartMonitorHandler starts the periodic readiness monitor.
func (s *Service) StartMonitorHandler(w http.ResponseWriter, r *http.Request) {
	s.Monitor().Start()
	writeJSON(w, map[string]bool{"running": s.Monitor().Running()})
}

// StopMonitorHandler stops the periodic readiness monitor.
func (s *Service) StopMonitorHandler(w http.ResponseWriter, r *http.Request) {
	s.Monitor().Stop()
	writeJSON(w, map[string]bool{"running": s.Monitor().Running()})
}

type watchDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

// WatchDeviceHandler scores a device and adds it to the watch-list.
func (s *Service) WatchDeviceHandler(w http.ResponseWriter, r *http.Request) {
	var req watchDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		writeError(w, &ValidationError{Field: "device_id", Reason: "missing"})
		return
	}
	readiness, err := s.WatchDevice(req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, readiness)
}

// MonitorStatisticsHandler summarises the watch-list.
func (s *Service) MonitorStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Monitor().Statistics())
}

// monitoredDevicesFilter is decoded from the query string.
type monitoredDevicesFilter struct {
	MinScore float64 `form:"min_score"`
	Level    string  `form:"level"`
}

// MonitoredDevicesHandler lists watched devices, optionally filtered by a
// minimum score and readiness level.
func (s *Service) MonitoredDevicesHandler(w http.ResponseWriter, r *http.Request) {
	var filter monitoredDevicesFilter
	if err := form.DecodeValues(&filter, r.URL.Query()); err != nil {
		writeError(w, &ValidationError{Field: "query", Reason: err.Error()})
		return
	}
	devices := s.Monitor().WatchedDevices(filter.MinScore, types.ReadinessLevel(filter.Level))
	writeJSON(w, devices)
}

type reasoningRequest struct {
	Goal string `json:"goal"`
}

// ReasoningHandler runs the goal-seeking loop synchronously and returns the
// step trace.
func (s *Service) ReasoningHandler(w http.ResponseWriter, r *http.Request) {
	var req reasoningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	steps, err := s.RunReasoning(r.Context(), req.Goal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, steps)
}
