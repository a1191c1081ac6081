package director

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shiftdirector/shiftdirector/cloudmgmt"
	"github.com/shiftdirector/shiftdirector/db"
	"github.com/shiftdirector/shiftdirector/types"
)

// Tools the reasoning loop may pick.
const (
	ToolQueryDevices    = "query_devices"
	ToolAssessReadiness = "assess_readiness"
	ToolEnrollDevice    = "enroll_device"
)

const (
	maxReasoningIterations = 20
	startingConfidence     = 0.7
	minConfidence          = 0.1
	maxConfidence          = 1.0
)

// ToolCall is one chosen action: which tool to run next, with what
// parameters. A nil ToolCall terminates the loop (goal presumed satisfied
// or blocked pending human input).
type ToolCall struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// ReasoningFunc decides the next tool call given the goal and the steps
// taken so far. Pluggable; the default is a deterministic rule-based
// chooser.
type ReasoningFunc func(goal string, steps []types.ReasoningStep) *ToolCall

// queryObservation is the recorded outcome of a query_devices call.
type queryObservation struct {
	Count   int                     `json:"count"`
	Devices []types.DeviceReadiness `json:"devices,omitempty"`
}

// ReasoningLoop is the exploratory, step-at-a-time alternative to plan
// execution: Reason -> Act -> Observe -> Reflect, bounded by a hard
// iteration cap. Enrollment still routes through the risk assessor; the
// confidence scalar only biases future choices, never safety decisions.
type ReasoningLoop struct {
	client   cloudmgmt.Client
	assessor *RiskAssessor
	audit    *AuditLog
	reason   ReasoningFunc

	mu            sync.Mutex
	confidence    float64
	maxIterations int
}

func NewReasoningLoop(client cloudmgmt.Client, assessor *RiskAssessor, audit *AuditLog, reason ReasoningFunc) *ReasoningLoop {
	loop := &ReasoningLoop{
		client:        client,
		assessor:      assessor,
		audit:         audit,
		reason:        reason,
		confidence:    startingConfidence,
		maxIterations: maxReasoningIterations,
	}
	if loop.reason == nil {
		loop.reason = loop.defaultReasoner
	}
	return loop
}

// Confidence returns the current confidence scalar.
func (l *ReasoningLoop) Confidence() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.confidence
}

// Run iterates until the reasoning function stops choosing tools or the
// iteration cap is hit. Every step is persisted as a memory record and
// audited; the full trace is returned for inspection.
func (l *ReasoningLoop) Run(ctx context.Context, goal string) ([]types.ReasoningStep, error) {
	var steps []types.ReasoningStep

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		select {
		case <-ctx.Done():
			return steps, ctx.Err()
		default:
		}

		call := l.reason(goal, steps)
		if call == nil {
			break
		}

		observation, successRate, err := l.invoke(call)
		success := err == nil
		if err != nil {
			observation = err.Error()
		}

		step := types.ReasoningStep{
			ID:          uuid.New().String(),
			Goal:        goal,
			Iteration:   iteration,
			Tool:        call.Tool,
			Observation: observation,
			Success:     success,
			Reflection:  reflect(successRate, success),
			Confidence:  l.adjustConfidence(success),
			CreatedAt:   time.Now(),
		}
		if args, marshalErr := json.Marshal(call.Args); marshalErr == nil {
			step.Args = string(args)
		}

		if db.DB != nil {
			if dbErr := db.DB.Create(&step).Error; dbErr != nil {
				ErrorLogger(LogHolder{Message: errors.Wrap(dbErr, "persist reasoning step").Error()})
			}
		}
		l.audit.Append(types.AuditReasoningStep, map[string]interface{}{
			"goal":       goal,
			"iteration":  iteration,
			"tool":       call.Tool,
			"success":    success,
			"reflection": step.Reflection,
			"confidence": step.Confidence,
		})

		steps = append(steps, step)
	}

	return steps, nil
}

func (l *ReasoningLoop) invoke(call *ToolCall) (observation string, successRate float64, err error) {
	switch call.Tool {
	case ToolQueryDevices:
		goals := &types.EnrollmentGoals{MinimumReadinessScore: argFloat(call.Args, "min_score")}
		devices, queryErr := l.client.ListEligibleDevices(goals)
		if queryErr != nil {
			return "", -1, errors.Wrap(queryErr, ToolQueryDevices)
		}
		encoded, _ := json.Marshal(queryObservation{Count: len(devices), Devices: devices})
		return string(encoded), -1, nil

	case ToolAssessReadiness:
		deviceID := argString(call.Args, "device_id")
		if deviceID == "" {
			return "", -1, errors.New("assess_readiness: device_id missing")
		}
		readiness, scoreErr := l.client.ScoreDevice(deviceID)
		if scoreErr != nil {
			return "", -1, errors.Wrap(scoreErr, ToolAssessReadiness)
		}
		assessment := l.assessor.AssessDevice(*readiness)
		encoded, _ := json.Marshal(assessment)
		return string(encoded), -1, nil

	case ToolEnrollDevice:
		deviceID := argString(call.Args, "device_id")
		if deviceID == "" {
			return "", -1, errors.New("enroll_device: device_id missing")
		}
		readiness, scoreErr := l.client.ScoreDevice(deviceID)
		if scoreErr != nil {
			return "", 0, errors.Wrap(scoreErr, ToolEnrollDevice)
		}
		assessment := l.assessor.AssessDevice(*readiness)
		if assessment.RequiresApproval {
			return "", 0, errors.Errorf("enroll_device: %s is %s risk and requires approval", deviceID, assessment.RiskLevel)
		}
		resp, enrollErr := l.client.Enroll(deviceID)
		if enrollErr != nil {
			return "", 0, errors.Wrap(enrollErr, ToolEnrollDevice)
		}
		if resp == nil || !resp.Enrolled {
			return "", 0, errors.Errorf("enroll_device: %s rejected", deviceID)
		}
		encoded, _ := json.Marshal(resp)
		return string(encoded), 100, nil

	default:
		return "", -1, errors.Errorf("unknown tool %q", call.Tool)
	}
}

// reflect buckets the outcome: a reported success-rate metric wins,
// otherwise plain success/failure decides.
func reflect(successRate float64, success bool) string {
	if successRate >= 0 {
		switch {
		case successRate >= 90:
			return "excellent"
		case successRate >= 70:
			return "good"
		default:
			return "needs adjustment"
		}
	}
	if success {
		return "good"
	}
	return "needs adjustment"
}

func (l *ReasoningLoop) adjustConfidence(success bool) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if success {
		l.confidence += 0.05
	} else {
		l.confidence -= 0.1
	}
	if l.confidence > maxConfidence {
		l.confidence = maxConfidence
	}
	if l.confidence < minConfidence {
		l.confidence = minConfidence
	}
	return l.confidence
}

// defaultReasoner queries once, then enrolls candidates it has not yet
// attempted, highest readiness first, and stops when nothing is left.
func (l *ReasoningLoop) defaultReasoner(goal string, steps []types.ReasoningStep) *ToolCall {
	var lastQuery *types.ReasoningStep
	attempted := map[string]bool{}
	for i := range steps {
		step := steps[i]
		if step.Tool == ToolQueryDevices && step.Success {
			lastQuery = &steps[i]
		}
		if step.Tool == ToolEnrollDevice {
			var args map[string]interface{}
			if json.Unmarshal([]byte(step.Args), &args) == nil {
				attempted[argString(args, "device_id")] = true
			}
		}
	}

	if lastQuery == nil {
		return &ToolCall{Tool: ToolQueryDevices, Args: map[string]interface{}{"min_score": float64(autoEnrollMinScore)}}
	}

	var observed queryObservation
	if err := json.Unmarshal([]byte(lastQuery.Observation), &observed); err != nil {
		return nil
	}

	for _, device := range observed.Devices {
		if !attempted[device.DeviceID] {
			return &ToolCall{Tool: ToolEnrollDevice, Args: map[string]interface{}{"device_id": device.DeviceID}}
		}
	}

	return nil
}

func argString(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argFloat(args map[string]interface{}, key string) float64 {
	if args == nil {
		return 0
	}
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
