package director

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shiftdirector/shiftdirector/types"
)

// ErrCancelled is observed at a cancellation checkpoint after an emergency
// stop or external cancellation signal.
var ErrCancelled = errors.New("execution cancelled")

// ValidationError - malformed or out-of-range goals.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid goals: %s %s", e.Field, e.Reason)
}

// NotFoundError - operation referenced an unknown or non-current plan.
type NotFoundError struct {
	PlanID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("plan %s not found", e.PlanID)
}

// StateError - operation not valid for the plan's current lifecycle state.
// The plan is left unchanged.
type StateError struct {
	Op   string
	From types.PlanStatus
	To   types.PlanStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: invalid transition %s -> %s", e.Op, e.From, e.To)
}

// ThresholdExceeded - the aggregate failure rate breached the configured
// threshold. Triggers auto-pause; explicitly not the same as Failed.
type ThresholdExceeded struct {
	FailureRate float64
	Threshold   float64
}

func (e *ThresholdExceeded) Error() string {
	return fmt.Sprintf("failure rate %.1f%% exceeds threshold %.1f%%", e.FailureRate, e.Threshold)
}
