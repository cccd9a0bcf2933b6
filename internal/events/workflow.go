package events

import "github.com/modelops/cardflow/internal/core"

// Event type names.
const (
	TypeRunStarted       = "run_started"
	TypeStepCompleted    = "step_completed"
	TypeRunCompleted     = "run_completed"
	TypeRunFailed        = "run_failed"
	TypeToolServerStatus = "tool_server_status"
	TypeWorkflowsChanged = "workflows_changed"
)

// RunStartedEvent fires when a workflow execution begins.
type RunStartedEvent struct {
	BaseEvent
	WorkflowName string `json:"workflow_name"`
	StepCount    int    `json:"step_count"`
}

// NewRunStarted creates a run started event.
func NewRunStarted(workflowID, workflowName string, stepCount int) RunStartedEvent {
	return RunStartedEvent{
		BaseEvent:    NewBaseEvent(TypeRunStarted, workflowID),
		WorkflowName: workflowName,
		StepCount:    stepCount,
	}
}

// StepCompletedEvent fires after each model card's response is recorded.
type StepCompletedEvent struct {
	BaseEvent
	Step  core.StepResult `json:"step"`
	Index int             `json:"index"`
}

// NewStepCompleted creates a step completed event.
func NewStepCompleted(workflowID string, index int, step core.StepResult) StepCompletedEvent {
	return StepCompletedEvent{
		BaseEvent: NewBaseEvent(TypeStepCompleted, workflowID),
		Step:      step,
		Index:     index,
	}
}

// RunCompletedEvent fires when a run finishes successfully.
type RunCompletedEvent struct {
	BaseEvent
	Result *core.RunResult `json:"result"`
}

// NewRunCompleted creates a run completed event.
func NewRunCompleted(result *core.RunResult) RunCompletedEvent {
	return RunCompletedEvent{
		BaseEvent: NewBaseEvent(TypeRunCompleted, result.WorkflowID),
		Result:    result,
	}
}

// RunFailedEvent fires when a run aborts with an error.
type RunFailedEvent struct {
	BaseEvent
	Error string `json:"error"`
}

// NewRunFailed creates a run failed event.
func NewRunFailed(workflowID string, err error) RunFailedEvent {
	return RunFailedEvent{
		BaseEvent: NewBaseEvent(TypeRunFailed, workflowID),
		Error:     err.Error(),
	}
}

// ToolServerStatusEvent fires when a tool server's observed status changes.
type ToolServerStatusEvent struct {
	BaseEvent
	Status core.ToolServerStatus `json:"status"`
}

// NewToolServerStatus creates a tool server status event.
func NewToolServerStatus(status core.ToolServerStatus) ToolServerStatusEvent {
	return ToolServerStatusEvent{
		BaseEvent: NewBaseEvent(TypeToolServerStatus, ""),
		Status:    status,
	}
}

// WorkflowsChangedEvent fires after any successful workflow mutation.
type WorkflowsChangedEvent struct {
	BaseEvent
}

// NewWorkflowsChanged creates a workflows changed event.
func NewWorkflowsChanged(workflowID string) WorkflowsChangedEvent {
	return WorkflowsChangedEvent{BaseEvent: NewBaseEvent(TypeWorkflowsChanged, workflowID)}
}
