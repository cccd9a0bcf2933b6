package core

import "time"

// UsageStats aggregates token and tool accounting for a step or a whole run.
type UsageStats struct {
	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	TotalTokens      int   `json:"total_tokens"`
	ExecutionTime    int64 `json:"execution_time_ms"`
	ToolCalls        int   `json:"tool_calls"`
}

// Add accumulates another step's usage into the totals. ExecutionTime is
// deliberately not summed: run totals carry wall-clock time, steps carry 0.
func (u *UsageStats) Add(other UsageStats) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.ToolCalls += other.ToolCalls
}

// StepResult records one model card's contribution to a run. Immutable once
// recorded.
type StepResult struct {
	ModelID   string     `json:"model_id"`
	ModelName string     `json:"model_name"`
	Input     string     `json:"input"` // full prompt sent, system prompt included
	Output    string     `json:"output"`
	Usage     UsageStats `json:"usage"`
	Timestamp time.Time  `json:"timestamp"`
}

// RunResult is the full record of one workflow execution.
type RunResult struct {
	ID           string       `json:"id"`
	WorkflowID   string       `json:"workflow_id"`
	WorkflowName string       `json:"workflow_name"`
	Steps        []StepResult `json:"steps"`
	FinalOutput  string       `json:"final_output"`
	TotalUsage   UsageStats   `json:"total_usage"`
	StartTime    time.Time    `json:"start_time"`
	EndTime      time.Time    `json:"end_time"`
}

// AppendStep records a step and folds its usage into the totals.
func (r *RunResult) AppendStep(step StepResult) {
	r.Steps = append(r.Steps, step)
	r.TotalUsage.Add(step.Usage)
}

// Finalize stamps the end time and the whole-run wall-clock duration.
func (r *RunResult) Finalize(end time.Time) {
	r.EndTime = end
	r.TotalUsage.ExecutionTime = end.Sub(r.StartTime).Milliseconds()
}

// HistoryLimit is the soft cap on retained past runs, most recent first.
const HistoryLimit = 10
