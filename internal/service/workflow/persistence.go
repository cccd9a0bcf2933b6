package workflow

import (
	"context"
	"time"

	"github.com/modelops/cardflow/internal/core"
)

// Stored records carry timestamps as strings so that a malformed date in the
// store degrades to "now" instead of failing the whole load.

type workflowRecord struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Cards       []core.ModelCard  `json:"cards"`
	Connections []core.Connection `json:"connections"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

type stepRecord struct {
	ModelID   string          `json:"model_id"`
	ModelName string          `json:"model_name"`
	Input     string          `json:"input"`
	Output    string          `json:"output"`
	Usage     core.UsageStats `json:"usage"`
	Timestamp string          `json:"timestamp"`
}

type runRecord struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"`
	WorkflowName string          `json:"workflow_name"`
	Steps        []stepRecord    `json:"steps"`
	FinalOutput  string          `json:"final_output"`
	TotalUsage   core.UsageStats `json:"total_usage"`
	StartTime    string          `json:"start_time"`
	EndTime      string          `json:"end_time"`
}

// parseTime rehydrates a stored timestamp, substituting the current time for
// anything unparseable.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}

func (r workflowRecord) toWorkflow() *core.Workflow {
	wf := &core.Workflow{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Cards:       r.Cards,
		Connections: r.Connections,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
	if wf.Cards == nil {
		wf.Cards = make([]core.ModelCard, 0)
	}
	if wf.Connections == nil {
		wf.Connections = make([]core.Connection, 0)
	}
	return wf
}

func (r runRecord) toRunResult() core.RunResult {
	run := core.RunResult{
		ID:           r.ID,
		WorkflowID:   r.WorkflowID,
		WorkflowName: r.WorkflowName,
		Steps:        make([]core.StepResult, len(r.Steps)),
		FinalOutput:  r.FinalOutput,
		TotalUsage:   r.TotalUsage,
		StartTime:    parseTime(r.StartTime),
		EndTime:      parseTime(r.EndTime),
	}
	for i, step := range r.Steps {
		run.Steps[i] = core.StepResult{
			ModelID:   step.ModelID,
			ModelName: step.ModelName,
			Input:     step.Input,
			Output:    step.Output,
			Usage:     step.Usage,
			Timestamp: parseTime(step.Timestamp),
		}
	}
	return run
}

// Load hydrates workflows and run history from the store. A missing key is
// a fresh install, not an error.
func (s *Service) Load(ctx context.Context) error {
	var workflowRecords []workflowRecord
	found, err := s.store.GetItem(ctx, core.StoreKeyWorkflows, &workflowRecords)
	if err != nil {
		return err
	}

	workflows := make([]*core.Workflow, 0, len(workflowRecords))
	if found {
		for _, rec := range workflowRecords {
			workflows = append(workflows, rec.toWorkflow())
		}
	}

	var runRecords []runRecord
	found, err = s.store.GetItem(ctx, core.StoreKeyHistory, &runRecords)
	if err != nil {
		return err
	}

	history := make([]core.RunResult, 0, len(runRecords))
	if found {
		for _, rec := range runRecords {
			history = append(history, rec.toRunResult())
		}
		if len(history) > s.historyLimit {
			history = history[:s.historyLimit]
		}
	}

	s.mu.Lock()
	s.workflows = workflows
	s.history = history
	s.mu.Unlock()

	s.logger.Info("state loaded",
		"workflows", len(workflows),
		"history_entries", len(history))
	return nil
}

// persistWorkflows writes the whole collection. Failures are logged and
// swallowed: the in-memory mutation stands and a later save retries the
// full snapshot.
func (s *Service) persistWorkflows(ctx context.Context) {
	s.mu.RLock()
	snapshot := make([]*core.Workflow, len(s.workflows))
	for i, wf := range s.workflows {
		snapshot[i] = wf.Clone()
	}
	s.mu.RUnlock()

	if err := s.store.SetItem(ctx, core.StoreKeyWorkflows, snapshot); err != nil {
		s.logger.Error("failed to persist workflows", "error", err)
	}
}

// persistHistory writes the whole history collection with the same
// log-and-swallow policy as persistWorkflows.
func (s *Service) persistHistory(ctx context.Context) {
	s.mu.RLock()
	snapshot := append([]core.RunResult(nil), s.history...)
	s.mu.RUnlock()

	if err := s.store.SetItem(ctx, core.StoreKeyHistory, snapshot); err != nil {
		s.logger.Error("failed to persist execution history", "error", err)
	}
}
