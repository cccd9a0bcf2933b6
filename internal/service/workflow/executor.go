package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/modelops/cardflow/internal/core"
	"github.com/modelops/cardflow/internal/engine"
	"github.com/modelops/cardflow/internal/events"
)

// Execute runs the workflow as a single sequential chain: each card's
// output becomes the next card's input. Steps never run concurrently
// within one run; independent runs may overlap, and the current-run slot
// is last-write-wins between them.
//
// Provider errors propagate to the caller unwrapped; no partial result is
// returned on failure. Cancellation is checked cooperatively before each
// step's provider call.
func (s *Service) Execute(ctx context.Context, workflowID, userInput string) (*core.RunResult, error) {
	s.mu.RLock()
	found := s.find(workflowID)
	var wf *core.Workflow
	if found != nil {
		wf = found.Clone()
	}
	s.mu.RUnlock()

	if wf == nil {
		return nil, s.notFound(workflowID)
	}

	s.executing.Store(true)
	defer s.executing.Store(false)

	start := time.Now()
	run := &core.RunResult{
		ID:           uuid.NewString(),
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Steps:        make([]core.StepResult, 0, len(wf.Cards)),
		StartTime:    start,
		EndTime:      start, // provisional until Finalize
	}

	order := engine.ExecutionOrder(wf, s.logger.Logger)
	if len(order) == 0 && len(wf.Cards) > 0 {
		err := core.ErrExecution(core.CodeOrderUnresolved, "could not resolve an execution order for workflow "+wf.ID)
		s.publish(events.NewRunFailed(wf.ID, err))
		return nil, err
	}

	s.publish(events.NewRunStarted(wf.ID, wf.Name, len(order)))
	logger := s.logger.WithWorkflow(wf.ID)
	logger.Info("run started", "run_id", run.ID, "steps", len(order), "input_len", len(userInput))

	currentInput := userInput
	for i, cardID := range order {
		card, ok := wf.FindCard(cardID)
		if !ok {
			// Order can reference a card that was removed out from under
			// it; tolerate and continue rather than failing the run.
			logger.Warn("skipping unknown model card in execution order", "card_id", cardID)
			continue
		}

		if err := ctx.Err(); err != nil {
			cancelErr := core.ErrCancelled("run cancelled before step " + card.ID).WithCause(err)
			s.publish(events.NewRunFailed(wf.ID, cancelErr))
			return nil, cancelErr
		}

		prompt := card.SystemPrompt + "\n\n" + currentInput
		resp, err := s.llm.SendRequest(ctx, core.LLMRequest{
			Provider:   card.Provider,
			Model:      card.Model,
			Prompt:     prompt,
			Parameters: card.FlattenParameters(),
		})
		if err != nil {
			logger.Error("provider call failed", "card_id", card.ID, "step", i, "error", err)
			s.publish(events.NewRunFailed(wf.ID, err))
			return nil, err
		}

		step := core.StepResult{
			ModelID:   card.ID,
			ModelName: card.Name,
			Input:     prompt,
			Output:    resp.Content,
			Usage: core.UsageStats{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
				ExecutionTime:    0, // per-step latency is not measured
				ToolCalls:        len(resp.ToolResults),
			},
			Timestamp: time.Now(),
		}
		run.AppendStep(step)
		currentInput = resp.Content

		s.publish(events.NewStepCompleted(wf.ID, i, step))
		logger.Debug("step completed",
			"card_id", card.ID,
			"step", i,
			"tokens", step.Usage.TotalTokens)
	}

	// If every step was skipped the user input passes through unchanged.
	run.FinalOutput = currentInput
	run.Finalize(time.Now())

	s.mu.Lock()
	s.current = run
	s.history = append([]core.RunResult{*run}, s.history...)
	if len(s.history) > s.historyLimit {
		s.history = s.history[:s.historyLimit]
	}
	s.mu.Unlock()

	s.persistHistory(ctx)
	s.publish(events.NewRunCompleted(run))
	logger.Info("run completed",
		"run_id", run.ID,
		"steps", len(run.Steps),
		"total_tokens", run.TotalUsage.TotalTokens,
		"duration_ms", run.TotalUsage.ExecutionTime)
	return run, nil
}
