package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelops/cardflow/internal/core"
	"github.com/modelops/cardflow/internal/events"
	"github.com/modelops/cardflow/internal/logging"
)

func TestExecuteWorkflowNotFound(t *testing.T) {
	s := newTestService(t, nil, nil)

	_, err := s.Execute(context.Background(), "nope", "hello")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestExecuteChainsOutputs(t *testing.T) {
	s := newTestService(t, nil, nil)
	wf := chainWorkflow(t, s)

	run, err := s.Execute(context.Background(), wf.ID, "x")
	require.NoError(t, err)
	require.Len(t, run.Steps, 3)

	// Each step's prompt is its system prompt plus the previous output.
	in1 := "sysA\n\nx"
	out1 := strings.ToUpper(in1)
	in2 := "sysB\n\n" + out1
	out2 := strings.ToUpper(in2)
	in3 := "sysC\n\n" + out2
	out3 := strings.ToUpper(in3)

	assert.Equal(t, in1, run.Steps[0].Input)
	assert.Equal(t, out1, run.Steps[0].Output)
	assert.Equal(t, in2, run.Steps[1].Input)
	assert.Equal(t, out2, run.Steps[1].Output)
	assert.Equal(t, in3, run.Steps[2].Input)
	assert.Equal(t, out3, run.Steps[2].Output)
	assert.Equal(t, out3, run.FinalOutput)

	assert.Equal(t, "a", run.Steps[0].ModelID)
	assert.Equal(t, "Alpha", run.Steps[0].ModelName)
}

func TestExecuteUsageAdditivity(t *testing.T) {
	s := newTestService(t, nil, nil)
	wf := chainWorkflow(t, s)

	run, err := s.Execute(context.Background(), wf.ID, "x")
	require.NoError(t, err)

	var prompt, completion, total, toolCalls int
	for _, step := range run.Steps {
		prompt += step.Usage.PromptTokens
		completion += step.Usage.CompletionTokens
		total += step.Usage.TotalTokens
		toolCalls += step.Usage.ToolCalls
		assert.Zero(t, step.Usage.ExecutionTime, "per-step latency is not measured")
	}
	assert.Equal(t, prompt, run.TotalUsage.PromptTokens)
	assert.Equal(t, completion, run.TotalUsage.CompletionTokens)
	assert.Equal(t, total, run.TotalUsage.TotalTokens)
	assert.Equal(t, toolCalls, run.TotalUsage.ToolCalls)

	assert.False(t, run.EndTime.Before(run.StartTime))
	assert.GreaterOrEqual(t, run.TotalUsage.ExecutionTime, int64(0))
}

func TestExecuteCountsToolCalls(t *testing.T) {
	llm := core.LLMClientFunc(func(_ context.Context, req core.LLMRequest) (*core.LLMResponse, error) {
		return &core.LLMResponse{
			Content: "done",
			Usage:   core.TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
			ToolResults: []core.ToolResult{
				{ToolID: "search", Result: "ok"},
				{ToolID: "fetch", Result: "ok"},
			},
		}, nil
	})
	s := newTestService(t, nil, llm)
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "tooly", "")
	require.NoError(t, err)
	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("a", "Alpha", "sys")))

	run, err := s.Execute(ctx, wf.ID, "x")
	require.NoError(t, err)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, 2, run.Steps[0].Usage.ToolCalls)
	assert.Equal(t, 2, run.TotalUsage.ToolCalls)
}

func TestExecuteDisconnectedCardsRunInDeclarationOrder(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "loose", "")
	require.NoError(t, err)
	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("first", "First", "s1")))
	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("second", "Second", "s2")))

	run, err := s.Execute(ctx, wf.ID, "x")
	require.NoError(t, err)
	require.Len(t, run.Steps, 2)
	assert.Equal(t, "first", run.Steps[0].ModelID)
	assert.Equal(t, "second", run.Steps[1].ModelID)
}

func TestExecuteEmptyWorkflowPassesInputThrough(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "empty", "")
	require.NoError(t, err)

	run, err := s.Execute(ctx, wf.ID, "untouched")
	require.NoError(t, err)
	assert.Empty(t, run.Steps)
	assert.Equal(t, "untouched", run.FinalOutput)
}

func TestExecutePropagatesProviderErrors(t *testing.T) {
	boom := core.ErrExecution(core.CodeProviderFailed, "upstream exploded")
	llm := core.LLMClientFunc(func(_ context.Context, _ core.LLMRequest) (*core.LLMResponse, error) {
		return nil, boom
	})
	s := newTestService(t, nil, llm)
	wf := chainWorkflow(t, s)

	_, err := s.Execute(context.Background(), wf.ID, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom), "provider errors propagate unwrapped")

	// A failed run leaves no trace in history or the current-run slot.
	assert.Empty(t, s.History())
	assert.Nil(t, s.CurrentRun())
	assert.False(t, s.IsExecuting())
}

func TestExecuteCancelledContext(t *testing.T) {
	s := newTestService(t, nil, nil)
	wf := chainWorkflow(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Execute(ctx, wf.ID, "x")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatCancelled))
	assert.Empty(t, s.History())
}

func TestHistoryBound(t *testing.T) {
	s := newTestService(t, nil, nil)
	wf := chainWorkflow(t, s)
	ctx := context.Background()

	var lastID string
	for i := 0; i < core.HistoryLimit+2; i++ {
		run, err := s.Execute(ctx, wf.ID, fmt.Sprintf("input-%d", i))
		require.NoError(t, err)
		lastID = run.ID
	}

	history := s.History()
	require.Len(t, history, core.HistoryLimit)
	assert.Equal(t, lastID, history[0].ID, "history is most-recent-first")

	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].StartTime.After(history[i-1].StartTime))
	}
}

func TestCurrentRunAndIntermediateResults(t *testing.T) {
	s := newTestService(t, nil, nil)
	wf := chainWorkflow(t, s)
	ctx := context.Background()

	assert.Nil(t, s.CurrentRun())
	assert.Empty(t, s.IntermediateResults())

	first, err := s.Execute(ctx, wf.ID, "one")
	require.NoError(t, err)
	second, err := s.Execute(ctx, wf.ID, "two")
	require.NoError(t, err)

	current := s.CurrentRun()
	require.NotNil(t, current)
	assert.Equal(t, second.ID, current.ID, "latest run wins the current slot")
	assert.NotEqual(t, first.ID, current.ID)

	steps := s.IntermediateResults()
	require.Len(t, steps, 3)
	assert.Equal(t, second.Steps[0].Input, steps[0].Input)
}

func TestExecutePublishesRunEvents(t *testing.T) {
	bus := events.NewBus(32)
	defer bus.Close()
	ch := bus.Subscribe()

	store := newMemStore()
	s := NewService(store, upperLLM(), bus, logging.NewNop())
	require.NoError(t, s.Load(context.Background()))
	wf := chainWorkflow(t, s)

	// Drain the mutation events from building the chain.
	for len(ch) > 0 {
		<-ch
	}

	_, err := s.Execute(context.Background(), wf.ID, "x")
	require.NoError(t, err)

	var types []string
	for len(ch) > 0 {
		types = append(types, (<-ch).EventType())
	}
	assert.Equal(t, []string{
		events.TypeRunStarted,
		events.TypeStepCompleted,
		events.TypeStepCompleted,
		events.TypeStepCompleted,
		events.TypeRunCompleted,
	}, types)
}

func TestHistorySurvivesReload(t *testing.T) {
	store := newMemStore()
	s := newTestService(t, store, nil)
	wf := chainWorkflow(t, s)

	run, err := s.Execute(context.Background(), wf.ID, "x")
	require.NoError(t, err)

	reloaded := newTestService(t, store, nil)
	history := reloaded.History()
	require.Len(t, history, 1)
	assert.Equal(t, run.ID, history[0].ID)
	assert.Equal(t, run.FinalOutput, history[0].FinalOutput)
	assert.Len(t, history[0].Steps, 3)
	assert.False(t, history[0].StartTime.IsZero())
}
