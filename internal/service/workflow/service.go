// Package workflow owns the workflow collection: CRUD, connection
// validation, sequential chain execution, and the capped run history.
package workflow

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/modelops/cardflow/internal/core"
	"github.com/modelops/cardflow/internal/engine"
	"github.com/modelops/cardflow/internal/events"
	"github.com/modelops/cardflow/internal/logging"
)

// Service is the engine's entry point. All mutation of the workflow
// collection and run history goes through it.
type Service struct {
	store  core.Store
	llm    core.LLMClient
	bus    *events.Bus
	logger *logging.Logger

	mu           sync.RWMutex
	workflows    []*core.Workflow
	history      []core.RunResult
	current      *core.RunResult
	historyLimit int

	executing atomic.Bool
}

// Option customizes a Service.
type Option func(*Service)

// WithHistoryLimit overrides the retained-run cap.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// NewService creates a workflow service. Call Load before serving requests
// to hydrate state from the store.
func NewService(store core.Store, llm core.LLMClient, bus *events.Bus, logger *logging.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		llm:          llm,
		bus:          bus,
		logger:       logger,
		workflows:    make([]*core.Workflow, 0),
		history:      make([]core.RunResult, 0),
		historyLimit: core.HistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListWorkflows returns copies of all workflows in storage order.
func (s *Service) ListWorkflows() []*core.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Workflow, len(s.workflows))
	for i, wf := range s.workflows {
		out[i] = wf.Clone()
	}
	return out
}

// GetWorkflow returns a copy of the workflow with the given id.
func (s *Service) GetWorkflow(id string) (*core.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf := s.find(id)
	if wf == nil {
		return nil, s.notFound(id)
	}
	return wf.Clone(), nil
}

// CreateWorkflow creates an empty workflow and persists the collection.
func (s *Service) CreateWorkflow(ctx context.Context, name, description string) (*core.Workflow, error) {
	wf := core.NewWorkflow(uuid.NewString(), name, description)
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.workflows = append(s.workflows, wf)
	s.mu.Unlock()

	s.logger.Info("workflow created", "workflow_id", wf.ID, "name", name)
	s.persistWorkflows(ctx)
	s.publish(events.NewWorkflowsChanged(wf.ID))
	return wf.Clone(), nil
}

// UpdateWorkflow renames a workflow and persists the collection.
func (s *Service) UpdateWorkflow(ctx context.Context, id, name, description string) (*core.Workflow, error) {
	if name == "" {
		return nil, core.ErrValidation("WORKFLOW_NAME_REQUIRED", "workflow name cannot be empty")
	}

	s.mu.Lock()
	wf := s.find(id)
	if wf == nil {
		s.mu.Unlock()
		return nil, s.notFound(id)
	}
	wf.Name = name
	wf.Description = description
	wf.Touch()
	out := wf.Clone()
	s.mu.Unlock()

	s.persistWorkflows(ctx)
	s.publish(events.NewWorkflowsChanged(id))
	return out, nil
}

// DeleteWorkflow removes a workflow and persists the collection.
func (s *Service) DeleteWorkflow(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i, wf := range s.workflows {
		if wf.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return s.notFound(id)
	}
	s.workflows = append(s.workflows[:idx], s.workflows[idx+1:]...)
	s.mu.Unlock()

	s.logger.Info("workflow deleted", "workflow_id", id)
	s.persistWorkflows(ctx)
	s.publish(events.NewWorkflowsChanged(id))
	return nil
}

// AddModelCard snapshots a model card into the workflow.
func (s *Service) AddModelCard(ctx context.Context, workflowID string, card core.ModelCard) error {
	s.mu.Lock()
	wf := s.find(workflowID)
	if wf == nil {
		s.mu.Unlock()
		return s.notFound(workflowID)
	}
	if err := wf.AddCard(card); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.persistWorkflows(ctx)
	s.publish(events.NewWorkflowsChanged(workflowID))
	return nil
}

// RemoveModelCard drops a card and every connection touching it.
func (s *Service) RemoveModelCard(ctx context.Context, workflowID, cardID string) error {
	s.mu.Lock()
	wf := s.find(workflowID)
	if wf == nil {
		s.mu.Unlock()
		return s.notFound(workflowID)
	}
	removed := wf.RemoveCard(cardID)
	s.mu.Unlock()

	if !removed {
		return core.ErrNotFound("model card", cardID)
	}
	s.persistWorkflows(ctx)
	s.publish(events.NewWorkflowsChanged(workflowID))
	return nil
}

// ValidateConnection checks whether the edge sourceID→targetID of the given
// kind would be admitted. It reports a human-readable reason on rejection
// and never returns an error: invalid input is a false, not a failure.
func (s *Service) ValidateConnection(workflowID, sourceID, targetID string, kind core.ConnectionKind) (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf := s.find(workflowID)
	if wf == nil {
		return false, "workflow not found"
	}
	return validateConnection(wf, sourceID, targetID, kind)
}

// validateConnection applies the admission rules in order, short-circuiting
// on the first failure. Callers hold the service lock.
func validateConnection(wf *core.Workflow, sourceID, targetID string, kind core.ConnectionKind) (bool, string) {
	if !wf.HasCard(sourceID) {
		return false, "source model card is not part of the workflow"
	}
	if !wf.HasCard(targetID) {
		return false, "target model card is not part of the workflow"
	}
	if wf.HasConnection(sourceID, targetID) {
		return false, "a connection between these cards already exists"
	}
	if engine.WouldCreateCycle(wf.Connections, sourceID, targetID) {
		return false, "connection would create a cycle"
	}
	if kind != core.KindModelToModel {
		if kind.Known() {
			return false, "connection kind " + string(kind) + " is not supported"
		}
		return false, "unknown connection kind " + string(kind)
	}
	return true, ""
}

// AddConnection validates and inserts a connection. A rejected connection
// is a logged no-op returning (nil, nil); only a missing workflow is an
// error.
func (s *Service) AddConnection(ctx context.Context, workflowID, sourceID, targetID string, kind core.ConnectionKind) (*core.Connection, error) {
	s.mu.Lock()
	wf := s.find(workflowID)
	if wf == nil {
		s.mu.Unlock()
		return nil, s.notFound(workflowID)
	}

	ok, reason := validateConnection(wf, sourceID, targetID, kind)
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("connection rejected",
			"workflow_id", workflowID,
			"source_id", sourceID,
			"target_id", targetID,
			"kind", string(kind),
			"reason", reason)
		return nil, nil
	}

	conn := core.Connection{
		ID:       uuid.NewString(),
		SourceID: sourceID,
		TargetID: targetID,
		Kind:     kind,
	}
	wf.Connections = append(wf.Connections, conn)
	wf.Touch()
	s.mu.Unlock()

	s.persistWorkflows(ctx)
	s.publish(events.NewWorkflowsChanged(workflowID))
	return &conn, nil
}

// RemoveConnection removes a connection by id. Removing an id that does not
// exist is a no-op.
func (s *Service) RemoveConnection(ctx context.Context, workflowID, connectionID string) error {
	s.mu.Lock()
	wf := s.find(workflowID)
	if wf == nil {
		s.mu.Unlock()
		return s.notFound(workflowID)
	}
	removed := wf.RemoveConnection(connectionID)
	s.mu.Unlock()

	if !removed {
		return nil
	}
	s.persistWorkflows(ctx)
	s.publish(events.NewWorkflowsChanged(workflowID))
	return nil
}

// History returns the retained runs, most recent first.
func (s *Service) History() []core.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.RunResult(nil), s.history...)
}

// CurrentRun returns the most recently completed run, or nil before the
// first run of the session.
func (s *Service) CurrentRun() *core.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	out := *s.current
	out.Steps = append([]core.StepResult(nil), s.current.Steps...)
	return &out
}

// IntermediateResults returns the step list of the most recent run, or an
// empty slice before the first run.
func (s *Service) IntermediateResults() []core.StepResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return []core.StepResult{}
	}
	return append([]core.StepResult(nil), s.current.Steps...)
}

// IsExecuting reports whether a run is currently in flight.
func (s *Service) IsExecuting() bool {
	return s.executing.Load()
}

func (s *Service) find(id string) *core.Workflow {
	for _, wf := range s.workflows {
		if wf.ID == id {
			return wf
		}
	}
	return nil
}

func (s *Service) notFound(id string) *core.DomainError {
	err := core.ErrNotFound("workflow", id)
	err.Code = core.CodeWorkflowNotFound
	return err
}

func (s *Service) publish(event events.Event) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}
