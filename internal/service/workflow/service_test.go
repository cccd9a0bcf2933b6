package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelops/cardflow/internal/core"
	"github.com/modelops/cardflow/internal/logging"
)

// memStore is an in-memory core.Store for tests.
type memStore struct {
	mu      sync.Mutex
	items   map[string]json.RawMessage
	failSet bool
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]json.RawMessage)}
}

func (m *memStore) GetItem(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memStore) SetItem(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSet {
		return errors.New("disk full")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

// upperLLM echoes its prompt uppercased, with fixed token counts.
func upperLLM() core.LLMClientFunc {
	return func(_ context.Context, req core.LLMRequest) (*core.LLMResponse, error) {
		return &core.LLMResponse{
			Content: strings.ToUpper(req.Prompt),
			Usage:   core.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}, nil
	}
}

func testCard(id, name, systemPrompt string) core.ModelCard {
	return core.ModelCard{
		ID:           id,
		Name:         name,
		SystemPrompt: systemPrompt,
		Provider:     "openai",
		Model:        "gpt-4o",
	}
}

func newTestService(t *testing.T, store *memStore, llm core.LLMClient) *Service {
	t.Helper()
	if store == nil {
		store = newMemStore()
	}
	if llm == nil {
		llm = upperLLM()
	}
	s := NewService(store, llm, nil, logging.NewNop())
	require.NoError(t, s.Load(context.Background()))
	return s
}

// chainWorkflow builds a workflow with cards a, b, c connected a→b→c.
func chainWorkflow(t *testing.T, s *Service) *core.Workflow {
	t.Helper()
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "chain", "linear three-card chain")
	require.NoError(t, err)

	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("a", "Alpha", "sysA")))
	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("b", "Beta", "sysB")))
	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("c", "Gamma", "sysC")))

	conn, err := s.AddConnection(ctx, wf.ID, "a", "b", core.KindModelToModel)
	require.NoError(t, err)
	require.NotNil(t, conn)
	conn, err = s.AddConnection(ctx, wf.ID, "b", "c", core.KindModelToModel)
	require.NoError(t, err)
	require.NotNil(t, conn)

	return wf
}

func TestCreateAndGetWorkflow(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "summarize", "two-stage summarizer")
	require.NoError(t, err)
	assert.NotEmpty(t, wf.ID)
	assert.Equal(t, "summarize", wf.Name)
	assert.False(t, wf.CreatedAt.IsZero())

	got, err := s.GetWorkflow(wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.ID, got.ID)

	_, err = s.GetWorkflow("nope")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestGetWorkflowReturnsCopy(t *testing.T) {
	s := newTestService(t, nil, nil)
	wf, err := s.CreateWorkflow(context.Background(), "w", "")
	require.NoError(t, err)

	got, err := s.GetWorkflow(wf.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := s.GetWorkflow(wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "w", again.Name)
}

func TestUpdateWorkflow(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "old", "")
	require.NoError(t, err)
	before := wf.UpdatedAt

	updated, err := s.UpdateWorkflow(ctx, wf.ID, "new", "renamed")
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Name)
	assert.Equal(t, "renamed", updated.Description)
	assert.False(t, updated.UpdatedAt.Before(before))

	_, err = s.UpdateWorkflow(ctx, wf.ID, "", "")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))

	_, err = s.UpdateWorkflow(ctx, "nope", "x", "")
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestDeleteWorkflow(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "doomed", "")
	require.NoError(t, err)
	require.NoError(t, s.DeleteWorkflow(ctx, wf.ID))

	_, err = s.GetWorkflow(wf.ID)
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))

	err = s.DeleteWorkflow(ctx, wf.ID)
	assert.True(t, core.IsCategory(err, core.ErrCatNotFound))
}

func TestAddModelCardDuplicate(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "w", "")
	require.NoError(t, err)

	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("a", "Alpha", "")))
	err = s.AddModelCard(ctx, wf.ID, testCard("a", "Alpha again", ""))
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
}

func TestRemoveModelCardDropsConnections(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()
	wf := chainWorkflow(t, s)

	require.NoError(t, s.RemoveModelCard(ctx, wf.ID, "b"))

	got, err := s.GetWorkflow(wf.ID)
	require.NoError(t, err)
	assert.Len(t, got.Cards, 2)
	assert.Empty(t, got.Connections, "connections touching the removed card must go with it")
}

func TestValidateConnectionRules(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "w", "")
	require.NoError(t, err)
	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("a", "Alpha", "")))
	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("b", "Beta", "")))

	ok, reason := s.ValidateConnection(wf.ID, "a", "b", core.KindModelToModel)
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = s.ValidateConnection(wf.ID, "missing", "b", core.KindModelToModel)
	assert.False(t, ok)
	assert.Contains(t, reason, "source")

	ok, reason = s.ValidateConnection(wf.ID, "a", "missing", core.KindModelToModel)
	assert.False(t, ok)
	assert.Contains(t, reason, "target")

	// Recognized but unsupported kinds are always rejected.
	ok, reason = s.ValidateConnection(wf.ID, "a", "b", core.KindInputToModel)
	assert.False(t, ok)
	assert.Contains(t, reason, "not supported")

	ok, reason = s.ValidateConnection(wf.ID, "a", "b", core.ConnectionKind("bogus"))
	assert.False(t, ok)
	assert.Contains(t, reason, "unknown")

	ok, reason = s.ValidateConnection("nope", "a", "b", core.KindModelToModel)
	assert.False(t, ok)
	assert.Contains(t, reason, "workflow")
}

func TestAddConnectionDuplicateIsNoOp(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "w", "")
	require.NoError(t, err)
	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("a", "Alpha", "")))
	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("b", "Beta", "")))

	first, err := s.AddConnection(ctx, wf.ID, "a", "b", core.KindModelToModel)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.AddConnection(ctx, wf.ID, "a", "b", core.KindModelToModel)
	require.NoError(t, err)
	assert.Nil(t, second, "duplicate connection must be a no-op, not an error")

	got, err := s.GetWorkflow(wf.ID)
	require.NoError(t, err)
	assert.Len(t, got.Connections, 1)
}

func TestAddConnectionRejectsCycles(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()
	wf := chainWorkflow(t, s)

	// c→a would close the loop a→b→c→a.
	conn, err := s.AddConnection(ctx, wf.ID, "c", "a", core.KindModelToModel)
	require.NoError(t, err)
	assert.Nil(t, conn)

	// Self edges are cycles of length one.
	ok, reason := s.ValidateConnection(wf.ID, "a", "a", core.KindModelToModel)
	assert.False(t, ok)
	assert.Contains(t, reason, "cycle")

	got, err := s.GetWorkflow(wf.ID)
	require.NoError(t, err)
	assert.Len(t, got.Connections, 2)
}

func TestRemoveConnection(t *testing.T) {
	s := newTestService(t, nil, nil)
	ctx := context.Background()

	wf, err := s.CreateWorkflow(ctx, "w", "")
	require.NoError(t, err)
	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("a", "Alpha", "")))
	require.NoError(t, s.AddModelCard(ctx, wf.ID, testCard("b", "Beta", "")))

	conn, err := s.AddConnection(ctx, wf.ID, "a", "b", core.KindModelToModel)
	require.NoError(t, err)
	require.NotNil(t, conn)

	require.NoError(t, s.RemoveConnection(ctx, wf.ID, conn.ID))
	got, err := s.GetWorkflow(wf.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Connections)

	// Removing an unknown connection id is a no-op.
	assert.NoError(t, s.RemoveConnection(ctx, wf.ID, "ghost"))
}

func TestPersistFailureDoesNotRollBack(t *testing.T) {
	store := newMemStore()
	s := newTestService(t, store, nil)
	store.failSet = true

	wf, err := s.CreateWorkflow(context.Background(), "unsaved", "")
	require.NoError(t, err, "a failed save must not fail the mutation")

	got, err := s.GetWorkflow(wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "unsaved", got.Name)
}

func TestLoadRoundTrip(t *testing.T) {
	store := newMemStore()
	s := newTestService(t, store, nil)
	wf := chainWorkflow(t, s)

	reloaded := newTestService(t, store, nil)
	got, err := reloaded.GetWorkflow(wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "chain", got.Name)
	assert.Len(t, got.Cards, 3)
	assert.Len(t, got.Connections, 2)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestLoadRehydratesBadDates(t *testing.T) {
	store := newMemStore()
	store.items[core.StoreKeyWorkflows] = json.RawMessage(`[{
		"id": "wf-1",
		"name": "legacy",
		"cards": [],
		"connections": [],
		"created_at": "not-a-date",
		"updated_at": ""
	}]`)

	s := newTestService(t, store, nil)
	got, err := s.GetWorkflow("wf-1")
	require.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero(), "unparseable dates are replaced with now")
	assert.False(t, got.UpdatedAt.IsZero())
}
