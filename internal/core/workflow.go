package core

import "time"

// Workflow is an ordered collection of model card snapshots plus the
// directed connections among them. It is executed as a single linear chain.
type Workflow struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Cards       []ModelCard  `json:"cards"`
	Connections []Connection `json:"connections"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewWorkflow creates an empty workflow.
func NewWorkflow(id, name, description string) *Workflow {
	now := time.Now()
	return &Workflow{
		ID:          id,
		Name:        name,
		Description: description,
		Cards:       make([]ModelCard, 0),
		Connections: make([]Connection, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// FindCard returns the card snapshot with the given id.
func (w *Workflow) FindCard(id string) (ModelCard, bool) {
	for _, c := range w.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return ModelCard{}, false
}

// HasCard reports whether a card with the given id is part of the workflow.
func (w *Workflow) HasCard(id string) bool {
	_, ok := w.FindCard(id)
	return ok
}

// HasConnection reports whether a connection with the same (source, target)
// pair already exists, regardless of kind.
func (w *Workflow) HasConnection(sourceID, targetID string) bool {
	for _, c := range w.Connections {
		if c.SourceID == sourceID && c.TargetID == targetID {
			return true
		}
	}
	return false
}

// AddCard appends a snapshot of the card to the workflow.
func (w *Workflow) AddCard(card ModelCard) error {
	if err := card.Validate(); err != nil {
		return err
	}
	if w.HasCard(card.ID) {
		return ErrValidation("CARD_DUPLICATE", "model card "+card.ID+" already in workflow")
	}
	w.Cards = append(w.Cards, card.Clone())
	w.Touch()
	return nil
}

// RemoveCard removes the card and every connection touching it.
func (w *Workflow) RemoveCard(id string) bool {
	idx := -1
	for i, c := range w.Cards {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	w.Cards = append(w.Cards[:idx], w.Cards[idx+1:]...)

	kept := w.Connections[:0]
	for _, conn := range w.Connections {
		if conn.SourceID != id && conn.TargetID != id {
			kept = append(kept, conn)
		}
	}
	w.Connections = kept
	w.Touch()
	return true
}

// RemoveConnection removes a connection by id.
func (w *Workflow) RemoveConnection(id string) bool {
	for i, c := range w.Connections {
		if c.ID == id {
			w.Connections = append(w.Connections[:i], w.Connections[i+1:]...)
			w.Touch()
			return true
		}
	}
	return false
}

// CardIDs returns the card ids in declaration order.
func (w *Workflow) CardIDs() []string {
	ids := make([]string, len(w.Cards))
	for i, c := range w.Cards {
		ids[i] = c.ID
	}
	return ids
}

// Touch bumps the modification timestamp.
func (w *Workflow) Touch() {
	w.UpdatedAt = time.Now()
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	out := *w
	out.Cards = make([]ModelCard, len(w.Cards))
	for i, c := range w.Cards {
		out.Cards[i] = c.Clone()
	}
	out.Connections = append([]Connection(nil), w.Connections...)
	return &out
}

// Validate checks workflow invariants: non-empty identity and every
// connection endpoint referencing a card present in the workflow.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return ErrValidation("WORKFLOW_ID_REQUIRED", "workflow ID cannot be empty")
	}
	if w.Name == "" {
		return ErrValidation("WORKFLOW_NAME_REQUIRED", "workflow name cannot be empty")
	}
	for _, conn := range w.Connections {
		if !w.HasCard(conn.SourceID) {
			return ErrValidation("CONNECTION_SOURCE_MISSING", "connection "+conn.ID+" references missing source "+conn.SourceID)
		}
		if !w.HasCard(conn.TargetID) {
			return ErrValidation("CONNECTION_TARGET_MISSING", "connection "+conn.ID+" references missing target "+conn.TargetID)
		}
	}
	return nil
}
