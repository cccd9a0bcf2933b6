package core

// ConnectionKind tags the role of a directed edge between two model cards.
type ConnectionKind string

const (
	// KindModelToModel pipes one card's output into the next card's prompt.
	// This is the only kind admitted by validation.
	KindModelToModel ConnectionKind = "model-to-model"
	// KindInputToModel and KindModelToOutput are recognized tags but are
	// rejected by validation; the execution paths behind them do not exist.
	KindInputToModel  ConnectionKind = "input-to-model"
	KindModelToOutput ConnectionKind = "model-to-output"
)

// Known reports whether the kind is one of the recognized tags.
func (k ConnectionKind) Known() bool {
	switch k {
	case KindModelToModel, KindInputToModel, KindModelToOutput:
		return true
	}
	return false
}

// Connection is a directed edge between two model cards within a workflow.
type Connection struct {
	ID       string         `json:"id"`
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	Kind     ConnectionKind `json:"kind"`
}
