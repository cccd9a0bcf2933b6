// Package engine determines workflow execution order and guards the
// connection graph against cycles.
package engine

import (
	"log/slog"

	"github.com/modelops/cardflow/internal/core"
)

// adjacency builds a source→targets index over model-to-model connections.
// Built once per call; validation operates on small per-workflow graphs.
func adjacency(conns []core.Connection) map[string][]string {
	out := make(map[string][]string, len(conns))
	for _, c := range conns {
		if c.Kind != core.KindModelToModel {
			continue
		}
		out[c.SourceID] = append(out[c.SourceID], c.TargetID)
	}
	return out
}

// WouldCreateCycle reports whether adding the edge sourceID→targetID to the
// existing connection set would close a cycle. The prospective edge itself is
// not part of conns: the check walks forward from targetID and looks for a
// path back to sourceID.
func WouldCreateCycle(conns []core.Connection, sourceID, targetID string) bool {
	if sourceID == targetID {
		return true
	}

	adj := adjacency(conns)
	visited := map[string]bool{targetID: true}
	queue := []string{targetID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range adj[current] {
			if next == sourceID {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	return false
}

// ExecutionOrder returns the model card ids in the order they should run.
//
// A workflow with no connections is still executable: cards run sequentially
// in declaration order. Otherwise the order is a Kahn's-algorithm topological
// sort over model-to-model connections, tie-broken by insertion order of
// discovery. If the sort does not cover every card (a cycle survived
// validation, or a component carries unresolvable in-degrees), the computed
// order is discarded and declaration order is used instead; the fallback is
// logged loudly but never surfaced as an error.
func ExecutionOrder(wf *core.Workflow, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}

	declared := wf.CardIDs()

	hasEdges := false
	for _, c := range wf.Connections {
		if c.Kind == core.KindModelToModel {
			hasEdges = true
			break
		}
	}
	if !hasEdges {
		return declared
	}

	adj := adjacency(wf.Connections)

	inDegree := make(map[string]int, len(declared))
	for _, id := range declared {
		inDegree[id] = 0
	}
	for _, targets := range adj {
		for _, t := range targets {
			if _, ok := inDegree[t]; ok {
				inDegree[t]++
			}
		}
	}

	// Seed with zero-in-degree nodes in declaration order so ties are
	// deterministic.
	queue := make([]string, 0, len(declared))
	for _, id := range declared {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(declared))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, next := range adj[current] {
			if _, ok := inDegree[next]; !ok {
				continue // edge to a card no longer in the workflow
			}
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(declared) {
		logger.Error("execution order incomplete, falling back to declaration order",
			"workflow_id", wf.ID,
			"resolved", len(order),
			"cards", len(declared),
		)
		return declared
	}

	return order
}
