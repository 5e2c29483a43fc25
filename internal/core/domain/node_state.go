package domain

import "time"

// NodeStatus is the execution state of a build graph node.
type NodeStatus string

const (
	// StatusPending indicates the node is waiting for its dependencies.
	StatusPending NodeStatus = "pending"
	// StatusRunning indicates the node's phases are executing.
	StatusRunning NodeStatus = "running"
	// StatusSucceeded indicates every phase of the node succeeded.
	StatusSucceeded NodeStatus = "succeeded"
	// StatusFailed indicates a phase of the node failed.
	StatusFailed NodeStatus = "failed"
	// StatusSkipped indicates the node never started.
	StatusSkipped NodeStatus = "skipped"
)

// Terminal reports whether no further transition is possible.
func (s NodeStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// CanTransition reports whether the state machine allows moving from s to next.
func (s NodeStatus) CanTransition(next NodeStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusSkipped
	case StatusRunning:
		return next == StatusSucceeded || next == StatusFailed
	default:
		return false
	}
}

// BuildState is the persisted resume state of one build node.
type BuildState struct {
	Node           string     `json:"node,omitzero"`
	DefinitionHash string     `json:"definition_hash,omitzero"`
	LastPhase      int        `json:"last_phase"`
	Status         NodeStatus `json:"status,omitzero"`
	Timestamp      time.Time  `json:"timestamp,omitzero"`
}

// NoPhase is the LastPhase value of a node that has not completed any phase.
const NoPhase = -1
