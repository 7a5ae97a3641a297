// Package missiontree implements C2: the behavior-tree interpreter that
// walks a mission tree, exposes the current tip leaf, and folds leaf states
// upward into control-node states. Grounded on
// original_source/packages/controllers/mission/behavior_tree.py, which
// wraps the py_trees library; this rewrite expresses the same
// tip/tick/fold contract as a small hand-rolled tree since no Go behavior-
// tree library appears anywhere in the example pack.
package missiontree

// NodeState is the per-node status set from §4.2.
type NodeState string

const (
	Invalid NodeState = "INVALID"
	Running NodeState = "RUNNING"
	Success NodeState = "SUCCESS"
	Failure NodeState = "FAILURE"
)

// Node is the common interface every tree element satisfies: leaves and
// composites alike.
type Node interface {
	Name() string
	// Tick evaluates this node (and, for composites, its active subtree) and
	// returns its resulting state for this tick.
	Tick() NodeState
	// State returns the state computed by the most recent Tick, without
	// re-evaluating.
	State() NodeState
	// isLeaf distinguishes leaves from composites for Tip()'s deepest-leaf
	// search; unexported since only this package's Tip() needs it.
	isLeaf() bool
}
