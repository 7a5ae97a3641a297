package missiontree

import "github.com/nvidia-isaac/mission-dispatch/model"

// leafNode wraps one route/move/action/notify/constant MissionNode. Its
// state is read from (and, for constant, written to) the owning Mission's
// node_status entry — mirroring original_source's MissionLeafNode, which
// reads self.mission.status.node_status[name].state rather than holding its
// own independent state.
type leafNode struct {
	node   *model.MissionNode
	status *model.MissionNodeStatus
}

func newLeaf(node *model.MissionNode, status *model.MissionNodeStatus) *leafNode {
	return &leafNode{node: node, status: status}
}

func (l *leafNode) Name() string { return l.node.Name }
func (l *leafNode) isLeaf() bool { return true }

// MissionNode exposes the underlying domain node, so the agent can build a
// VDA5050 order from whichever leaf is the current tip.
func (l *leafNode) MissionNode() *model.MissionNode { return l.node }

// LeafNode is the public view of a tree leaf; Tree.Tip() returns a Node, and
// callers that need the wrapped MissionNode type-assert to this.
type LeafNode interface {
	Node
	MissionNode() *model.MissionNode
}

// Tick evaluates a leaf. Route/move/action/notify leaves are driven
// externally (VDA5050 feedback or the agent's notify HTTP call writing into
// node_status); a constant leaf resolves itself immediately on first tick
// (§3: "resolves immediately to SUCCESS or FAILURE").
func (l *leafNode) Tick() NodeState {
	if l.node.Kind() == model.NodeKindConstant && l.status.State == model.MissionPending {
		if l.node.Constant.Success {
			l.status.State = model.MissionCompleted
		} else {
			l.status.State = model.MissionFailed
		}
	}
	return l.State()
}

// State maps the owning mission-node status to a tree NodeState, with the
// PENDING->RUNNING exception from §4.2 ("so the tree does not collapse
// before the first feedback arrives").
func (l *leafNode) State() NodeState {
	switch l.status.State {
	case model.MissionCompleted:
		return Success
	case model.MissionFailed, model.MissionCanceled:
		return Failure
	case model.MissionRunning:
		return Running
	case model.MissionPending:
		return Running
	default:
		return Invalid
	}
}
