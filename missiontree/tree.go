package missiontree

import (
	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
)

// activeChildHolder is satisfied by sequenceNode/selectorNode via the
// promoted compositeNode.activeChild method; used by Tip's descent.
type activeChildHolder interface {
	activeChild() (Node, bool)
}

func (c *compositeNode) activeChild() (Node, bool) {
	if c.current < len(c.children) {
		return c.children[c.current], true
	}
	return nil, false
}

// Tree is one mission's constructed behavior tree, tightly coupled to the
// Mission it was built from: leaves read (and constant leaves write)
// directly into mission.Status.NodeStatus, matching original_source's
// MissionBehaviorTree, which holds a reference to the mission object rather
// than an independent copy of node state.
type Tree struct {
	root        *sequenceNode
	nodesByName map[string]Node
	controlNames []string // composite node names, for post-tick write-back
	mission     *model.Mission
}

// Build constructs the tree from mission.Spec.MissionTree, attaching each
// node under its named parent in list order (§4.2). Construction fails
// cleanly — returning an error rather than a partially built tree — if a
// parent name is missing; model.NewMission already guarantees parents
// appear earlier in the list, so this only fires if the tree was mutated
// after validation.
func Build(mission *model.Mission) (*Tree, error) {
	root := newSequence(model.RootNodeName)
	nodesByName := map[string]Node{model.RootNodeName: root}
	if _, ok := mission.Status.NodeStatus[model.RootNodeName]; !ok {
		mission.Status.NodeStatus[model.RootNodeName] = &model.MissionNodeStatus{State: model.MissionPending}
	}

	var controlNames []string

	for i := range mission.Spec.MissionTree {
		mn := &mission.Spec.MissionTree[i]
		parent, ok := nodesByName[mn.Parent]
		if !ok {
			return nil, shared.NewUsageError("mission %q: parent %q does not exist for node %q", mission.Name, mn.Parent, mn.Name)
		}

		status, ok := mission.Status.NodeStatus[mn.Name]
		if !ok {
			status = &model.MissionNodeStatus{State: model.MissionPending}
			mission.Status.NodeStatus[mn.Name] = status
		}

		var child Node
		switch mn.Kind() {
		case model.NodeKindSelector:
			child = newSelector(mn.Name)
			controlNames = append(controlNames, mn.Name)
		case model.NodeKindSequence:
			child = newSequence(mn.Name)
			controlNames = append(controlNames, mn.Name)
		default: // route, move, action, notify, constant
			child = newLeaf(mn, status)
		}

		holder, ok := parent.(activeChildHolder)
		if !ok {
			return nil, shared.NewServerError(nil, "mission %q: parent %q is not a composite node", mission.Name, mn.Parent)
		}
		appendChild(holder, child)
		nodesByName[mn.Name] = child
	}

	return &Tree{root: root, nodesByName: nodesByName, controlNames: controlNames, mission: mission}, nil
}

// appendChild mutates the concrete composite's children slice. A small type
// switch rather than an interface method, since Go methods can't add to a
// slice field through an interface without the field itself being exposed.
func appendChild(holder activeChildHolder, child Node) {
	switch p := holder.(type) {
	case *sequenceNode:
		p.children = append(p.children, child)
	case *selectorNode:
		p.children = append(p.children, child)
	}
}

// Tick evaluates the tree from the root and folds the resulting composite
// states back into the mission's node_status (§4.2's tick contract; mirrors
// original_source's post_tick, which writes tree2mission_state into
// node_status for every non-leaf, non-root node).
func (t *Tree) Tick() NodeState {
	state := t.root.Tick()
	for _, name := range t.controlNames {
		node := t.nodesByName[name]
		t.mission.Status.NodeStatus[name].State = treeStateToMissionState(node.State())
	}
	return state
}

// State returns the root's most recently computed state without ticking.
func (t *Tree) State() NodeState { return t.root.State() }

// Tip returns the deepest currently-RUNNING leaf (§4.2), or nil if the tree
// has not been ticked, or is terminal.
func (t *Tree) Tip() Node {
	var cur Node = t.root
	for {
		if cur.isLeaf() {
			if cur.State() == Running {
				return cur
			}
			return nil
		}
		if cur.State() != Running {
			return nil
		}
		holder, ok := cur.(activeChildHolder)
		if !ok {
			return nil
		}
		child, ok := holder.activeChild()
		if !ok {
			return nil
		}
		cur = child
	}
}

// Node looks up a built tree node by mission-node name.
func (t *Tree) Node(name string) (Node, bool) {
	n, ok := t.nodesByName[name]
	return n, ok
}

// treeStateToMissionState is the mission-level mapping from §4.2:
// SUCCESS->COMPLETED, FAILURE->FAILED, RUNNING->RUNNING, INVALID->PENDING.
func treeStateToMissionState(s NodeState) model.MissionState {
	switch s {
	case Success:
		return model.MissionCompleted
	case Failure:
		return model.MissionFailed
	case Running:
		return model.MissionRunning
	default:
		return model.MissionPending
	}
}
