package model

import (
	"time"

	"github.com/nvidia-isaac/mission-dispatch/shared"
)

// MissionNodeKind is the tag of the MissionNode algebraic variant (§3,
// design note 9: "re-architect as an algebraic variant with seven cases").
// The original_source (packages/objects/mission.py) only models five kinds
// (selector, sequence, route, action, constant); move and notify are this
// spec's additions, carried here as ordinary variants of the same union.
type MissionNodeKind string

const (
	NodeKindRoute    MissionNodeKind = "route"
	NodeKindMove     MissionNodeKind = "move"
	NodeKindAction   MissionNodeKind = "action"
	NodeKindNotify   MissionNodeKind = "notify"
	NodeKindSelector MissionNodeKind = "selector"
	NodeKindSequence MissionNodeKind = "sequence"
	NodeKindConstant MissionNodeKind = "constant"
)

// RootNodeName is the reserved implicit root, always a sequence (§3).
const RootNodeName = "root"

// RouteNode: robot traverses the waypoint list (§3 leaf-node semantics).
type RouteNode struct {
	Waypoints []Pose2D `json:"waypoints"`
}

// MoveNode moves the robot straight ahead by Distance or rotates it in place
// by Rotation. Exactly one of the two must be set (§3 invariant 5).
type MoveNode struct {
	Distance *float64 `json:"distance,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
}

// ActionNode dispatches a vendor action to the robot (§3, §6's
// vendor-specific actionType strings).
type ActionNode struct {
	ActionType   string                 `json:"action_type"`
	ActionParams map[string]interface{} `json:"action_parameters"`
}

// NotifyNode is executed entirely server-side: an HTTP POST with bounded
// retries (§4.3), no robot interaction.
type NotifyNode struct {
	URL     string                 `json:"url"`
	JSON    map[string]interface{} `json:"json"`
	Timeout time.Duration          `json:"timeout"`
}

// ConstantNode resolves immediately, useful as a branch terminator (§3).
type ConstantNode struct {
	Success bool `json:"success"`
}

// MissionNode is the tagged union over the seven leaf/control kinds.
// Exactly one of the kind-fields is non-nil (§3 invariant 4); Name/Parent are
// the common fields shared across every variant.
type MissionNode struct {
	Name   string `json:"name"`
	Parent string `json:"parent"`

	Route    *RouteNode    `json:"route,omitempty"`
	Move     *MoveNode     `json:"move,omitempty"`
	Action   *ActionNode   `json:"action,omitempty"`
	Notify   *NotifyNode   `json:"notify,omitempty"`
	Selector *struct{}     `json:"selector,omitempty"`
	Sequence *struct{}     `json:"sequence,omitempty"`
	Constant *ConstantNode `json:"constant,omitempty"`
}

// Kind returns the single set variant, or "" if the node is malformed (the
// constructor validates this eagerly so Kind is infallible afterward).
func (n *MissionNode) Kind() MissionNodeKind {
	switch {
	case n.Route != nil:
		return NodeKindRoute
	case n.Move != nil:
		return NodeKindMove
	case n.Action != nil:
		return NodeKindAction
	case n.Notify != nil:
		return NodeKindNotify
	case n.Selector != nil:
		return NodeKindSelector
	case n.Sequence != nil:
		return NodeKindSequence
	case n.Constant != nil:
		return NodeKindConstant
	default:
		return ""
	}
}

// IsControl reports whether the node is a selector/sequence composite rather
// than a leaf.
func (n *MissionNode) IsControl() bool {
	k := n.Kind()
	return k == NodeKindSelector || k == NodeKindSequence
}

// validateKind enforces §3 invariant 4 (exactly one kind set) and invariants
// 5/6 (move has exactly one of distance/rotation; route has >=1 waypoint).
func (n *MissionNode) validateKind() error {
	set := 0
	if n.Route != nil {
		set++
	}
	if n.Move != nil {
		set++
	}
	if n.Action != nil {
		set++
	}
	if n.Notify != nil {
		set++
	}
	if n.Selector != nil {
		set++
	}
	if n.Sequence != nil {
		set++
	}
	if n.Constant != nil {
		set++
	}
	if set != 1 {
		return shared.NewUsageError("mission node %q must set exactly one of "+
			"{route, move, action, notify, selector, sequence, constant}, got %d", n.Name, set)
	}
	if n.Route != nil && len(n.Route.Waypoints) < 1 {
		return shared.NewUsageError("route node %q must have at least one waypoint", n.Name)
	}
	if n.Move != nil {
		hasDistance := n.Move.Distance != nil
		hasRotation := n.Move.Rotation != nil
		if hasDistance == hasRotation {
			return shared.NewUsageError("move node %q must set exactly one of distance or rotation", n.Name)
		}
	}
	return nil
}
