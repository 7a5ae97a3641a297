package vda5050

import (
	"fmt"
	"math"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
)

// nodeID follows §4.1's "{mission}-n{i}-s{seq}" convention. Per design note
// 9, any other form (e.g. the legacy "{mission}-s0-n0") is rejected as
// legacy by leafIndexFromReference, not emitted here.
func nodeID(mission string, leafIndex, seq int) string {
	return fmt.Sprintf("%s-n%d-s%d", mission, leafIndex, seq)
}

func edgeID(mission string, seq int) string {
	return fmt.Sprintf("%s-e%d", mission, seq)
}

// OrderID is the stable identifier for the order covering one leaf,
// "{mission}-n{i}" (§4.1).
func OrderID(mission string, leafIndex int) string {
	return fmt.Sprintf("%s-n%d", mission, leafIndex)
}

// AgentIdentity carries the fields the wire protocol needs to stamp on every
// outbound message but which the codec itself has no opinion about.
type AgentIdentity struct {
	Manufacturer string
	SerialNumber string
}

// BuildOrder assembles the Order for the leaf at leafIndex, per §4.1. Every
// order begins with a seed node at sequence 0 located at currentPose, to
// anchor the robot's acknowledged position.
func BuildOrder(mission string, leafIndex int, leaf *model.MissionNode, currentPose model.Pose2D,
	identity AgentIdentity, headerID int) (*Order, error) {

	seed := Node{
		NodeID:     nodeID(mission, leafIndex, 0),
		SequenceID: 0,
		Released:   true,
		NodePosition: &NodePosition{
			X: currentPose.X, Y: currentPose.Y, Theta: currentPose.Theta, MapID: currentPose.MapID,
		},
	}

	order := &Order{
		HeaderID:      headerID,
		Version:       Version,
		Manufacturer:  identity.Manufacturer,
		SerialNumber:  identity.SerialNumber,
		OrderID:       OrderID(mission, leafIndex),
		OrderUpdateID: 0,
	}

	switch leaf.Kind() {
	case model.NodeKindRoute:
		order.Nodes = append(order.Nodes, seed)
		prevNodeID := seed.NodeID
		for i, wp := range leaf.Route.Waypoints {
			seq := 2 * (i + 1)
			n := Node{
				NodeID:     nodeID(mission, leafIndex, seq),
				SequenceID: seq,
				Released:   true,
				NodePosition: &NodePosition{
					X: wp.X, Y: wp.Y, Theta: wp.Theta, MapID: wp.MapID,
				},
			}
			order.Nodes = append(order.Nodes, n)
			e := Edge{
				EdgeID:      edgeID(mission, seq-1),
				SequenceID:  seq - 1,
				Released:    true,
				StartNodeID: prevNodeID,
				EndNodeID:   n.NodeID,
			}
			order.Edges = append(order.Edges, e)
			prevNodeID = n.NodeID
		}

	case model.NodeKindMove:
		target := currentPose
		switch {
		case leaf.Move.Distance != nil:
			d := *leaf.Move.Distance
			target.X = currentPose.X + d*math.Cos(currentPose.Theta)
			target.Y = currentPose.Y + d*math.Sin(currentPose.Theta)
		case leaf.Move.Rotation != nil:
			target.Theta = currentPose.Theta + *leaf.Move.Rotation
		default:
			return nil, shared.NewServerError(nil, "move node %q has neither distance nor rotation set", leaf.Name)
		}
		order.Nodes = append(order.Nodes, seed)
		targetNode := Node{
			NodeID:     nodeID(mission, leafIndex, 2),
			SequenceID: 2,
			Released:   true,
			NodePosition: &NodePosition{
				X: target.X, Y: target.Y, Theta: target.Theta, MapID: target.MapID,
			},
		}
		order.Nodes = append(order.Nodes, targetNode)
		order.Edges = append(order.Edges, Edge{
			EdgeID:      edgeID(mission, 1),
			SequenceID:  1,
			Released:    true,
			StartNodeID: seed.NodeID,
			EndNodeID:   targetNode.NodeID,
		})

	case model.NodeKindAction:
		seed.Actions = []Action{{
			ActionType:       leaf.Action.ActionType,
			ActionID:         nodeID(mission, leafIndex, 0),
			BlockingType:     BlockingHard,
			ActionParameters: leaf.Action.ActionParams,
		}}
		order.Nodes = append(order.Nodes, seed)

	default:
		return nil, shared.NewServerError(nil, "leaf kind %q does not map to a VDA5050 order", leaf.Kind())
	}

	return order, nil
}
