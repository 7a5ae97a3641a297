package vda5050

import (
	"testing"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/stretchr/testify/require"
)

func TestParseStateRouteCompletion(t *testing.T) {
	leaf := &model.MissionNode{Name: "0", Route: &model.RouteNode{Waypoints: []model.Pose2D{{X: 1}, {X: 2}, {X: 3}}}}
	state := &State{LastNodeSequenceID: 6} // current_order_node_id = 8 = 2*3+2
	parsed := ParseState(state, leaf, 3)
	require.Equal(t, LeafOutcomeCompleted, parsed.LeafOutcome)
}

func TestParseStateRouteNotYetComplete(t *testing.T) {
	leaf := &model.MissionNode{Name: "0", Route: &model.RouteNode{Waypoints: []model.Pose2D{{X: 1}, {X: 2}, {X: 3}}}}
	state := &State{LastNodeSequenceID: 2}
	parsed := ParseState(state, leaf, 3)
	require.Equal(t, LeafOutcomeNone, parsed.LeafOutcome)
}

func TestParseStateMoveCompletion(t *testing.T) {
	d := 1.0
	leaf := &model.MissionNode{Name: "0", Move: &model.MoveNode{Distance: &d}}
	state := &State{LastNodeSequenceID: 2}
	parsed := ParseState(state, leaf, 0)
	require.Equal(t, LeafOutcomeCompleted, parsed.LeafOutcome)
}

func TestParseStateActionFinished(t *testing.T) {
	leaf := &model.MissionNode{Name: "0", Action: &model.ActionNode{ActionType: "dummy_action"}}
	state := &State{ActionStates: []ActionState{{ActionID: "a1", ActionStatus: ActionFinished}}}
	parsed := ParseState(state, leaf, 0)
	require.Equal(t, LeafOutcomeCompleted, parsed.LeafOutcome)
}

func TestParseStateActionFailed(t *testing.T) {
	leaf := &model.MissionNode{Name: "0", Action: &model.ActionNode{ActionType: "dummy_action"}}
	state := &State{ActionStates: []ActionState{{ActionID: "a1", ActionStatus: ActionFailed, ResultDescription: "jam"}}}
	parsed := ParseState(state, leaf, 0)
	require.Equal(t, LeafOutcomeFailed, parsed.LeafOutcome)
	require.Equal(t, "jam", parsed.LeafErrorMsg)
}

func TestParseStatePauseActionTriggersTeleop(t *testing.T) {
	leaf := &model.MissionNode{Name: "0", Action: &model.ActionNode{ActionType: ActionTypePauseOrder}}
	state := &State{ActionStates: []ActionState{{ActionID: "a1", ActionStatus: ActionRunning}}}
	parsed := ParseState(state, leaf, 0)
	require.True(t, parsed.TeleopRequested)
}

func TestParseStatePoseAndBattery(t *testing.T) {
	state := &State{
		AgvPosition:  &AgvPosition{X: 1, Y: 2, Theta: 0.5, MapID: "m"},
		BatteryState: &BatteryState{BatteryCharge: 0.75, Charging: true},
	}
	parsed := ParseState(state, nil, 0)
	require.Equal(t, model.Pose2D{X: 1, Y: 2, Theta: 0.5, MapID: "m"}, parsed.Pose)
	require.True(t, parsed.HasBattery)
	require.InDelta(t, 0.75, parsed.BatteryLevel, 1e-9)
	require.True(t, parsed.Charging)
}

func TestParseStateUserInfoMessages(t *testing.T) {
	state := &State{Information: []Info{{InfoType: "user_info", InfoDescription: `"hello"`}}}
	parsed := ParseState(state, nil, 0)
	require.Equal(t, []string{"hello"}, parsed.InfoMessages)
}

func TestAckedInstantActionsScansInReverse(t *testing.T) {
	state := &State{ActionStates: []ActionState{
		{ActionID: "a1", ActionStatus: ActionRunning},
		{ActionID: "a2", ActionStatus: ActionFinished},
		{ActionID: "a3", ActionStatus: ActionFinished},
	}}
	acked := AckedInstantActions(state)
	require.Equal(t, []string{"a3", "a2"}, acked)
}

func TestFoldErrorsIgnoresWarning(t *testing.T) {
	state := &State{Errors: []Error{{ErrorLevel: ErrorLevelWarning, ErrorDescription: "minor"}}}
	require.Empty(t, FoldErrors(state))
}

func TestFoldErrorsAttributesFatalToLeaf(t *testing.T) {
	state := &State{Errors: []Error{{
		ErrorLevel:       ErrorLevelFatal,
		ErrorDescription: "stuck",
		ErrorReferences:  []ErrorReference{{ReferenceKey: "nodeId", ReferenceValue: "m1-n2-s4"}},
	}}}
	faults := FoldErrors(state)
	require.Len(t, faults, 1)
	require.Equal(t, 2, faults[0].LeafIndex)
	require.Equal(t, "stuck", faults[0].ErrorMsg)
}

func TestIsStaleOrderID(t *testing.T) {
	require.False(t, IsStaleOrderID("m1-n0-s0", "m1"))
	require.True(t, IsStaleOrderID("m2-n0-s0", "m1"))
}
