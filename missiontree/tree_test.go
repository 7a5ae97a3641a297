package missiontree

import (
	"testing"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/stretchr/testify/require"
)

func mustMission(t *testing.T, spec model.MissionSpec) *model.Mission {
	t.Helper()
	m, err := model.NewMission("m1", spec)
	require.NoError(t, err)
	return m
}

func TestTreeSingleRouteLeafTip(t *testing.T) {
	spec := model.MissionSpec{
		Robot: "r1",
		MissionTree: []model.MissionNode{
			{Name: "a", Parent: "root", Route: &model.RouteNode{Waypoints: []model.Pose2D{{X: 1}}}},
		},
	}
	m := mustMission(t, spec)
	tree, err := Build(m)
	require.NoError(t, err)

	require.Equal(t, Running, tree.Tick())
	tip := tree.Tip()
	require.NotNil(t, tip)
	require.Equal(t, "a", tip.Name())

	m.Status.NodeStatus["a"].State = model.MissionCompleted
	require.Equal(t, Success, tree.Tick())
	require.Nil(t, tree.Tip())
}

func TestTreeConstantResolvesImmediately(t *testing.T) {
	spec := model.MissionSpec{
		Robot: "r1",
		MissionTree: []model.MissionNode{
			{Name: "a", Parent: "root", Constant: &model.ConstantNode{Success: true}},
		},
	}
	m := mustMission(t, spec)
	tree, err := Build(m)
	require.NoError(t, err)
	require.Equal(t, Success, tree.Tick())
	require.Equal(t, model.MissionCompleted, m.Status.NodeStatus["a"].State)
}

func TestTreeSequenceShortCircuitsOnFailure(t *testing.T) {
	spec := model.MissionSpec{
		Robot: "r1",
		MissionTree: []model.MissionNode{
			{Name: "a", Parent: "root", Constant: &model.ConstantNode{Success: false}},
			{Name: "b", Parent: "root", Constant: &model.ConstantNode{Success: true}},
		},
	}
	m := mustMission(t, spec)
	tree, err := Build(m)
	require.NoError(t, err)
	require.Equal(t, Failure, tree.Tick())
	require.Equal(t, model.MissionFailed, m.Status.NodeStatus["a"].State)
	// b is never reached because root is a sequence and a failed first.
	require.Equal(t, model.MissionPending, m.Status.NodeStatus["b"].State)
}

// TestTreeSelectorRecovery mirrors scenario S3:
// route -> selector{ action(fail), sequence{ route, action(succeed) } }.
func TestTreeSelectorRecovery(t *testing.T) {
	spec := model.MissionSpec{
		Robot: "r1",
		MissionTree: []model.MissionNode{
			{Name: "route0", Parent: "root", Route: &model.RouteNode{Waypoints: []model.Pose2D{{X: 1}}}},
			{Name: "sel", Parent: "root", Selector: &struct{}{}},
			{Name: "fail_action", Parent: "sel", Action: &model.ActionNode{ActionType: "dummy_action"}},
			{Name: "seq", Parent: "sel", Sequence: &struct{}{}},
			{Name: "route1", Parent: "seq", Route: &model.RouteNode{Waypoints: []model.Pose2D{{X: 2}}}},
			{Name: "succeed_action", Parent: "seq", Action: &model.ActionNode{ActionType: "dummy_action"}},
		},
	}
	m := mustMission(t, spec)
	tree, err := Build(m)
	require.NoError(t, err)

	// Drive route0 to completion first.
	require.Equal(t, Running, tree.Tick())
	require.Equal(t, "route0", tree.Tip().Name())
	m.Status.NodeStatus["route0"].State = model.MissionCompleted

	require.Equal(t, Running, tree.Tick())
	require.Equal(t, "fail_action", tree.Tip().Name())
	m.Status.NodeStatus["fail_action"].State = model.MissionFailed

	require.Equal(t, Running, tree.Tick())
	require.Equal(t, "route1", tree.Tip().Name())
	m.Status.NodeStatus["route1"].State = model.MissionCompleted

	require.Equal(t, Running, tree.Tick())
	require.Equal(t, "succeed_action", tree.Tip().Name())
	m.Status.NodeStatus["succeed_action"].State = model.MissionCompleted

	require.Equal(t, Success, tree.Tick())
	require.Nil(t, tree.Tip())
	require.Equal(t, model.MissionFailed, m.Status.NodeStatus["fail_action"].State)
	require.Equal(t, model.MissionCompleted, m.Status.NodeStatus["seq"].State)
	require.Equal(t, model.MissionCompleted, m.Status.NodeStatus["sel"].State)
}

func TestBuildRejectsMissingParent(t *testing.T) {
	spec := model.MissionSpec{
		Robot: "r1",
		MissionTree: []model.MissionNode{
			{Name: "a", Parent: "root", Route: &model.RouteNode{Waypoints: []model.Pose2D{{X: 1}}}},
		},
	}
	m := mustMission(t, spec)
	// Mutate after validation to simulate a structurally broken tree.
	m.Spec.MissionTree[0].Parent = "ghost"
	_, err := Build(m)
	require.Error(t, err)
}

func TestTipTypeAssertsToLeafNode(t *testing.T) {
	spec := model.MissionSpec{
		Robot: "r1",
		MissionTree: []model.MissionNode{
			{Name: "a", Parent: "root", Action: &model.ActionNode{ActionType: "dummy_action"}},
		},
	}
	m := mustMission(t, spec)
	tree, err := Build(m)
	require.NoError(t, err)
	tree.Tick()
	leaf, ok := tree.Tip().(LeafNode)
	require.True(t, ok)
	require.Equal(t, "dummy_action", leaf.MissionNode().Action.ActionType)
}
