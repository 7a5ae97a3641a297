package model

import (
	"testing"

	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/stretchr/testify/require"
)

func routeNode(name, parent string, waypoints ...Pose2D) MissionNode {
	return MissionNode{Name: name, Parent: parent, Route: &RouteNode{Waypoints: waypoints}}
}

func TestNewMissionRejectsEmptyTree(t *testing.T) {
	_, err := NewMission("m1", MissionSpec{Robot: "r1"})
	require.Error(t, err)
	de, ok := shared.AsDispatchError(err)
	require.True(t, ok)
	require.Equal(t, shared.KindUsage, de.Kind)
}

func TestNewMissionAssignsDefaultNamesAndParents(t *testing.T) {
	spec := MissionSpec{
		Robot: "r1",
		MissionTree: []MissionNode{
			{Route: &RouteNode{Waypoints: []Pose2D{{X: 1, Y: 1}}}},
		},
	}
	m, err := NewMission("m1", spec)
	require.NoError(t, err)
	require.Equal(t, "0", m.Spec.MissionTree[0].Name)
	require.Equal(t, RootNodeName, m.Spec.MissionTree[0].Parent)
	require.Contains(t, m.Status.NodeStatus, "0")
	require.Contains(t, m.Status.NodeStatus, RootNodeName)
}

func TestNewMissionRejectsDuplicateNames(t *testing.T) {
	spec := MissionSpec{
		Robot: "r1",
		MissionTree: []MissionNode{
			routeNode("a", "root", Pose2D{X: 1}),
			routeNode("a", "root", Pose2D{X: 2}),
		},
	}
	_, err := NewMission("m1", spec)
	require.Error(t, err)
}

func TestNewMissionRejectsForwardParentReference(t *testing.T) {
	spec := MissionSpec{
		Robot: "r1",
		MissionTree: []MissionNode{
			routeNode("a", "b", Pose2D{X: 1}),
			routeNode("b", "root", Pose2D{X: 2}),
		},
	}
	_, err := NewMission("m1", spec)
	require.Error(t, err)
}

func TestNewMissionRejectsReservedRootName(t *testing.T) {
	spec := MissionSpec{
		Robot:       "r1",
		MissionTree: []MissionNode{routeNode("root", "root", Pose2D{X: 1})},
	}
	_, err := NewMission("m1", spec)
	require.Error(t, err)
}

func TestNewMissionRejectsMultiKindNode(t *testing.T) {
	d := 1.0
	spec := MissionSpec{
		Robot: "r1",
		MissionTree: []MissionNode{
			{Name: "a", Parent: "root", Route: &RouteNode{Waypoints: []Pose2D{{X: 1}}}, Move: &MoveNode{Distance: &d}},
		},
	}
	_, err := NewMission("m1", spec)
	require.Error(t, err)
}

func TestNewMissionRejectsMoveWithBothFields(t *testing.T) {
	d := 1.0
	r := 0.5
	spec := MissionSpec{
		Robot:       "r1",
		MissionTree: []MissionNode{{Name: "a", Parent: "root", Move: &MoveNode{Distance: &d, Rotation: &r}}},
	}
	_, err := NewMission("m1", spec)
	require.Error(t, err)
}

func TestNewMissionDefaultsTimeout(t *testing.T) {
	spec := MissionSpec{
		Robot:       "r1",
		MissionTree: []MissionNode{routeNode("a", "root", Pose2D{X: 1})},
	}
	m, err := NewMission("m1", spec)
	require.NoError(t, err)
	require.Equal(t, DefaultMissionTimeout, m.Spec.Timeout)
}

func TestMissionCancelRejectedWhenTerminal(t *testing.T) {
	spec := MissionSpec{Robot: "r1", MissionTree: []MissionNode{routeNode("a", "root", Pose2D{X: 1})}}
	m, err := NewMission("m1", spec)
	require.NoError(t, err)
	m.Status.State = MissionCompleted
	require.Error(t, m.Cancel())
}

func TestMissionCancelSetsFlag(t *testing.T) {
	spec := MissionSpec{Robot: "r1", MissionTree: []MissionNode{routeNode("a", "root", Pose2D{X: 1})}}
	m, err := NewMission("m1", spec)
	require.NoError(t, err)
	require.NoError(t, m.Cancel())
	require.True(t, m.Spec.NeedsCanceled)
}

func TestMissionApplyUpdateNodesRejectsUnknownNode(t *testing.T) {
	spec := MissionSpec{Robot: "r1", MissionTree: []MissionNode{routeNode("a", "root", Pose2D{X: 1})}}
	m, err := NewMission("m1", spec)
	require.NoError(t, err)
	err = m.ApplyUpdateNodes(map[string]RouteNode{"missing": {Waypoints: []Pose2D{{X: 5}}}})
	require.Error(t, err)
}

func TestMissionApplyUpdateNodesRejectsFinishedRunningNode(t *testing.T) {
	spec := MissionSpec{Robot: "r1", MissionTree: []MissionNode{routeNode("a", "root", Pose2D{X: 1})}}
	m, err := NewMission("m1", spec)
	require.NoError(t, err)
	m.Status.State = MissionRunning
	m.Status.NodeStatus["a"].State = MissionCompleted
	err = m.ApplyUpdateNodes(map[string]RouteNode{"a": {Waypoints: []Pose2D{{X: 5}}}})
	require.Error(t, err)
}

func TestMissionApplyUpdateNodesAccepted(t *testing.T) {
	spec := MissionSpec{Robot: "r1", MissionTree: []MissionNode{routeNode("a", "root", Pose2D{X: 1})}}
	m, err := NewMission("m1", spec)
	require.NoError(t, err)
	m.Status.State = MissionRunning
	err = m.ApplyUpdateNodes(map[string]RouteNode{"a": {Waypoints: []Pose2D{{X: 5}}}})
	require.NoError(t, err)
	require.Equal(t, 5.0, m.Spec.UpdateNodes["a"].Waypoints[0].X)
}
