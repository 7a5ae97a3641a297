package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/store"
	"github.com/stretchr/testify/require"
)

func TestRobotStoreCreateGetList(t *testing.T) {
	s := New()
	robot := &model.Robot{ObjectMeta: model.ObjectMeta{Name: "r1", Lifecycle: model.LifecycleAlive}}
	require.NoError(t, s.Robots().Create(context.Background(), robot))

	got, err := s.Robots().Get(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, "r1", got.Name)

	list, err := s.Robots().List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestRobotStoreCreateDuplicateRejected(t *testing.T) {
	s := New()
	robot := &model.Robot{ObjectMeta: model.ObjectMeta{Name: "r1"}}
	require.NoError(t, s.Robots().Create(context.Background(), robot))
	require.ErrorIs(t, s.Robots().Create(context.Background(), robot), shared.ErrAlreadyExists)
}

func TestRobotStoreGetMissing(t *testing.T) {
	s := New()
	_, err := s.Robots().Get(context.Background(), "ghost")
	require.Error(t, err)
}

func TestRobotStoreWatchSnapshotThenDelta(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seed := &model.Robot{ObjectMeta: model.ObjectMeta{Name: "r1"}}
	require.NoError(t, s.Robots().Create(context.Background(), seed))

	ch, err := s.Robots().Watch(ctx)
	require.NoError(t, err)

	select {
	case ev := <-ch:
		require.Equal(t, "r1", ev.Object.Name)
		require.False(t, ev.Deleted)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot event")
	}

	added := &model.Robot{ObjectMeta: model.ObjectMeta{Name: "r2"}}
	require.NoError(t, s.Robots().Create(context.Background(), added))

	select {
	case ev := <-ch:
		require.Equal(t, "r2", ev.Object.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delta event")
	}

	require.NoError(t, s.Robots().Delete(context.Background(), "r1"))
	select {
	case ev := <-ch:
		require.Equal(t, "r1", ev.Object.Name)
		require.True(t, ev.Deleted)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delete event")
	}
}

func TestRobotStoreWatchFiltersSelfWrites(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchCtx := store.WithPublisherID(ctx, "dispatcher-1")
	ch, err := s.Robots().Watch(watchCtx)
	require.NoError(t, err)

	writeCtx := store.WithPublisherID(context.Background(), "dispatcher-1")
	require.NoError(t, s.Robots().Create(writeCtx, &model.Robot{ObjectMeta: model.ObjectMeta{Name: "r1"}}))

	otherCtx := store.WithPublisherID(context.Background(), "agent-2")
	require.NoError(t, s.Robots().Create(otherCtx, &model.Robot{ObjectMeta: model.ObjectMeta{Name: "r2"}}))

	select {
	case ev := <-ch:
		require.Equal(t, "r2", ev.Object.Name, "write from the watcher's own publisher id must not be delivered")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the non-self event")
	}
}

func TestMissionStoreUpdateStatusPublishesDelta(t *testing.T) {
	s := New()
	spec := model.MissionSpec{Robot: "r1", MissionTree: []model.MissionNode{
		{Name: "a", Parent: "root", Constant: &model.ConstantNode{Success: true}},
	}}
	mission, err := model.NewMission("m1", spec)
	require.NoError(t, err)
	require.NoError(t, s.Missions().Create(context.Background(), mission))

	status := mission.Status
	status.State = model.MissionRunning
	require.NoError(t, s.Missions().UpdateStatus(context.Background(), "m1", status))

	got, err := s.Missions().Get(context.Background(), "m1")
	require.NoError(t, err)
	require.Equal(t, model.MissionRunning, got.Status.State)
}

