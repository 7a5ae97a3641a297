package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nvidia-isaac/mission-dispatch/broker"
	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/store/memstore"
	"github.com/nvidia-isaac/mission-dispatch/vda5050"
)

// fakeBroker is a minimal in-process broker.Broker: Publish records every
// message, Subscribe is unused by these tests (the dispatcher owns state
// subscription; the agent only ever publishes).
type fakeBroker struct {
	mu        sync.Mutex
	published []broker.Message
}

func (f *fakeBroker) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, broker.Message{Topic: topic, Payload: payload})
	return nil
}

func (f *fakeBroker) Subscribe(ctx context.Context, _ string) (<-chan broker.Message, error) {
	ch := make(chan broker.Message)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeBroker) Close() error { return nil }

func (f *fakeBroker) last() (broker.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return broker.Message{}, false
	}
	return f.published[len(f.published)-1], true
}

func newTestAgent(t *testing.T) (*Agent, *fakeBroker, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	br := &fakeBroker{}
	a := New("r1", st, br, broker.Topics{}, SideIntegrations{}, "test-publisher")
	return a, br, st
}

func routeMission(t *testing.T, name string) *model.Mission {
	t.Helper()
	m, err := model.NewMission(name, model.MissionSpec{
		Robot: "r1",
		MissionTree: []model.MissionNode{
			{Name: "a", Route: &model.RouteNode{Waypoints: []model.Pose2D{{X: 1, Y: 2}}}},
		},
	})
	require.NoError(t, err)
	return m
}

// deliver sends ev and processes it inline, mirroring one iteration of
// Run's select loop without needing a goroutine or the timer arms.
func deliver(ctx context.Context, a *Agent, ev Event) {
	a.Send(ev)
	a.handleEvent(ctx, <-a.inbox)
}

func TestStartMissionEmitsOrderAndSetsOnTask(t *testing.T) {
	a, br, _ := newTestAgent(t)
	ctx := context.Background()

	robot := &model.Robot{ObjectMeta: model.ObjectMeta{Name: "r1", Lifecycle: model.LifecycleAlive}}
	deliver(ctx, a, RobotEvent{Robot: robot})

	m := routeMission(t, "m1")
	deliver(ctx, a, MissionEvent{Mission: m})

	require.NotNil(t, a.current)
	require.Equal(t, model.MissionRunning, a.current.Status.State)
	require.Equal(t, model.RobotStateOnTask, a.robot.Status.State)

	msg, ok := br.last()
	require.True(t, ok)
	require.Equal(t, broker.Topics{}.Order("r1"), msg.Topic)

	var order vda5050.Order
	require.NoError(t, json.Unmarshal(msg.Payload, &order))
	require.Equal(t, "m1-n0", order.OrderID)
}

func TestFeedbackCompletesRouteLeafAndFinishesMission(t *testing.T) {
	a, _, st := newTestAgent(t)
	ctx := context.Background()

	robot := &model.Robot{ObjectMeta: model.ObjectMeta{Name: "r1", Lifecycle: model.LifecycleAlive}}
	deliver(ctx, a, RobotEvent{Robot: robot})

	m := routeMission(t, "m1")
	require.NoError(t, st.Missions().Create(ctx, m))
	deliver(ctx, a, MissionEvent{Mission: m})
	require.Equal(t, model.MissionRunning, a.current.Status.State)

	// One waypoint: currentOrderNodeID == 2*1+2 == 4 means
	// LastNodeSequenceID == 2 signals the route leaf completed (§4.1).
	state := &vda5050.State{
		OrderID:            "m1-n0-s2",
		LastNodeSequenceID: 2,
	}
	deliver(ctx, a, FeedbackEvent{State: state})

	require.Nil(t, a.current)
	require.Equal(t, model.RobotStateIdle, a.robot.Status.State)

	persisted, err := st.Missions().Get(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, model.MissionCompleted, persisted.Status.State)
}

func TestStaleFeedbackDoesNotAdvanceMission(t *testing.T) {
	a, _, _ := newTestAgent(t)
	ctx := context.Background()

	robot := &model.Robot{ObjectMeta: model.ObjectMeta{Name: "r1", Lifecycle: model.LifecycleAlive}}
	deliver(ctx, a, RobotEvent{Robot: robot})

	m := routeMission(t, "m1")
	deliver(ctx, a, MissionEvent{Mission: m})

	deliver(ctx, a, FeedbackEvent{State: &vda5050.State{OrderID: "unrelated-mission-n0-s2", LastNodeSequenceID: 2}})

	require.NotNil(t, a.current)
	require.Equal(t, model.MissionRunning, a.current.Status.State)
}

func TestCancelPendingMissionFinishesImmediatelyWithNoOrder(t *testing.T) {
	a, br, _ := newTestAgent(t)
	ctx := context.Background()

	robot := &model.Robot{ObjectMeta: model.ObjectMeta{Name: "r1", Lifecycle: model.LifecycleAlive}}
	deliver(ctx, a, RobotEvent{Robot: robot})

	running := routeMission(t, "running")
	deliver(ctx, a, MissionEvent{Mission: running})
	require.NotNil(t, a.current)

	queued, err := model.NewMission("queued", model.MissionSpec{
		Robot:       "r1",
		MissionTree: []model.MissionNode{{Name: "a", Route: &model.RouteNode{Waypoints: []model.Pose2D{{X: 1}}}}},
	})
	require.NoError(t, err)
	deliver(ctx, a, MissionEvent{Mission: queued})
	_, queuedStill := a.missions.Get("queued")
	require.True(t, queuedStill)

	before := len(br.published)
	queuedCopy := *queued
	require.NoError(t, queuedCopy.Cancel())
	deliver(ctx, a, MissionEvent{Mission: &queuedCopy})

	_, stillQueued := a.missions.Get("queued")
	require.False(t, stillQueued)
	require.Equal(t, before, len(br.published), "canceling a queued mission must never emit an order")
}

func TestWatchdogMarksRobotOfflineOnMissedHeartbeat(t *testing.T) {
	a, _, st := newTestAgent(t)
	ctx := context.Background()

	robot := &model.Robot{
		ObjectMeta: model.ObjectMeta{Name: "r1", Lifecycle: model.LifecycleAlive},
		Spec:       model.RobotSpec{HeartbeatTimeout: time.Millisecond},
	}
	require.NoError(t, st.Robots().Create(ctx, robot))
	deliver(ctx, a, RobotEvent{Robot: robot})
	require.NotNil(t, a.watchdogTimer)

	deliver(ctx, a, FeedbackEvent{State: &vda5050.State{}})
	require.True(t, a.robot.Status.Online)

	<-a.watchdogTimer.C
	a.handleWatchdogFired(ctx)

	require.False(t, a.robot.Status.Online)
}
