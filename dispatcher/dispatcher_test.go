package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nvidia-isaac/mission-dispatch/agent"
	"github.com/nvidia-isaac/mission-dispatch/broker"
	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/store"
	"github.com/nvidia-isaac/mission-dispatch/store/memstore"
)

func newTestDispatcher(ctx context.Context, t *testing.T) (*Dispatcher, *memstore.Store, *fakeBroker) {
	t.Helper()
	st := memstore.New()
	br := &fakeBroker{}
	d := New(ctx, Config{Store: st, Broker: br, Topics: broker.Topics{}, Side: agent.SideIntegrations{}})
	return d, st, br
}

// TestDeletingUnknownRobotIsANoOp exercises drainRobots' Get (not
// GetOrCreate) branch on delete: a delete event for a robot this process
// never saw must not spin up an agent just to tear it down again.
func TestDeletingUnknownRobotIsANoOp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, _, _ := newTestDispatcher(ctx, t)

	ch := make(chan store.WatchEvent[*model.Robot], 1)
	ch <- store.WatchEvent[*model.Robot]{
		Object:  &model.Robot{ObjectMeta: model.ObjectMeta{Name: "ghost"}},
		Deleted: true,
	}
	close(ch)

	require.True(t, d.drainRobots(ctx, ch))

	_, ok := d.registry.Get("ghost")
	require.False(t, ok, "a delete for a robot this process never tracked must not create an agent")
}

// TestWatchRobotsStartsAgentOnCreate is an end-to-end Run() exercise: a
// robot Create reaching the store must surface as a live agent in the
// registry, proving the three-producer fan-in (§4.4) wires events through
// to GetOrCreate.
func TestWatchRobotsStartsAgentOnCreate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, st, _ := newTestDispatcher(ctx, t)

	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	require.NoError(t, st.Robots().Create(context.Background(), &model.Robot{
		ObjectMeta: model.ObjectMeta{Name: "r1", Lifecycle: model.LifecycleAlive},
	}))

	require.Eventually(t, func() bool {
		_, ok := d.registry.Get("r1")
		return ok
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

// TestHandleStateMessageRoutesToOwningAgent proves handleStateMessage
// extracts the robot name from the state topic and forwards a
// FeedbackEvent to that robot's agent, starting one via GetOrCreate if
// none exists yet (mirrors watchRobots/watchMissions' "state can arrive
// before the robot object does" tolerance).
func TestHandleStateMessageRoutesToOwningAgent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, _, _ := newTestDispatcher(ctx, t)

	msg := broker.Message{
		Topic:   "uagv/v2/default/r1/state",
		Payload: []byte(`{}`),
	}
	d.handleStateMessage(msg)

	_, ok := d.registry.Get("r1")
	require.True(t, ok, "a state message must start (or reuse) the owning robot's agent")
}

// TestHandleStateMessageIgnoresUnrecognizedTopic proves a malformed or
// foreign topic never creates a spurious agent.
func TestHandleStateMessageIgnoresUnrecognizedTopic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, _, _ := newTestDispatcher(ctx, t)

	d.handleStateMessage(broker.Message{Topic: "not/a/known/topic", Payload: []byte(`{}`)})

	require.Empty(t, d.registry.Names())
}
