package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nvidia-isaac/mission-dispatch/agent"
	"github.com/nvidia-isaac/mission-dispatch/broker"
	"github.com/nvidia-isaac/mission-dispatch/store/memstore"
)

// fakeBroker is a minimal broker.Broker for registry/dispatcher tests; no
// test here exercises Subscribe's returned channel directly.
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

func newTestRegistry(t *testing.T) (*Registry, context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	st := memstore.New()
	br := &fakeBroker{}
	return NewRegistry(ctx, st, br, broker.Topics{}, agent.SideIntegrations{}, "test-publisher"), ctx, cancel
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	r, _, cancel := newTestRegistry(t)
	defer cancel()

	a1 := r.GetOrCreate("r1")
	a2 := r.GetOrCreate("r1")
	require.Same(t, a1, a2, "GetOrCreate must return the same agent for the same robot name")
	require.ElementsMatch(t, []string{"r1"}, r.Names())
}

func TestGetDoesNotCreate(t *testing.T) {
	r, _, cancel := newTestRegistry(t)
	defer cancel()

	_, ok := r.Get("ghost")
	require.False(t, ok)
	require.Empty(t, r.Names())
}

// TestAgentRemovesItselfWhenRunReturns exercises the Registry's
// self-cleanup: canceling the ctx passed to NewRegistry stops the agent's
// Run goroutine, which must then remove its own entry from the registry
// (mirroring the teacher's RobotManager: the owning goroutine, not the
// caller, is responsible for deregistering on exit).
func TestAgentRemovesItselfWhenRunReturns(t *testing.T) {
	r, _, cancel := newTestRegistry(t)

	r.GetOrCreate("r1")
	require.ElementsMatch(t, []string{"r1"}, r.Names())

	cancel()

	require.Eventually(t, func() bool {
		return len(r.Names()) == 0
	}, time.Second, time.Millisecond, "agent must deregister itself after Run returns")
}

func TestNamesReflectsMultipleAgents(t *testing.T) {
	r, _, cancel := newTestRegistry(t)
	defer cancel()

	r.GetOrCreate("r1")
	r.GetOrCreate("r2")
	r.GetOrCreate("r3")
	require.ElementsMatch(t, []string{"r1", "r2", "r3"}, r.Names())
}
