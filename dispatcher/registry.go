// Package dispatcher implements C4: the process that watches the Store and
// Broker, demultiplexes their events to one actor per robot, and owns each
// actor's lifecycle.
package dispatcher

import (
	"context"
	"sync"

	"github.com/nvidia-isaac/mission-dispatch/agent"
	"github.com/nvidia-isaac/mission-dispatch/broker"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/store"
)

// Registry is the single-index robot-name -> Agent map, adapted from the
// teacher's shared/robot_manager.RobotManager: that type keeps a dual index
// (device ID and IP) over live connection handlers with mutex-guarded
// register/remove and a goroutine per registration that cleans itself up on
// disconnect. This Registry keeps the same shape — one map, one mutex, one
// owning goroutine per entry that removes itself when its Agent's Run
// returns — simplified to a single index since an Agent has no secondary
// address the way a live TCP connection has an IP.
type Registry struct {
	ctx         context.Context
	store       store.Store
	broker      broker.Broker
	topics      broker.Topics
	side        agent.SideIntegrations
	publisherID string

	mu     sync.RWMutex
	agents map[string]*agent.Agent
}

// NewRegistry builds an empty registry. ctx governs every agent goroutine
// this registry starts; canceling it stops every agent.
func NewRegistry(ctx context.Context, st store.Store, br broker.Broker, topics broker.Topics, side agent.SideIntegrations, publisherID string) *Registry {
	return &Registry{
		ctx:         ctx,
		store:       st,
		broker:      br,
		topics:      topics,
		side:        side,
		publisherID: publisherID,
		agents:      make(map[string]*agent.Agent),
	}
}

// GetOrCreate returns the agent for name, starting a new one (and its Run
// goroutine) if this is the first event ever seen for that robot.
func (r *Registry) GetOrCreate(name string) *agent.Agent {
	r.mu.RLock()
	a, ok := r.agents[name]
	r.mu.RUnlock()
	if ok {
		return a
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.agents[name]; ok {
		return a
	}

	a = agent.New(name, r.store, r.broker, r.topics, r.side, r.publisherID)
	r.agents[name] = a

	go func() {
		a.Run(r.ctx)
		shared.Infof("dispatcher: agent for robot %q stopped", name)
		r.remove(name)
	}()

	return a
}

// Get returns the agent for name without creating one.
func (r *Registry) Get(name string) (*agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

func (r *Registry) remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, name)
}

// Names returns a snapshot of every currently tracked robot name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.agents))
	for name := range r.agents {
		out = append(out, name)
	}
	return out
}
