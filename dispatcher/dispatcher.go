package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nvidia-isaac/mission-dispatch/agent"
	"github.com/nvidia-isaac/mission-dispatch/broker"
	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/store"
	"github.com/nvidia-isaac/mission-dispatch/vda5050"
)

// Config bundles everything the dispatcher needs to wire up its three
// producers and the per-robot agents they feed.
type Config struct {
	Store  store.Store
	Broker broker.Broker
	Topics broker.Topics
	Side   agent.SideIntegrations
}

// Dispatcher is C4: it watches the Store's robot and mission streams plus
// the broker's state topic, and demultiplexes every event onto the owning
// robot's Agent.
type Dispatcher struct {
	cfg         Config
	registry    *Registry
	publisherID string
}

// New builds a Dispatcher. Each Dispatcher process gets its own random
// publisher id (§6), tagging every store write its agents make so this
// process's own watch loop never reprocesses its own writes.
func New(ctx context.Context, cfg Config) *Dispatcher {
	publisherID := uuid.NewString()
	return &Dispatcher{
		cfg:         cfg,
		registry:    NewRegistry(ctx, cfg.Store, cfg.Broker, cfg.Topics, cfg.Side, publisherID),
		publisherID: publisherID,
	}
}

// Run blocks until ctx is canceled or one of the three watch loops hits a
// non-recoverable error, per §4.4's crash policy: "stop all agents and exit
// the process; an external supervisor restarts it." Recoverable
// disconnects (store/broker dropped mid-stream) are retried in place with
// the fixed reconnect periods from §5 and never surface as a Run error.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.watchRobots(ctx) })
	g.Go(func() error { return d.watchMissions(ctx) })
	g.Go(func() error { return d.watchState(ctx) })

	return g.Wait()
}

func (d *Dispatcher) watchRobots(ctx context.Context) error {
	for {
		ch, err := d.cfg.Store.Robots().Watch(store.WithPublisherID(ctx, d.publisherID))
		if err != nil {
			if isStructuralError(err) {
				return err
			}
			if !sleepOrDone(ctx, shared.DBReconnectPeriod) {
				return ctx.Err()
			}
			continue
		}
		if !d.drainRobots(ctx, ch) {
			return ctx.Err()
		}
		if !sleepOrDone(ctx, shared.DBReconnectPeriod) {
			return ctx.Err()
		}
	}
}

// drainRobots forwards robot events until ch closes (stream ended,
// reconnect) or ctx is canceled (terminal). Returns false on terminal
// cancellation.
func (d *Dispatcher) drainRobots(ctx context.Context, ch <-chan store.WatchEvent[*model.Robot]) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return true
			}
			name := ev.Object.Name
			if ev.Deleted {
				if a, ok := d.registry.Get(name); ok {
					a.Send(agent.RobotEvent{Robot: ev.Object, Deleted: true})
				}
				continue
			}
			d.registry.GetOrCreate(name).Send(agent.RobotEvent{Robot: ev.Object, Deleted: false})
		}
	}
}

func (d *Dispatcher) watchMissions(ctx context.Context) error {
	for {
		ch, err := d.cfg.Store.Missions().Watch(store.WithPublisherID(ctx, d.publisherID))
		if err != nil {
			if isStructuralError(err) {
				return err
			}
			if !sleepOrDone(ctx, shared.DBReconnectPeriod) {
				return ctx.Err()
			}
			continue
		}
		if !d.drainMissions(ctx, ch) {
			return ctx.Err()
		}
		if !sleepOrDone(ctx, shared.DBReconnectPeriod) {
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) drainMissions(ctx context.Context, ch <-chan store.WatchEvent[*model.Mission]) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return true
			}
			name := ev.Object.Spec.Robot
			if ev.Deleted {
				if a, ok := d.registry.Get(name); ok {
					a.Send(agent.MissionEvent{Mission: ev.Object, Deleted: true})
				}
				continue
			}
			d.registry.GetOrCreate(name).Send(agent.MissionEvent{Mission: ev.Object, Deleted: false})
		}
	}
}

func (d *Dispatcher) watchState(ctx context.Context) error {
	for {
		ch, err := d.cfg.Broker.Subscribe(ctx, d.cfg.Topics.StateFilter())
		if err != nil {
			if isStructuralError(err) {
				return err
			}
			if !sleepOrDone(ctx, shared.BrokerReconnectPeriod) {
				return ctx.Err()
			}
			continue
		}
		if !d.drainState(ctx, ch) {
			return ctx.Err()
		}
		if !sleepOrDone(ctx, shared.BrokerReconnectPeriod) {
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) drainState(ctx context.Context, ch <-chan broker.Message) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-ch:
			if !ok {
				return true
			}
			d.handleStateMessage(msg)
		}
	}
}

func (d *Dispatcher) handleStateMessage(msg broker.Message) {
	name, ok := d.cfg.Topics.RobotFromStateTopic(msg.Topic)
	if !ok {
		shared.Warnf("dispatcher: received message on unrecognized topic %q", msg.Topic)
		return
	}
	var state vda5050.State
	if err := json.Unmarshal(msg.Payload, &state); err != nil {
		shared.Warnf("dispatcher: discarding malformed state on %q: %v", msg.Topic, err)
		return
	}
	d.registry.GetOrCreate(name).Send(agent.FeedbackEvent{State: &state})
}

// isStructuralError reports whether err is a non-recoverable DispatchError
// (anything other than KindTransient) per §7's "fails fast on structural
// errors" requirement. An error that doesn't carry a Kind at all (e.g. a
// raw network error from a dropped connection) is treated as transient and
// retried, matching the teacher's reconnect loop default.
func isStructuralError(err error) bool {
	de, ok := shared.AsDispatchError(err)
	if !ok {
		return false
	}
	return de.Kind != shared.KindTransient
}

// sleepOrDone waits for d to elapse, returning false if ctx is canceled
// first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
