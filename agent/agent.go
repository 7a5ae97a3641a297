// Package agent implements C3: the per-robot actor that owns and drives one
// robot's missions. One Agent runs one robot, processing exactly one event
// at a time off its inbox (§4.3, §5): "Exactly one event is processed at a
// time (single-threaded cooperative per agent); no locks are needed within
// an agent." Grounded on the teacher's single-goroutine-per-connection
// pattern in the deleted tcp_server (one owning goroutine draining one
// channel), generalized here to a cooperative state machine instead of a
// raw byte-stream reader.
package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nvidia-isaac/mission-dispatch/broker"
	"github.com/nvidia-isaac/mission-dispatch/missiontree"
	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/shared/data_structures"
	"github.com/nvidia-isaac/mission-dispatch/store"
	"github.com/nvidia-isaac/mission-dispatch/vda5050"
)

// cancelReason distinguishes why the agent issued a cancelOrder, so the ack
// handler knows whether to finish the mission as CANCELED or to proceed
// with resending an updated leaf (§4.3 "Instant actions").
type cancelReason string

const (
	cancelReasonUserCancel   cancelReason = "user_cancel"
	cancelReasonUpdateResend cancelReason = "update_resend"
	// cancelReasonTeleop tags startTeleop/stopTeleop instant actions, which
	// carry no cancel-ack follow-up logic (see handleCancelAcked).
	cancelReasonTeleop cancelReason = "teleop"
)

type pendingInstantAction struct {
	ActionID string
	Type     vda5050.InstantActionType
	Reason   cancelReason
}

// Archiver is the best-effort audit sink a finished mission is appended to
// (store/archive). A nil Archiver disables archiving entirely (used in
// tests and whenever --archive_mongo_uri is unset).
type Archiver interface {
	Append(ctx context.Context, mission *model.Mission, at time.Time) error
}

// SideIntegrations holds the best-effort HTTP endpoints for charging/
// map-deployment side calls (§4.3) and the notify leaf's POST client. A nil
// HTTPClient disables the side-integration calls entirely (used in tests).
type SideIntegrations struct {
	HTTPClient        *http.Client
	MissionControlURL string
	// Archive receives every mission that reaches a terminal state, for the
	// durable audit trail called out in §1 independent of the relational
	// store's retention policy. Best-effort: a failed append is logged and
	// never blocks or fails the mission itself.
	Archive Archiver
}

// Agent is the per-robot actor.
type Agent struct {
	name   string
	store  store.Store
	broker broker.Broker
	topics broker.Topics
	side   SideIntegrations

	// publisherID tags every store write this agent makes, so the
	// dispatcher's own watch loop (and other agents) can filter out
	// self-notifications via store.WithPublisherID (§6).
	publisherID string

	inbox chan Event

	robot    *model.Robot
	missions *data_structures.OrderedMap[string, *model.Mission]
	current  *model.Mission
	tree     *missiontree.Tree
	// leafIndexByName maps a mission-node name to its position in
	// Spec.MissionTree, the "leaf index" §4.1's wire IDs are keyed on.
	leafIndexByName map[string]int
	nameByLeafIndex map[int]string

	identity vda5050.AgentIdentity
	headerID int

	pendingInstantActions *data_structures.OrderedMap[string, pendingInstantAction]
	// pendingResend is the set of node names whose update_nodes rewrite is
	// waiting on a cancelOrder ack before the updated leaf's order is sent.
	pendingResend map[string]bool

	lastTipName string

	// lastSwitchTeleop is the previously observed value of
	// robot.Spec.SwitchTeleop, so handleRobotEvent only reacts to edges.
	lastSwitchTeleop bool

	watchdogTimer       *time.Timer
	missionTimeoutTimer *time.Timer

	log func(format string, args ...interface{})
}

// New constructs an Agent for one robot. Run must be called to start
// processing; events are delivered via Send.
func New(name string, st store.Store, br broker.Broker, topics broker.Topics, side SideIntegrations, publisherID string) *Agent {
	return &Agent{
		name:                  name,
		store:                 st,
		broker:                br,
		topics:                topics,
		side:                  side,
		publisherID:           publisherID,
		inbox:                 make(chan Event, 64),
		missions:              data_structures.NewOrderedMap[string, *model.Mission](),
		pendingInstantActions: data_structures.NewOrderedMap[string, pendingInstantAction](),
		pendingResend:         make(map[string]bool),
		log:                   shared.Infof,
	}
}

// Name returns the robot name this agent owns.
func (a *Agent) Name() string { return a.name }

// Send enqueues an event for processing. Safe to call from the dispatcher's
// producer goroutines; blocks if the inbox is full, applying backpressure
// rather than dropping events.
func (a *Agent) Send(ev Event) {
	a.inbox <- ev
}

// Run drives the agent's event loop until ctx is canceled or the robot is
// deleted (§4.3 "Robot deletion").
func (a *Agent) Run(ctx context.Context) {
	for {
		var watchdogC, timeoutC <-chan time.Time
		if a.watchdogTimer != nil {
			watchdogC = a.watchdogTimer.C
		}
		if a.missionTimeoutTimer != nil {
			timeoutC = a.missionTimeoutTimer.C
		}

		select {
		case <-ctx.Done():
			return
		case ev := <-a.inbox:
			a.handleEvent(ctx, ev)
		case <-watchdogC:
			a.handleWatchdogFired(ctx)
		case <-timeoutC:
			a.handleMissionTimeoutFired(ctx)
		}

		if a.shouldStop() {
			return
		}
	}
}

// shouldStop implements the stop half of §4.3's terminal robot-deletion
// rule: PENDING_DELETE with the robot IDLE stops the agent. The store
// deletion itself is done by deleteSelf, from handleRobotEvent or
// finishMission.
func (a *Agent) shouldStop() bool {
	return a.robot != nil &&
		a.robot.Lifecycle == model.LifecyclePendingDelete &&
		!a.robot.Status.State.Running() &&
		a.current == nil
}

func (a *Agent) handleEvent(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case RobotEvent:
		a.handleRobotEvent(ctx, e)
	case MissionEvent:
		a.handleMissionEvent(ctx, e)
	case FeedbackEvent:
		a.handleFeedback(ctx, e.State)
	case NotifyResultEvent:
		a.handleNotifyResult(ctx, e)
	}
}

func (a *Agent) handleRobotEvent(ctx context.Context, ev RobotEvent) {
	if ev.Deleted {
		a.robot = nil
		return
	}
	firstSight := a.robot == nil
	a.robot = ev.Robot
	if a.robot.Status.HardwareVersion.Manufacturer != "" || a.robot.Status.HardwareVersion.SerialNumber != "" {
		a.identity = vda5050.AgentIdentity{
			Manufacturer: a.robot.Status.HardwareVersion.Manufacturer,
			SerialNumber: a.robot.Status.HardwareVersion.SerialNumber,
		}
	}
	if firstSight {
		a.resetWatchdog()
		a.lastSwitchTeleop = a.robot.Spec.SwitchTeleop
	}
	a.handleTeleopCommand(ctx)

	if a.robot.Lifecycle == model.LifecyclePendingDelete && a.robot.Status.State.Running() && a.current != nil {
		// Deferred per §4.3: "PENDING_DELETE while ON_TASK -> defer; fail the
		// current mission on deletion-forced paths" is driven by whatever
		// forces the robot off-task (mission timeout/failure), not here.
		return
	}
	if a.robot.Lifecycle == model.LifecyclePendingDelete && !a.robot.Status.State.Running() && a.current == nil {
		a.deleteSelf(ctx)
		return
	}

	a.maybeStartNextMission(ctx)
}

func (a *Agent) deleteSelf(ctx context.Context) {
	if err := a.store.Robots().Delete(a.writeCtx(ctx), a.name); err != nil {
		shared.LogError("agent: deleting robot on PENDING_DELETE", err)
	}
}

// writeCtx tags a context with this agent's publisher id, so its own writes
// don't loop back through its own Watch stream.
func (a *Agent) writeCtx(ctx context.Context) context.Context {
	return store.WithPublisherID(ctx, a.publisherID)
}

func (a *Agent) nextHeaderID() int {
	a.headerID++
	return a.headerID
}

func (a *Agent) publishOrder(ctx context.Context, order *vda5050.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return shared.NewServerError(err, "marshaling order for mission %q", order.OrderID)
	}
	return a.broker.Publish(ctx, a.topics.Order(a.name), payload)
}

func (a *Agent) publishInstantActions(ctx context.Context, msg *vda5050.InstantActions) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return shared.NewServerError(err, "marshaling instant actions")
	}
	return a.broker.Publish(ctx, a.topics.InstantActions(a.name), payload)
}
